// Package assistant provides a client for the clinic's AI assistant gateway.
// The gateway answers dermatology questions and suggests treatment plans; its
// availability never gates the patient workflow, so every call runs behind a
// circuit breaker and failures surface as advisory errors.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/domain/patient"
	"github.com/dermaflow/go-clinic/pkg/circuitbreaker"
)

// ErrUnavailable indicates the assistant gateway rejected or failed the call.
var ErrUnavailable = errors.New("assistant gateway unavailable")

// ChatRequest is a doctor's free-form question, optionally scoped to a patient.
type ChatRequest struct {
	Message   string `json:"message"`
	PatientID string `json:"patientId,omitempty"`
	Doctor    string `json:"doctor,omitempty"`
}

// ChatResponse is the gateway's answer.
type ChatResponse struct {
	Reply      string   `json:"reply"`
	References []string `json:"references,omitempty"`
}

// RecommendationRequest asks the gateway for a treatment plan draft based on
// the patient's condition and current plan.
type RecommendationRequest struct {
	PatientID string                 `json:"patientId"`
	Condition string                 `json:"condition"`
	Plan      *patient.TreatmentPlan `json:"treatmentPlan,omitempty"`
}

// RecommendationResponse carries the suggested plan fields.
type RecommendationResponse struct {
	Diagnosis        string   `json:"diagnosis,omitempty"`
	DiagnosisDetails string   `json:"diagnosisDetails,omitempty"`
	NextSteps        []string `json:"nextSteps,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

// Config holds assistant gateway client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultConfig returns defaults suitable for a colocated gateway.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8090",
		Timeout: 30 * time.Second,
	}
}

// Client calls the assistant gateway over HTTP JSON.
type Client struct {
	config  Config
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewClient creates an assistant gateway client.
func NewClient(cfg Config, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
		tracer:  otel.Tracer("assistant-client"),
	}
}

// Chat sends a question to the gateway and returns its reply.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, span := c.tracer.Start(ctx, "assistant_chat",
		trace.WithAttributes(attribute.String("patient_id", req.PatientID)))
	defer span.End()

	var resp ChatResponse
	if err := c.post(ctx, "/v1/chat", req, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &resp, nil
}

// Recommend asks the gateway for treatment plan suggestions.
func (c *Client) Recommend(ctx context.Context, req *RecommendationRequest) (*RecommendationResponse, error) {
	ctx, span := c.tracer.Start(ctx, "assistant_recommend",
		trace.WithAttributes(
			attribute.String("patient_id", req.PatientID),
			attribute.String("condition", req.Condition),
		))
	defer span.End()

	var resp RecommendationResponse
	if err := c.post(ctx, "/v1/recommendations", req, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("assistant gateway error",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, respBody)
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}

	if c.breaker != nil {
		_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
			return nil, call()
		})
		return err
	}
	return call()
}
