package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/pkg/circuitbreaker"
)

// ErrDeliveryFailed indicates the notification gateway rejected the report.
var ErrDeliveryFailed = errors.New("report delivery failed")

// NotifierConfig holds notification gateway settings.
type NotifierConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultNotifierConfig returns defaults for a colocated gateway.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		BaseURL: "http://localhost:8091",
		Timeout: 60 * time.Second,
	}
}

// Notifier delivers rendered reports to the patient notification gateway.
// The gateway owns the actual channel (email, SMS, patient portal).
type Notifier struct {
	config  NotifierConfig
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewNotifier creates a notification gateway client.
func NewNotifier(cfg NotifierConfig, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Notifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Deliver posts the PDF and its metadata as a multipart upload.
func (n *Notifier) Deliver(ctx context.Context, env *Envelope, pdf []byte) error {
	deliver := func() (interface{}, error) {
		return nil, n.deliver(ctx, env, pdf)
	}

	if n.breaker != nil {
		_, err := n.breaker.Execute(ctx, deliver)
		return err
	}
	_, err := deliver()
	return err
}

func (n *Notifier) deliver(ctx context.Context, env *Envelope, pdf []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	meta, err := json.Marshal(map[string]string{
		"requestId": env.RequestID,
		"patientId": env.Request.PatientID,
		"doctor":    env.Request.Doctor,
	})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := writer.WriteField("metadata", string(meta)); err != nil {
		return fmt.Errorf("failed to write metadata field: %w", err)
	}

	part, err := writer.CreateFormFile("report", fmt.Sprintf("report_%s.pdf", env.RequestID))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(pdf)); err != nil {
		return fmt.Errorf("failed to copy report data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.BaseURL+"/v1/reports", body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if n.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.APIKey)
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		n.logger.Warn("notification gateway rejected report",
			zap.String("request_id", env.RequestID),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, respBody)
	}
	return nil
}
