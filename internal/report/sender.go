// Package report handles treatment report delivery: the workflow engine hands
// off a send request, a Kafka topic decouples the clinic API from rendering,
// and a consumer composes the PDF and pushes it to the notification gateway.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/domain/workflow"
	"github.com/dermaflow/go-clinic/internal/infrastructure/redpanda"
)

// Envelope wraps a send request on the wire. RequestID keys exactly-once
// processing on the consumer side.
type Envelope struct {
	RequestID   string                `json:"requestId"`
	RequestedAt time.Time             `json:"requestedAt"`
	Request     *workflow.SendRequest `json:"request"`
}

// StatusEvent reports the outcome of a delivery attempt on report.status.
type StatusEvent struct {
	RequestID  string    `json:"requestId"`
	PatientID  string    `json:"patientId"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

const (
	StatusDelivered = "DELIVERED"
	StatusFailed    = "FAILED"
)

// KafkaSender publishes send requests to the report.send topic. It satisfies
// the workflow engine's sender contract; the produce is synchronous so a
// broker outage surfaces to the doctor as a failed send with the session
// still at the send step.
type KafkaSender struct {
	producer *redpanda.Producer
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewKafkaSender creates a sender backed by the given producer.
func NewKafkaSender(producer *redpanda.Producer, logger *zap.Logger) *KafkaSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSender{
		producer: producer,
		logger:   logger,
		tracer:   otel.Tracer("report-sender"),
	}
}

// Send enqueues the request for delivery. Keyed by patient ID so retries for
// the same patient stay ordered on one partition.
func (s *KafkaSender) Send(ctx context.Context, req *workflow.SendRequest) error {
	ctx, span := s.tracer.Start(ctx, "report_send",
		trace.WithAttributes(attribute.String("patient_id", req.PatientID)))
	defer span.End()

	env := Envelope{
		RequestID:   uuid.New().String(),
		RequestedAt: time.Now().UTC(),
		Request:     req,
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode send request: %w", err)
	}

	if err := s.producer.ProduceMessage(ctx, redpanda.TopicReportSend, req.PatientID, value); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to enqueue report: %w", err)
	}

	s.logger.Info("report send enqueued",
		zap.String("request_id", env.RequestID),
		zap.String("patient_id", req.PatientID))
	return nil
}
