package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/infrastructure/redpanda"
	"github.com/dermaflow/go-clinic/pkg/idempotency"
	"github.com/dermaflow/go-clinic/pkg/workerpool"
)

const handlerName = "report-delivery"

// Service consumes report.send envelopes, renders each report once and
// delivers it to the notification gateway. Rendering and delivery run on a
// worker pool so slow gateway calls do not serialize behind each other;
// the consumer offset is committed only after the envelope's task finishes.
type Service struct {
	composer *Composer
	notifier *Notifier
	producer *redpanda.Producer
	inbox    *idempotency.Inbox
	pool     *workerpool.Pool
	logger   *zap.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	waiters map[string]chan *workerpool.Result

	stopOnce sync.Once
	done     chan struct{}
}

// NewService wires the delivery pipeline. poolCfg sizes the render workers.
func NewService(composer *Composer, notifier *Notifier, producer *redpanda.Producer, inbox *idempotency.Inbox, poolCfg workerpool.Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		composer: composer,
		notifier: notifier,
		producer: producer,
		inbox:    inbox,
		logger:   logger,
		tracer:   otel.Tracer("report-service"),
		waiters:  make(map[string]chan *workerpool.Result),
		done:     make(chan struct{}),
	}

	pool, err := workerpool.New(poolCfg, s.processTask, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	s.pool = pool

	return s, nil
}

// Start launches the workers and the result dispatcher.
func (s *Service) Start() {
	s.pool.Start()
	go s.dispatchResults()
}

// Stop drains the pool and stops the dispatcher.
func (s *Service) Stop() error {
	err := s.pool.Stop()
	s.stopOnce.Do(func() { close(s.done) })
	return err
}

// Handle is the consumer callback for report.send. It blocks until the
// envelope's delivery task completes so that commit-on-success holds.
func (s *Service) Handle(ctx context.Context, msg *redpanda.ConsumedMessage) error {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		// Malformed envelope will never parse on redelivery either.
		s.logger.Error("dropping malformed send envelope",
			zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	if env.Request == nil || env.Request.PatientID == "" {
		s.logger.Error("dropping incomplete send envelope",
			zap.String("request_id", env.RequestID))
		return nil
	}

	wait := s.registerWaiter(env.RequestID)
	defer s.removeWaiter(env.RequestID)

	task := &workerpool.Task{
		ID:      env.RequestID,
		Payload: &env,
		Context: ctx,
	}
	if err := s.pool.Submit(task); err != nil {
		return fmt.Errorf("failed to submit delivery task: %w", err)
	}

	select {
	case res := <-wait:
		if !res.Success {
			return res.Error
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) processTask(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	env, ok := task.Payload.(*Envelope)
	if !ok {
		return &workerpool.Result{TaskID: task.ID, Success: false,
			Error: fmt.Errorf("unexpected payload type %T", task.Payload)}
	}

	if err := s.deliverOnce(ctx, env); err != nil {
		return &workerpool.Result{TaskID: task.ID, Success: false, Error: err}
	}
	return &workerpool.Result{TaskID: task.ID, Success: true}
}

func (s *Service) deliverOnce(ctx context.Context, env *Envelope) error {
	ctx, span := s.tracer.Start(ctx, "report_deliver",
		trace.WithAttributes(
			attribute.String("request_id", env.RequestID),
			attribute.String("patient_id", env.Request.PatientID),
		))
	defer span.End()

	key := idempotency.Key("report-send", env.RequestID)
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	result, err := s.inbox.Process(ctx, key, handlerName, payload, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		pdf, err := s.composer.Compose(env.Request)
		if err != nil {
			return nil, fmt.Errorf("failed to compose report: %w", err)
		}
		if err := s.notifier.Deliver(ctx, env, pdf); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int{"pdfBytes": len(pdf)})
	})
	if err != nil {
		span.RecordError(err)
		s.publishStatus(ctx, env, StatusFailed, err.Error())
		return err
	}

	if !result.IsNew {
		s.logger.Info("report already delivered, skipping",
			zap.String("request_id", env.RequestID))
		return nil
	}

	s.publishStatus(ctx, env, StatusDelivered, "")
	s.logger.Info("report delivered",
		zap.String("request_id", env.RequestID),
		zap.String("patient_id", env.Request.PatientID),
		zap.Bool("recovered", result.WasRecovered))
	return nil
}

func (s *Service) publishStatus(ctx context.Context, env *Envelope, status, detail string) {
	event := StatusEvent{
		RequestID:  env.RequestID,
		PatientID:  env.Request.PatientID,
		Status:     status,
		Detail:     detail,
		FinishedAt: time.Now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode status event", zap.Error(err))
		return
	}
	if err := s.producer.ProduceMessage(ctx, redpanda.TopicReportStatus, env.Request.PatientID, value); err != nil {
		// Status events are advisory; delivery outcome is already recorded
		// in the inbox.
		s.logger.Error("failed to publish status event",
			zap.String("request_id", env.RequestID), zap.Error(err))
	}
}

func (s *Service) registerWaiter(id string) chan *workerpool.Result {
	ch := make(chan *workerpool.Result, 1)
	s.mu.Lock()
	s.waiters[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *Service) removeWaiter(id string) {
	s.mu.Lock()
	delete(s.waiters, id)
	s.mu.Unlock()
}

func (s *Service) dispatchResults() {
	for {
		select {
		case <-s.done:
			return
		case res, ok := <-s.pool.Results():
			if !ok {
				return
			}
			s.mu.Lock()
			ch, exists := s.waiters[res.TaskID]
			s.mu.Unlock()
			if exists {
				ch <- res
			}
		}
	}
}
