package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/domain/patient"
)

// PatientStore is the engine's contract with the patient record store.
// Update is a partial merge by ID and is assumed atomic per call; the
// engine layers no locking or versioning on top (last-write-wins).
type PatientStore interface {
	GetByID(ctx context.Context, id string) (*patient.Patient, error)
	Update(ctx context.Context, id string, upd patient.Patient) (*patient.Patient, error)
}

// SendRequest is the payload handed to the report sender at finish.
type SendRequest struct {
	PatientID string                `json:"patientId"`
	Doctor    string                `json:"doctor,omitempty"`
	Plan      patient.TreatmentPlan `json:"treatmentPlan"`
}

// ReportSender delivers the finalized report to the patient.
type ReportSender interface {
	Send(ctx context.Context, req *SendRequest) error
}

// Engine owns the active workflow sessions and coordinates persistence
// with the patient store. One session per patient per client is assumed;
// the engine only guards its own registry.
type Engine struct {
	store  PatientStore
	sender ReportSender
	logger *zap.Logger
	tracer trace.Tracer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewEngine creates a new workflow engine.
func NewEngine(store PatientStore, sender ReportSender, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		sender:   sender,
		logger:   logger,
		tracer:   otel.Tracer("workflow-engine"),
		sessions: make(map[string]*Session),
	}
}

// LoadSession starts a session for a patient. A preloaded patient (carried
// through navigation context) is used as-is and suppresses the fetch;
// otherwise the store is queried by ID. The session starts at the
// information step.
func (e *Engine) LoadSession(ctx context.Context, patientID string, preloaded *patient.Patient, doctor string) (*Session, error) {
	ctx, span := e.tracer.Start(ctx, "load_session",
		trace.WithAttributes(attribute.String("patient_id", patientID)))
	defer span.End()

	p := preloaded
	if p == nil {
		var err error
		p, err = e.store.GetByID(ctx, patientID)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, patient.ErrNotFound) {
				return nil, fmt.Errorf("load session for %s: %w", patientID, patient.ErrNotFound)
			}
			return nil, fmt.Errorf("load session for %s: %w", patientID, err)
		}
	}

	s := newSession(p, doctor)

	e.mu.Lock()
	e.sessions[s.ID()] = s
	e.mu.Unlock()

	e.logger.Info("workflow session started",
		zap.String("session_id", s.ID()),
		zap.String("patient_id", p.ID),
		zap.Bool("preloaded", preloaded != nil),
	)
	return s, nil
}

// Session returns an active session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	return s, ok
}

// Discard drops a session without persisting the draft, matching the
// abandon-on-navigate-away behavior of the portal.
func (e *Engine) Discard(id string) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

// CompleteStep folds the caller's partial update and the draft into the
// patient record, persists the merged record, and advances the step. The
// merge is shallow at the top level with the treatment plan one level
// deeper; the plan's medication schedule is recomputed from the selection
// before the write.
//
// On a failed write the step and the draft are left untouched so the same
// call can be retried; the partial update has already been folded into the
// draft, which is deliberate (the user's edits stay visible).
func (e *Engine) CompleteStep(ctx context.Context, s *Session, upd patient.Patient) error {
	ctx, span := e.tracer.Start(ctx, "complete_step",
		trace.WithAttributes(
			attribute.String("session_id", s.ID()),
			attribute.Int("step", s.ActiveStep()),
		))
	defer span.End()

	if s.Terminated() {
		return ErrSessionTerminated
	}

	// The draft is the single source of truth for the plan; plan edits in
	// the partial update are folded into it before the commit.
	if upd.TreatmentPlan != nil {
		s.draft = patient.MergePlan(s.draft, upd.TreatmentPlan)
	}
	s.draft.Medications = DerivedMedications(s.draft.SelectedMedicines)

	merged := patient.Merge(*s.patient, patient.Patient{
		Name:      upd.Name,
		Phone:     upd.Phone,
		Email:     upd.Email,
		Condition: upd.Condition,
		LastVisit: upd.LastVisit,
		Status:    upd.Status,
	})
	merged.TreatmentPlan = s.draft.Clone()

	persisted, err := e.store.Update(ctx, s.PatientID(), merged)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("step persistence failed",
			zap.String("session_id", s.ID()),
			zap.String("patient_id", s.PatientID()),
			zap.Int("step", s.ActiveStep()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	s.patient = persisted
	s.advance()

	e.logger.Info("workflow step completed",
		zap.String("session_id", s.ID()),
		zap.String("patient_id", s.PatientID()),
		zap.Int("active_step", s.ActiveStep()),
		zap.Int("watermark", s.Watermark()),
	)
	return nil
}

// Finish triggers the terminal report send. It requires the session to be
// at the send step with the confirmation flag set. On success the session
// terminates and is dropped from the registry; on failure the session is
// unchanged and the caller retries.
func (e *Engine) Finish(ctx context.Context, s *Session) error {
	ctx, span := e.tracer.Start(ctx, "finish_workflow",
		trace.WithAttributes(attribute.String("session_id", s.ID())))
	defer span.End()

	if s.Terminated() {
		return ErrSessionTerminated
	}
	if s.ActiveStep() != StepSend {
		return fmt.Errorf("%w: at step %d", ErrNotAtSendStep, s.ActiveStep())
	}
	if !s.Confirmed() {
		return ErrNotConfirmed
	}

	plan := s.draft.Clone()
	plan.Medications = DerivedMedications(plan.SelectedMedicines)

	req := &SendRequest{
		PatientID: s.PatientID(),
		Doctor:    s.Doctor(),
		Plan:      *plan,
	}

	if err := e.sender.Send(ctx, req); err != nil {
		span.RecordError(err)
		e.logger.Error("report send failed",
			zap.String("session_id", s.ID()),
			zap.String("patient_id", s.PatientID()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	s.done = true
	s.record(EventReportSent, &ReportSentData{
		PatientID: s.PatientID(),
		Doctor:    s.Doctor(),
		SentAt:    time.Now().UTC(),
	})

	e.Discard(s.ID())

	e.logger.Info("workflow finished",
		zap.String("session_id", s.ID()),
		zap.String("patient_id", s.PatientID()),
	)
	return nil
}
