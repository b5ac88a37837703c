// Package handlers provides HTTP handlers for the clinic API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/api/middleware"
	"github.com/dermaflow/go-clinic/internal/catalog"
	"github.com/dermaflow/go-clinic/internal/domain/patient"
	"github.com/dermaflow/go-clinic/internal/domain/workflow"
	"github.com/dermaflow/go-clinic/internal/observability/metrics"
)

// CatalogStore is the catalog lookup needed for item selection.
type CatalogStore interface {
	GetTreatment(ctx context.Context, id int) (*catalog.Treatment, error)
	GetMedicine(ctx context.Context, id int) (*catalog.Medicine, error)
}

// WorkflowHandler handles workflow session endpoints
type WorkflowHandler struct {
	engine  *workflow.Engine
	catalog CatalogStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewWorkflowHandler creates a new handler
func NewWorkflowHandler(engine *workflow.Engine, cat CatalogStore, m *metrics.Metrics, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{
		engine:  engine,
		catalog: cat,
		metrics: m,
		logger:  logger,
	}
}

// Routes returns the handler routes
func (h *WorkflowHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Discard)
	r.Get("/{id}/events", h.GetEvents)
	r.Post("/{id}/steps/complete", h.CompleteStep)
	r.Post("/{id}/steps/goto", h.GoToStep)
	r.Post("/{id}/treatments", h.SelectTreatment)
	r.Post("/{id}/medicines", h.SelectMedicine)
	r.Delete("/{id}/items/{kind}/{itemID}", h.RemoveItem)
	r.Put("/{id}/confirmation", h.Confirm)
	r.Post("/{id}/finish", h.Finish)
	return r
}

// StartRequest is the request body for starting a workflow session. Patient
// may carry a preloaded record to skip the store fetch.
type StartRequest struct {
	PatientID string           `json:"patientId"`
	Patient   *patient.Patient `json:"patient,omitempty"`
}

// SessionView is the session representation returned by the API.
type SessionView struct {
	ID         string                 `json:"id"`
	PatientID  string                 `json:"patientId"`
	Doctor     string                 `json:"doctor,omitempty"`
	ActiveStep int                    `json:"activeStep"`
	Watermark  int                    `json:"watermark"`
	Confirmed  bool                   `json:"confirmed"`
	Terminated bool                   `json:"terminated"`
	Patient    *patient.Patient       `json:"patient"`
	Draft      *patient.TreatmentPlan `json:"draft"`
}

func viewOf(s *workflow.Session) SessionView {
	return SessionView{
		ID:         s.ID(),
		PatientID:  s.PatientID(),
		Doctor:     s.Doctor(),
		ActiveStep: s.ActiveStep(),
		Watermark:  s.Watermark(),
		Confirmed:  s.Confirmed(),
		Terminated: s.Terminated(),
		Patient:    s.Patient(),
		Draft:      s.Draft(),
	}
}

// Start handles POST /sessions
func (h *WorkflowHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("workflow-handler")
	ctx, span := tracer.Start(ctx, "start_session")
	defer span.End()

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" && req.Patient == nil {
		h.jsonError(w, "patientId is required", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" {
		req.PatientID = req.Patient.ID
	}
	span.SetAttributes(attribute.String("patient_id", req.PatientID))

	doctor := middleware.GetDoctor(ctx)
	s, err := h.engine.LoadSession(ctx, req.PatientID, req.Patient, doctor)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			h.jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("session load failed", zap.Error(err))
		h.jsonError(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	h.metrics.SessionsStarted.Inc()
	h.metrics.ActiveSessions.Inc()
	h.logger.Info("workflow session started",
		zap.String("session_id", s.ID()),
		zap.String("patient_id", s.PatientID()),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.respond(w, http.StatusCreated, viewOf(s))
}

// Get handles GET /sessions/{id}
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, viewOf(s))
}

// Discard handles DELETE /sessions/{id}
func (h *WorkflowHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.engine.Session(id); ok {
		h.engine.Discard(id)
		h.metrics.ActiveSessions.Dec()
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEvents handles GET /sessions/{id}/events
func (h *WorkflowHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, s.Events())
}

// CompleteStep handles POST /sessions/{id}/steps/complete. The body is a
// partial patient update applied before the step boundary is committed.
func (h *WorkflowHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var upd patient.Patient
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	step := s.ActiveStep()
	start := time.Now()
	if err := h.engine.CompleteStep(ctx, s, upd); err != nil {
		h.workflowError(w, err)
		return
	}
	h.metrics.StepDuration.WithLabelValues(strconv.Itoa(step)).Observe(time.Since(start).Seconds())
	h.metrics.StepsCompleted.WithLabelValues(strconv.Itoa(step)).Inc()

	h.respond(w, http.StatusOK, viewOf(s))
}

// GoToStepRequest is the request for revisiting a step.
type GoToStepRequest struct {
	Step int `json:"step"`
}

// GoToStep handles POST /sessions/{id}/steps/goto
func (h *WorkflowHandler) GoToStep(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req GoToStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.GoToStep(req.Step); err != nil {
		h.workflowError(w, err)
		return
	}
	h.respond(w, http.StatusOK, viewOf(s))
}

// SelectItemRequest names a catalog item by ID.
type SelectItemRequest struct {
	ID int `json:"id"`
}

// SelectTreatment handles POST /sessions/{id}/treatments
func (h *WorkflowHandler) SelectTreatment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.catalog.GetTreatment(ctx, req.ID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			h.jsonError(w, "treatment not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, "failed to load treatment", http.StatusInternalServerError)
		return
	}

	s.SelectTreatment(*t)
	h.respond(w, http.StatusOK, viewOf(s))
}

// SelectMedicine handles POST /sessions/{id}/medicines
func (h *WorkflowHandler) SelectMedicine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	m, err := h.catalog.GetMedicine(ctx, req.ID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			h.jsonError(w, "medicine not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, "failed to load medicine", http.StatusInternalServerError)
		return
	}

	s.SelectMedicine(*m)
	h.respond(w, http.StatusOK, viewOf(s))
}

// RemoveItem handles DELETE /sessions/{id}/items/{kind}/{itemID}
func (h *WorkflowHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	itemID, err := strconv.Atoi(chi.URLParam(r, "itemID"))
	if err != nil {
		h.jsonError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	kind := workflow.ItemKind(chi.URLParam(r, "kind"))
	if err := s.RemoveItem(kind, itemID); err != nil {
		h.workflowError(w, err)
		return
	}
	h.respond(w, http.StatusOK, viewOf(s))
}

// ConfirmRequest sets the send confirmation flag.
type ConfirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

// Confirm handles PUT /sessions/{id}/confirmation
func (h *WorkflowHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.Confirm(req.Confirmed)
	h.respond(w, http.StatusOK, viewOf(s))
}

// Finish handles POST /sessions/{id}/finish
func (h *WorkflowHandler) Finish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := h.engine.Finish(ctx, s); err != nil {
		// Precondition rejections are not delivery failures.
		if errors.Is(err, workflow.ErrSendFailed) {
			h.metrics.ReportsFailed.Inc()
		}
		h.workflowError(w, err)
		return
	}

	h.metrics.ReportsSent.Inc()
	h.metrics.SessionsCompleted.Inc()
	h.metrics.ActiveSessions.Dec()
	h.logger.Info("workflow finished",
		zap.String("session_id", s.ID()),
		zap.String("patient_id", s.PatientID()),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.respond(w, http.StatusOK, viewOf(s))
}

func (h *WorkflowHandler) session(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.engine.Session(id)
	if !ok {
		h.jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *WorkflowHandler) workflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		h.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, workflow.ErrNotConfirmed),
		errors.Is(err, workflow.ErrNotAtSendStep):
		h.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, workflow.ErrSessionTerminated):
		h.jsonError(w, err.Error(), http.StatusGone)
	case errors.Is(err, workflow.ErrUnknownItemKind):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, workflow.ErrPersistFailed),
		errors.Is(err, workflow.ErrSendFailed):
		h.jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("workflow operation failed", zap.Error(err))
		h.jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *WorkflowHandler) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (h *WorkflowHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
