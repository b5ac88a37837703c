package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/api/middleware"
	"github.com/dermaflow/go-clinic/internal/domain/patient"
)

// PatientHandler handles patient record endpoints
type PatientHandler struct {
	repo   *patient.Repository
	logger *zap.Logger
}

// NewPatientHandler creates a new handler
func NewPatientHandler(repo *patient.Repository, logger *zap.Logger) *PatientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientHandler{repo: repo, logger: logger}
}

// Routes returns the handler routes
func (h *PatientHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Put("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
	return r
}

// List handles GET /patients. Supports status, sortBy and order query
// parameters.
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f := patient.Filters{
		Status:         patient.Status(r.URL.Query().Get("status")),
		SortBy:         r.URL.Query().Get("sortBy"),
		SortDescending: r.URL.Query().Get("order") == "desc",
	}

	patients, err := h.repo.List(ctx, f)
	if err != nil {
		h.logger.Error("patient list failed", zap.Error(err))
		h.jsonError(w, "failed to list patients", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, patients)
}

// Create handles POST /patients
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var p patient.Patient
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if p.Name == "" {
		h.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.Create(ctx, p)
	if err != nil {
		h.logger.Error("patient create failed", zap.Error(err))
		h.jsonError(w, "failed to create patient", http.StatusInternalServerError)
		return
	}

	h.logger.Info("patient created",
		zap.String("patient_id", created.ID),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	h.respond(w, http.StatusCreated, created)
}

// Get handles GET /patients/{id}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	p, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			h.jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("patient get failed", zap.Error(err))
		h.jsonError(w, "failed to load patient", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, p)
}

// Update handles PUT /patients/{id}. The body is a partial update; absent
// fields keep their stored values.
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var upd patient.Patient
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.repo.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			h.jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("patient update failed", zap.Error(err))
		h.jsonError(w, "failed to update patient", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, updated)
}

// StatusRequest sets the record status.
type StatusRequest struct {
	Status patient.Status `json:"status"`
}

// UpdateStatus handles PUT /patients/{id}/status
func (h *PatientHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		h.jsonError(w, "invalid status", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			h.jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("status update failed", zap.Error(err))
		h.jsonError(w, "failed to update status", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

// Delete handles DELETE /patients/{id}
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			h.jsonError(w, "patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("patient delete failed", zap.Error(err))
		h.jsonError(w, "failed to delete patient", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PatientHandler) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (h *PatientHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
