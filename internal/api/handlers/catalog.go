package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/catalog"
)

// CatalogHandler handles treatment and medicine catalog endpoints
type CatalogHandler struct {
	repo   *catalog.Repository
	logger *zap.Logger
}

// NewCatalogHandler creates a new handler
func NewCatalogHandler(repo *catalog.Repository, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{repo: repo, logger: logger}
}

// Routes returns the handler routes
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/treatments", h.ListTreatments)
	r.Post("/treatments", h.CreateTreatment)
	r.Delete("/treatments/{id}", h.DeleteTreatment)
	r.Get("/medicines", h.ListMedicines)
	r.Post("/medicines", h.CreateMedicine)
	r.Delete("/medicines/{id}", h.DeleteMedicine)
	return r
}

// ListTreatments handles GET /catalog/treatments
func (h *CatalogHandler) ListTreatments(w http.ResponseWriter, r *http.Request) {
	treatments, err := h.repo.ListTreatments(r.Context())
	if err != nil {
		h.logger.Error("treatment list failed", zap.Error(err))
		h.jsonError(w, "failed to list treatments", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, treatments)
}

// CreateTreatment handles POST /catalog/treatments
func (h *CatalogHandler) CreateTreatment(w http.ResponseWriter, r *http.Request) {
	var t catalog.Treatment
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if t.Name == "" {
		h.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.CreateTreatment(r.Context(), t)
	if err != nil {
		h.logger.Error("treatment create failed", zap.Error(err))
		h.jsonError(w, "failed to create treatment", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusCreated, created)
}

// DeleteTreatment handles DELETE /catalog/treatments/{id}
func (h *CatalogHandler) DeleteTreatment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteTreatment(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			h.jsonError(w, "treatment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("treatment delete failed", zap.Error(err))
		h.jsonError(w, "failed to delete treatment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMedicines handles GET /catalog/medicines
func (h *CatalogHandler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.repo.ListMedicines(r.Context())
	if err != nil {
		h.logger.Error("medicine list failed", zap.Error(err))
		h.jsonError(w, "failed to list medicines", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, medicines)
}

// CreateMedicine handles POST /catalog/medicines
func (h *CatalogHandler) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	var m catalog.Medicine
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if m.Name == "" {
		h.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.CreateMedicine(r.Context(), m)
	if err != nil {
		h.logger.Error("medicine create failed", zap.Error(err))
		h.jsonError(w, "failed to create medicine", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusCreated, created)
}

// DeleteMedicine handles DELETE /catalog/medicines/{id}
func (h *CatalogHandler) DeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteMedicine(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			h.jsonError(w, "medicine not found", http.StatusNotFound)
			return
		}
		h.logger.Error("medicine delete failed", zap.Error(err))
		h.jsonError(w, "failed to delete medicine", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (h *CatalogHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
