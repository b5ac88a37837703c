package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/api/middleware"
	"github.com/dermaflow/go-clinic/internal/assistant"
)

// AssistantHandler proxies chat and recommendation requests to the AI
// assistant gateway.
type AssistantHandler struct {
	client *assistant.Client
	logger *zap.Logger
}

// NewAssistantHandler creates a new handler
func NewAssistantHandler(client *assistant.Client, logger *zap.Logger) *AssistantHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantHandler{client: client, logger: logger}
}

// Routes returns the handler routes
func (h *AssistantHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/chat", h.Chat)
	r.Post("/recommendations", h.Recommend)
	return r
}

// Chat handles POST /assistant/chat
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assistant.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		h.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.Doctor == "" {
		req.Doctor = middleware.GetDoctor(ctx)
	}

	resp, err := h.client.Chat(ctx, &req)
	if err != nil {
		h.gatewayError(w, err)
		return
	}
	h.respond(w, http.StatusOK, resp)
}

// Recommend handles POST /assistant/recommendations
func (h *AssistantHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assistant.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" {
		h.jsonError(w, "patientId is required", http.StatusBadRequest)
		return
	}

	resp, err := h.client.Recommend(ctx, &req)
	if err != nil {
		h.gatewayError(w, err)
		return
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *AssistantHandler) gatewayError(w http.ResponseWriter, err error) {
	if errors.Is(err, assistant.ErrUnavailable) {
		h.jsonError(w, "assistant unavailable", http.StatusServiceUnavailable)
		return
	}
	h.logger.Error("assistant call failed", zap.Error(err))
	h.jsonError(w, "assistant call failed", http.StatusBadGateway)
}

func (h *AssistantHandler) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (h *AssistantHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
