package notify

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler accepts customer messages and acknowledges them once "sent".
// Delivery is simulated with a short random latency.
type Handler struct {
	logger  *slog.Logger
	latency func() time.Duration
}

type Option func(*Handler)

// WithLatency replaces the simulated delivery latency.
func WithLatency(latency func() time.Duration) Option {
	return func(h *Handler) {
		h.latency = latency
	}
}

func NewHandler(logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger: logger,
		latency: func() time.Duration {
			return time.Duration(50+rand.Intn(151)) * time.Millisecond
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/send", h.HandleSend)
}

type sendRequest struct {
	To      string `json:"to"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "to and message are required")
		return
	}

	select {
	case <-time.After(h.latency()):
	case <-r.Context().Done():
		return
	}

	h.logger.Info("customer message sent", "to", req.To, "order_id", req.OrderID, "message", req.Message)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
