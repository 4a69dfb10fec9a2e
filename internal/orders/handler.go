package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/active", h.HandleActive)
		r.Get("/by-table/{tableId}", h.HandleByTable)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}/status", h.HandleUpdateStatus)
		r.Patch("/{id}/status", h.HandleUpdateStatus)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Post("/status", h.HandlePaymentStatus)
		r.Get("/verify/{orderId}", h.HandleVerifyPayment)
	})
}

type createOrderRequest struct {
	TableID       string        `json:"table_id"`
	TableNumber   int           `json:"table_number"`
	CustomerPhone string        `json:"customer_phone"`
	PaymentMethod string        `json:"payment_method"`
	Items         []LineRequest `json:"items"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), CreateOrderRequest{
		Table:         TableRef{TableID: req.TableID, TableNumber: req.TableNumber},
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		h.handleServiceError(w, err, "failed to create order")
		return
	}

	w.Header().Set("X-Order-Persisted", strconv.FormatBool(h.service.Persistent()))
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetActiveOrders(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "failed to list active orders")
		return
	}

	h.logger.Info("active orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

// HandleList serves GET /orders?status=&tableId=&startDate=&endDate=. Dates
// are RFC 3339 timestamps or plain YYYY-MM-DD days.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{TableID: q.Get("tableId")}

	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	var err error
	if filter.From, err = parseDate(q.Get("startDate")); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid startDate")
		return
	}
	if filter.To, err = parseDate(q.Get("endDate")); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid endDate")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, err, "failed to list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func (h *Handler) HandleByTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	orders, err := h.service.ListByTable(r.Context(), tableID)
	if err != nil {
		h.handleServiceError(w, err, "failed to list table orders")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.TransitionStatus(r.Context(), id, req.Status)
	if err != nil {
		h.handleServiceError(w, err, "failed to update order status")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req PaymentUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdatePayment(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err, "failed to update payment status")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")

	verification, err := h.service.VerifyPayment(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "failed to verify payment")
		return
	}

	h.writeJSON(w, http.StatusOK, verification)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrLineItemInvalid),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPersistenceUnavailable):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, ErrStaleStatus):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidTable),
		errors.Is(err, domain.ErrInvalidOrder):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(msg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
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
