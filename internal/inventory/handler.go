package inventory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.HandleList)
	r.Get("/menu/low-stock", h.HandleLowStock)
	r.Get("/menu/{itemId}", h.HandleGet)
	r.Put("/menu/{itemId}/inventory", h.HandleRestock)
	r.Post("/menu/{itemId}/reserve", h.HandleReserve)
	r.Post("/menu/{itemId}/release", h.HandleRelease)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list menu items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("menu listed", "count", len(items))
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListLowStock(r.Context())
	if err != nil {
		h.logger.Error("failed to list low stock items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	item, err := h.store.GetItem(r.Context(), itemID)
	if err != nil {
		h.handleStoreError(w, err, "failed to get menu item", itemID)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type reserveResponse struct {
	ItemID    string `json:"item_id"`
	Remaining int    `json:"remaining"`
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	remaining, err := h.store.Reserve(r.Context(), itemID, req.Quantity)
	if err != nil {
		h.handleStoreError(w, err, "failed to reserve stock", itemID)
		return
	}

	h.logger.Info("stock reserved", "item_id", itemID, "quantity", req.Quantity, "remaining", remaining)
	h.writeJSON(w, http.StatusOK, reserveResponse{ItemID: itemID, Remaining: remaining})
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.Release(r.Context(), itemID, req.Quantity); err != nil {
		h.handleStoreError(w, err, "failed to release stock", itemID)
		return
	}

	item, err := h.store.GetItem(r.Context(), itemID)
	if err != nil {
		h.handleStoreError(w, err, "failed to get updated stock", itemID)
		return
	}

	h.logger.Info("stock released", "item_id", itemID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, item)
}

type restockRequest struct {
	InventoryCount *int `json:"inventory_count"`
}

func (h *Handler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InventoryCount == nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.store.Restock(r.Context(), itemID, *req.InventoryCount)
	if err != nil {
		h.handleStoreError(w, err, "failed to restock", itemID)
		return
	}

	h.logger.Info("item restocked", "item_id", itemID, "inventory_count", item.InventoryCount)
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleStoreError(w http.ResponseWriter, err error, msg, itemID string) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		h.writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, ErrInsufficientStock):
		h.writeError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, ErrInvalidQuantity):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(msg, "error", err, "item_id", itemID)
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
