package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const apiPrefix = "/api"

// returnedHeaders are copied from the upstream response to the caller.
var returnedHeaders = []string{"Content-Type", "X-Order-Persisted"}

type Handler struct {
	ordersProxy    *ServiceProxy
	inventoryProxy *ServiceProxy
	logger         *slog.Logger
}

func NewHandler(ordersProxy, inventoryProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:    ordersProxy,
		inventoryProxy: inventoryProxy,
		logger:         logger,
	}
}

// RegisterRoutes exposes the order, payment and menu APIs under /api.
// The realtime socket is served by the orders service directly.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc(apiPrefix+"/orders", h.HandleOrders)
	r.HandleFunc(apiPrefix+"/orders/*", h.HandleOrders)
	r.HandleFunc(apiPrefix+"/payments/*", h.HandleOrders)
	r.HandleFunc(apiPrefix+"/menu", h.HandleMenu)
	r.HandleFunc(apiPrefix+"/menu/*", h.HandleMenu)
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, upstreamPath(r))
}

func (h *Handler) HandleMenu(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.inventoryProxy, upstreamPath(r))
}

func upstreamPath(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	if path == "" {
		return "/"
	}
	return path
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range returnedHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
