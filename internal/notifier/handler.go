package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

var meter = otel.Meter("notifier")

// Handler turns order events into customer messages. Delivery failures are
// logged and swallowed so a broken message sink never stalls the event log.
type Handler struct {
	notifyServiceURL string
	ordersServiceURL string
	httpClient       *http.Client
	logger           *slog.Logger
	sent             metric.Int64Counter
}

func NewHandler(notifyServiceURL, ordersServiceURL string, client *http.Client, logger *slog.Logger) *Handler {
	sent, err := meter.Int64Counter("notifier.messages",
		metric.WithDescription("Customer messages by outcome"))
	if err != nil {
		logger.Error("failed to create notifier counter", "error", err)
	}
	return &Handler{
		notifyServiceURL: notifyServiceURL,
		ordersServiceURL: ordersServiceURL,
		httpClient:       client,
		logger:           logger,
		sent:             sent,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	event, err := domain.DecodeEvent(payload)
	if err != nil {
		h.logger.Error("skipping undecodable event", "error", err)
		return nil
	}

	order, text, ok := h.compose(ctx, event)
	if !ok {
		return nil
	}

	phone := FormatPhoneNumber(order.CustomerPhone)
	if phone == "" {
		h.logger.Debug("order has no customer phone", "order_id", order.ID, "event", event.Name())
		return nil
	}

	if err := h.send(ctx, sendRequest{To: phone, OrderID: order.ID, Message: text}); err != nil {
		h.logger.Error("failed to send customer message", "error", err, "order_id", order.ID, "event", event.Name())
		h.count(ctx, "failed")
		return nil
	}

	h.logger.Info("customer notified", "order_id", order.ID, "event", event.Name())
	h.count(ctx, "sent")
	return nil
}

func (h *Handler) compose(ctx context.Context, event domain.Event) (domain.Order, string, bool) {
	switch ev := event.(type) {
	case domain.OrderCreated:
		text, ok := statusMessage(ev)
		return ev.Order, text, ok
	case domain.OrderUpdated:
		text, ok := statusMessage(ev)
		return ev.Order, text, ok
	case domain.PaymentUpdated:
		if ev.Payment.PaymentStatus != domain.PaymentPaid {
			return domain.Order{}, "", false
		}
		order, err := h.fetchOrder(ctx, ev.Payment.OrderID)
		if err != nil {
			h.logger.Error("failed to load order for payment message", "error", err, "order_id", ev.Payment.OrderID)
			return domain.Order{}, "", false
		}
		return order, paymentMessage(order), true
	}
	return domain.Order{}, "", false
}

func (h *Handler) fetchOrder(ctx context.Context, orderID string) (domain.Order, error) {
	url := fmt.Sprintf("%s/orders/%s", h.ordersServiceURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Order{}, err
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Order{}, fmt.Errorf("orders service returned status %d", resp.StatusCode)
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

func (h *Handler) send(ctx context.Context, body sendRequest) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifyServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify service returned status %d", resp.StatusCode)
	}
	return nil
}

func (h *Handler) count(ctx context.Context, outcome string) {
	if h.sent != nil {
		h.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
