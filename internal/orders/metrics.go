package orders

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

var (
	tracer = otel.Tracer("orders")
	meter  = otel.Meter("orders")
)

type serviceMetrics struct {
	created     metric.Int64Counter
	rejected    metric.Int64Counter
	transitions metric.Int64Counter
}

func newServiceMetrics() *serviceMetrics {
	m := &serviceMetrics{}
	m.created, _ = meter.Int64Counter("orders.created",
		metric.WithDescription("Orders accepted"),
		metric.WithUnit("{order}"))
	m.rejected, _ = meter.Int64Counter("orders.rejected",
		metric.WithDescription("Order submissions refused, by reason"),
		metric.WithUnit("{order}"))
	m.transitions, _ = meter.Int64Counter("orders.status_transitions",
		metric.WithDescription("Applied status transitions"),
		metric.WithUnit("{transition}"))
	return m
}

func (m *serviceMetrics) recordCreated(ctx context.Context, order *domain.Order) {
	m.created.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", string(order.PaymentMethod)),
		attribute.String("status", string(order.Status)),
	))
}

func (m *serviceMetrics) recordRejected(ctx context.Context, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *serviceMetrics) recordTransition(ctx context.Context, from, to domain.Status) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}
