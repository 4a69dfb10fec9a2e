package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

var meter = otel.Meter("realtime")

// Sink is one destination of the event fan-out.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event domain.Event, payload []byte) error
}

// Fanout encodes each event once and hands it to every sink in order.
// Publishing never fails: sink errors and panics are logged and counted,
// and the remaining sinks still receive the event.
type Fanout struct {
	sinks    []Sink
	logger   *slog.Logger
	failures metric.Int64Counter
	sent     metric.Int64Counter
}

func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	f := &Fanout{sinks: sinks, logger: logger}
	f.failures, _ = meter.Int64Counter("realtime.broadcast_failures",
		metric.WithDescription("Events a sink failed to deliver"),
		metric.WithUnit("{event}"))
	f.sent, _ = meter.Int64Counter("realtime.events_published",
		metric.WithDescription("Events handed to the fan-out"),
		metric.WithUnit("{event}"))
	return f
}

func (f *Fanout) Publish(ctx context.Context, event domain.Event) {
	payload, err := domain.EncodeEvent(event)
	if err != nil {
		f.logger.Error("failed to encode event", "error", err, "event", event.Name(), "order_id", event.OrderID())
		return
	}

	f.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(event.Name()))))

	for _, sink := range f.sinks {
		if err := f.deliver(ctx, sink, event, payload); err != nil {
			f.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("sink", sink.Name()),
				attribute.String("event", string(event.Name())),
			))
			f.logger.Error("failed to broadcast event", "error", err, "sink", sink.Name(),
				"event", event.Name(), "order_id", event.OrderID())
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, sink Sink, event domain.Event, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Deliver(ctx, event, payload)
}
