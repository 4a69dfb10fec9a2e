package realtime

import (
	"context"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// Publisher is satisfied by messaging.Producer and messaging.AMQPPublisher.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// BrokerSink forwards events to a message broker keyed by order id.
type BrokerSink struct {
	name      string
	publisher Publisher
}

func NewBrokerSink(name string, publisher Publisher) *BrokerSink {
	return &BrokerSink{name: name, publisher: publisher}
}

func (s *BrokerSink) Name() string {
	return s.name
}

func (s *BrokerSink) Deliver(ctx context.Context, event domain.Event, payload []byte) error {
	return s.publisher.Publish(ctx, event.OrderID(), payload)
}
