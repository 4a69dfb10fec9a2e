package domain

import (
	"encoding/json"
	"fmt"
)

type EventName string

const (
	EventOrderCreated   EventName = "order-created"
	EventOrderUpdated   EventName = "order-updated"
	EventPaymentUpdated EventName = "payment-updated"
)

// Event is one of OrderCreated, OrderUpdated or PaymentUpdated.
type Event interface {
	Name() EventName
	OrderID() string
	isEvent()
}

type OrderCreated struct {
	Order Order
}

func (OrderCreated) Name() EventName   { return EventOrderCreated }
func (e OrderCreated) OrderID() string { return e.Order.ID }
func (OrderCreated) isEvent()          {}

type OrderUpdated struct {
	Order Order
}

func (OrderUpdated) Name() EventName   { return EventOrderUpdated }
func (e OrderUpdated) OrderID() string { return e.Order.ID }
func (OrderUpdated) isEvent()          {}

type PaymentUpdated struct {
	Payment PaymentInfo
}

func (PaymentUpdated) Name() EventName   { return EventPaymentUpdated }
func (e PaymentUpdated) OrderID() string { return e.Payment.OrderID }
func (PaymentUpdated) isEvent()          {}

// Envelope is the wire form of an event: {"event": "...", "data": {...}}.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func EncodeEvent(e Event) ([]byte, error) {
	var data any
	switch ev := e.(type) {
	case OrderCreated:
		data = ev.Order
	case OrderUpdated:
		data = ev.Order
	case PaymentUpdated:
		data = ev.Payment
	default:
		return nil, fmt.Errorf("unsupported event %T", e)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Name(), err)
	}
	return json.Marshal(Envelope{Event: e.Name(), Data: raw})
}

func DecodeEvent(payload []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	switch env.Event {
	case EventOrderCreated, EventOrderUpdated:
		var order Order
		if err := json.Unmarshal(env.Data, &order); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Event, err)
		}
		if env.Event == EventOrderCreated {
			return OrderCreated{Order: order}, nil
		}
		return OrderUpdated{Order: order}, nil
	case EventPaymentUpdated:
		var info PaymentInfo
		if err := json.Unmarshal(env.Data, &info); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Event, err)
		}
		return PaymentUpdated{Payment: info}, nil
	}
	return nil, fmt.Errorf("unknown event %q", env.Event)
}
