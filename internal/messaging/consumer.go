package messaging

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	consumerTracer = otel.Tracer("messaging/consumer")
	consumerMeter  = otel.Meter("messaging/consumer")
)

// Handler processes one event payload. Returning an error stops the consumer
// without committing the message, so it is redelivered on restart.
type Handler func(ctx context.Context, payload []byte) error

// Consumer reads the order event log as part of a consumer group.
type Consumer struct {
	reader    *kafka.Reader
	topic     string
	groupID   string
	processed metric.Int64Counter
}

type ConsumerOption func(*kafka.ReaderConfig)

// WithStartOffset sets where a group with no committed offset begins,
// kafka.FirstOffset or kafka.LastOffset.
func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	processed, _ := consumerMeter.Int64Counter("messaging.messages_processed",
		metric.WithDescription("Event log messages handled, by outcome"))

	return &Consumer{
		reader:    kafka.NewReader(cfg),
		topic:     topic,
		groupID:   groupID,
		processed: processed,
	}
}

// Consume runs until ctx is cancelled, the reader fails or handler returns an
// error. Each message is committed only after handler succeeds.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.process(ctx, msg, handler); err != nil {
			return fmt.Errorf("handle %s offset %d: %w", c.topic, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit %s offset %d: %w", c.topic, msg.Offset, err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	outcome := "ok"
	err := handler(spanCtx, msg.Value)
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if c.processed != nil {
		c.processed.Add(spanCtx, 1, metric.WithAttributes(
			attribute.String("topic", c.topic),
			attribute.String("outcome", outcome),
		))
	}
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
