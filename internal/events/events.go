// Package events delivers committed domain events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const EventTypeHeader = "event_type"

// Producer is the subset of *kafka.Writer the publisher uses.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes each event as JSON keyed by product id, so events for
// one product stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *zap.Logger
}

func NewKafkaPublisher(producer Producer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// NewKafkaWriter builds a writer whose hash balancer maps a key to a stable
// partition. The topic is set per message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := injectTraceHeaders(ctx, []kafka.Header{
		{Key: EventTypeHeader, Value: []byte(ev.Type)},
	})
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(ev.ProductID),
		Value:   payload,
		Headers: headers,
		Time:    ev.OccurredAt,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", ev.Type, err)
	}
	p.logger.Debug("event published",
		zap.String("event_type", string(ev.Type)),
		zap.String("aggregate_id", ev.AggregateID),
	)
	return nil
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

// LogPublisher writes events to the log. It is the default when no broker
// is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.logger.Info("domain event",
		zap.String("event_type", string(ev.Type)),
		zap.String("aggregate_id", ev.AggregateID),
		zap.String("product_id", ev.ProductID),
		zap.Int("quantity", ev.Quantity),
		zap.Time("occurred_at", ev.OccurredAt),
		zap.Any("attributes", ev.Attributes),
	)
	return nil
}
