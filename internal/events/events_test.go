package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureProducer struct {
	msgs []kafka.Message
	err  error
}

func (c *captureProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func sampleEvent() domain.Event {
	return domain.Event{
		Type:        domain.EventHoldCreated,
		AggregateID: "hold-1",
		ProductID:   "product-1",
		Quantity:    2,
		OccurredAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	producer := &captureProducer{}
	pub := NewKafkaPublisher(producer, "stock-events", nil)
	require.NoError(t, pub.Publish(ctx, sampleEvent()))

	require.Len(t, producer.msgs, 1)
	msg := producer.msgs[0]
	assert.Equal(t, "stock-events", msg.Topic)
	assert.Equal(t, "product-1", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "hold.created", headers[EventTypeHeader])
	assert.NotEmpty(t, headers["traceparent"])

	var got domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "hold-1", got.AggregateID)
	assert.Equal(t, 2, got.Quantity)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaPublisher(&captureProducer{err: boom}, "stock-events", zap.NewNop())
	err := pub.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := NewLogPublisher(zap.New(core))

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	entries := logs.FilterMessage("domain event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hold.created", entries[0].ContextMap()["event_type"])
}
