package domain

import "time"

type EventType string

const (
	EventHoldCreated    EventType = "hold.created"
	EventHoldReleased   EventType = "hold.released"
	EventOrderCreated   EventType = "order.created"
	EventOrderPaid      EventType = "order.paid"
	EventOrderCancelled EventType = "order.cancelled"
)

// Event is a fact emitted after a committed stock mutation.
type Event struct {
	Type        EventType         `json:"type"`
	AggregateID string            `json:"aggregate_id"`
	ProductID   string            `json:"product_id"`
	Quantity    int               `json:"quantity"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}
