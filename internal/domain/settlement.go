package domain

import (
	"encoding/json"
	"time"
)

// Outcome is the payment result reported by the external notifier.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeSuccess, OutcomeFailed:
		return Outcome(s), nil
	}
	return "", ErrInvalidOutcome
}

// Settlement is an idempotency ledger entry. Its existence means the
// notification identified by IdempotencyKey has been handled.
type Settlement struct {
	IdempotencyKey string
	OrderID        string
	Outcome        Outcome
	Processed      bool
	Payload        json.RawMessage
	// OrderStatus is the order status this notification produced or observed.
	OrderStatus OrderStatus
	CreatedAt   time.Time
}
