package domain

import "time"

// Hold represents reserved stock for a limited time. Holds are never deleted;
// Used and Released are terminal and mutually exclusive.
type Hold struct {
	ID        string
	ProductID string
	Quantity  int
	ExpiresAt time.Time
	Used      bool
	Released  bool
	CreatedAt time.Time
}

func (h Hold) IsExpired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// IsResolved reports whether the hold reached a terminal state.
func (h Hold) IsResolved() bool {
	return h.Used || h.Released
}

func (h Hold) IsValid(now time.Time) bool {
	return h.State(now) == nil
}

// State returns why the hold cannot be converted, or nil. Terminal states take
// precedence over expiry so a consumed hold reports its real cause.
func (h Hold) State(now time.Time) error {
	switch {
	case h.Used:
		return ErrHoldAlreadyUsed
	case h.Released:
		return ErrHoldReleased
	case h.IsExpired(now):
		return ErrHoldExpired
	}
	return nil
}
