package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a purchase derived from exactly one hold.
type Order struct {
	ID        string
	ProductID string
	HoldID    string
	Quantity  int
	Total     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// OrderTotal returns price × quantity rounded to cents.
func OrderTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
