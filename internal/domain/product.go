package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item whose stock is shared by every concurrent hold.
// Reserved counts units held or committed to a pending order; 0 <= Reserved <= Stock.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Reserved    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available returns the quantity offerable to new holds.
func (p Product) Available() int {
	if p.Reserved >= p.Stock {
		return 0
	}
	return p.Stock - p.Reserved
}

func (p Product) HasAvailable(qty int) bool {
	return p.Available() >= qty
}
