package app

import (
	"context"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"go.uber.org/zap"
)

// LedgerRepository is the product-counter storage used by the stock ledger.
// Both calls run in the transaction carried by ctx.
type LedgerRepository interface {
	GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error)
	UpdateProductCounters(ctx context.Context, productID string, stock, reserved int) error
}

// Ledger mutates product stock counters. Every call must run inside a
// transaction; the product row stays locked until that transaction ends.
type Ledger interface {
	Lock(ctx context.Context, productID string) (domain.Product, error)
	Reserve(ctx context.Context, productID string, qty int) (domain.Product, error)
	ReleaseReservation(ctx context.Context, productID string, qty int) (domain.Product, error)
	Commit(ctx context.Context, productID string, qty int) (domain.Product, error)
	Invalidate(ctx context.Context, productIDs ...string)
}

// StockLedger is the only writer of Product.Stock and Product.Reserved.
type StockLedger struct {
	repo LedgerRepository
	opts options
}

func NewStockLedger(repo LedgerRepository, opts ...Option) *StockLedger {
	return &StockLedger{repo: repo, opts: newOptions(opts)}
}

// Lock takes the exclusive product lock without changing counters.
func (l *StockLedger) Lock(ctx context.Context, productID string) (domain.Product, error) {
	return l.repo.GetProductForUpdate(ctx, productID)
}

func (l *StockLedger) Reserve(ctx context.Context, productID string, qty int) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}
	p, err := l.repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if !p.HasAvailable(qty) {
		l.opts.logger.Warn("insufficient stock",
			zap.String("product_id", productID),
			zap.Int("requested", qty),
			zap.Int("available", p.Available()),
		)
		return p, domain.ErrInsufficientStock
	}
	p.Reserved += qty
	if err := l.repo.UpdateProductCounters(ctx, p.ID, p.Stock, p.Reserved); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// ReleaseReservation returns qty to the available pool. When fewer than qty
// units are reserved the call changes nothing, so a double release cannot
// drive the counter negative.
func (l *StockLedger) ReleaseReservation(ctx context.Context, productID string, qty int) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}
	p, err := l.repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if p.Reserved < qty {
		l.opts.logger.Warn("release exceeds reserved stock",
			zap.String("product_id", productID),
			zap.Int("requested", qty),
			zap.Int("reserved", p.Reserved),
		)
		return p, nil
	}
	p.Reserved -= qty
	if err := l.repo.UpdateProductCounters(ctx, p.ID, p.Stock, p.Reserved); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// Commit turns qty reserved units into sold units by taking them off both
// counters. Reserved never exceeds stock, so reserved >= qty is the only guard
// needed to keep both counters non-negative.
func (l *StockLedger) Commit(ctx context.Context, productID string, qty int) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}
	p, err := l.repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if p.Reserved < qty || p.Stock < qty {
		l.opts.logger.Warn("commit exceeds reserved stock",
			zap.String("product_id", productID),
			zap.Int("requested", qty),
			zap.Int("stock", p.Stock),
			zap.Int("reserved", p.Reserved),
		)
		return p, nil
	}
	p.Stock -= qty
	p.Reserved -= qty
	if err := l.repo.UpdateProductCounters(ctx, p.ID, p.Stock, p.Reserved); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// Invalidate drops cached product views. Call it after the mutating
// transaction has committed.
func (l *StockLedger) Invalidate(ctx context.Context, productIDs ...string) {
	if len(productIDs) == 0 {
		return
	}
	if err := l.opts.cache.Invalidate(ctx, productIDs...); err != nil {
		l.opts.logger.Warn("product cache invalidation failed",
			zap.Strings("product_ids", productIDs),
			zap.Error(err),
		)
	}
}
