package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories over one pool so a workflow that spans
// several of them shares a single transaction.
type Store struct {
	*ProductRepository
	*HoldRepository
	*OrderRepository
	*SettlementRepository

	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		ProductRepository:    NewProductRepository(pool),
		HoldRepository:       NewHoldRepository(pool),
		OrderRepository:      NewOrderRepository(pool),
		SettlementRepository: NewSettlementRepository(pool),
		pool:                 pool,
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, fn)
}
