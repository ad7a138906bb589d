package postgres

import (
	"context"
	"errors"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettlementRepository struct {
	db
}

func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{db: db{pool: pool}}
}

func (r *SettlementRepository) FindSettlement(ctx context.Context, key string) (*domain.Settlement, error) {
	const query = `
SELECT idempotency_key, order_id, outcome, processed, payload, COALESCE(order_status, ''), created_at
FROM settlements
WHERE idempotency_key = $1`

	var (
		s       domain.Settlement
		payload []byte
	)
	err := r.queryRow(ctx, query, key).
		Scan(&s.IdempotencyKey, &s.OrderID, &s.Outcome, &s.Processed, &payload, &s.OrderStatus, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("find settlement", err)
	}
	s.Payload = payload
	return &s, nil
}

// ClaimSettlement relies on the primary key: a concurrent insert of the same
// key waits for the other transaction and then inserts nothing.
func (r *SettlementRepository) ClaimSettlement(ctx context.Context, s domain.Settlement) (bool, error) {
	const stmt = `
INSERT INTO settlements (idempotency_key, order_id, outcome, processed, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (idempotency_key) DO NOTHING`

	var payload any
	if len(s.Payload) > 0 {
		payload = []byte(s.Payload)
	}
	tag, err := r.exec(ctx, stmt, s.IdempotencyKey, s.OrderID, s.Outcome, s.Processed, payload, s.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrOrderNotFound
		}
		return false, wrapErr("claim settlement", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SettlementRepository) MarkSettlementProcessed(ctx context.Context, key string, status domain.OrderStatus) error {
	const stmt = `UPDATE settlements SET processed = TRUE, order_status = $2 WHERE idempotency_key = $1`
	tag, err := r.exec(ctx, stmt, key, status)
	if err != nil {
		return wrapErr("mark settlement processed", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("mark settlement processed: record not found")
	}
	return nil
}
