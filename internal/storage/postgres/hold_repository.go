package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HoldRepository struct {
	db
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{db: db{pool: pool}}
}

const holdColumns = `id, product_id, quantity, expires_at, used, released, created_at`

func (r *HoldRepository) CreateHold(ctx context.Context, hold domain.Hold) error {
	const stmt = `
INSERT INTO holds (id, product_id, quantity, expires_at, used, released, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		hold.ID,
		hold.ProductID,
		hold.Quantity,
		hold.ExpiresAt,
		hold.Used,
		hold.Released,
		hold.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductNotFound
		}
		return wrapErr("create hold", err)
	}
	return nil
}

func (r *HoldRepository) GetHold(ctx context.Context, holdID string) (domain.Hold, error) {
	return r.getHold(ctx, "get hold", `SELECT `+holdColumns+` FROM holds WHERE id = $1`, holdID)
}

func (r *HoldRepository) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	return r.getHold(ctx, "get hold for update", `SELECT `+holdColumns+` FROM holds WHERE id = $1 FOR NO KEY UPDATE`, holdID)
}

func (r *HoldRepository) getHold(ctx context.Context, op, query, holdID string) (domain.Hold, error) {
	h, err := scanHold(r.queryRow(ctx, query, holdID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, wrapErr(op, err)
	}
	return h, nil
}

func (r *HoldRepository) MarkHoldUsed(ctx context.Context, holdID string) (bool, error) {
	const stmt = `UPDATE holds SET used = TRUE WHERE id = $1 AND NOT used AND NOT released`
	tag, err := r.exec(ctx, stmt, holdID)
	if err != nil {
		return false, wrapErr("mark hold used", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *HoldRepository) MarkHoldReleased(ctx context.Context, holdID string) (bool, error) {
	const stmt = `UPDATE holds SET released = TRUE WHERE id = $1 AND NOT used AND NOT released`
	tag, err := r.exec(ctx, stmt, holdID)
	if err != nil {
		return false, wrapErr("mark hold released", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpiredHolds returns unresolved holds with expires_at <= now, oldest
// first. A non-positive limit returns all of them.
func (r *HoldRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	const query = `
SELECT ` + holdColumns + `
FROM holds
WHERE expires_at <= $1 AND NOT used AND NOT released
ORDER BY expires_at, id
LIMIT $2`

	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.query(ctx, query, now, lim)
	if err != nil {
		return nil, wrapErr("list expired holds", err)
	}
	defer rows.Close()

	var out []domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, wrapErr("scan hold", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list expired holds", err)
	}
	return out, nil
}

func scanHold(row pgx.Row) (domain.Hold, error) {
	var h domain.Hold
	err := row.Scan(&h.ID, &h.ProductID, &h.Quantity, &h.ExpiresAt, &h.Used, &h.Released, &h.CreatedAt)
	return h, err
}
