package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db{pool: pool}}
}

const orderColumns = `id, product_id, hold_id, quantity, total::text, status, created_at, updated_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, product_id, hold_id, quantity, total, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		order.ID,
		order.ProductID,
		order.HoldID,
		order.Quantity,
		order.Total.String(),
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrHoldAlreadyUsed
		}
		if isForeignKeyViolation(err) {
			return domain.ErrHoldNotFound
		}
		return wrapErr("create order", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, "get order", `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

// GetOrderForUpdate uses NO KEY UPDATE so settlement inserts, which hold a
// key-share lock on the order, do not deadlock against it.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, "get order for update", `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR NO KEY UPDATE`, orderID)
}

func (r *OrderRepository) getOrder(ctx context.Context, op, query, orderID string) (domain.Order, error) {
	var (
		o     domain.Order
		total string
	)
	err := r.queryRow(ctx, query, orderID).
		Scan(&o.ID, &o.ProductID, &o.HoldID, &o.Quantity, &total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, wrapErr(op, err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse order total %q: %w", total, err)
	}
	o.Total = d
	return o, nil
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	const stmt = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, orderID, status, at)
	if err != nil {
		return wrapErr("update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
