package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ProductRepository struct {
	db
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db{pool: pool}}
}

const productColumns = `id, name, description, price::text, stock, reserved, created_at, updated_at`

func (r *ProductRepository) CreateProduct(ctx context.Context, p domain.Product) error {
	const stmt = `
INSERT INTO products (id, name, description, price, stock, reserved, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		p.ID,
		p.Name,
		p.Description,
		p.Price.String(),
		p.Stock,
		p.Reserved,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return wrapErr("create product", err)
	}
	return nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.getProduct(ctx, "get product", query, productID)
}

// GetProductForUpdate locks the row until the surrounding transaction ends.
// NO KEY UPDATE leaves inserts referencing the product unblocked.
func (r *ProductRepository) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR NO KEY UPDATE`
	return r.getProduct(ctx, "get product for update", query, productID)
}

func (r *ProductRepository) getProduct(ctx context.Context, op, query, productID string) (domain.Product, error) {
	p, err := scanProduct(r.queryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, wrapErr(op, err)
	}
	return p, nil
}

func (r *ProductRepository) UpdateProductCounters(ctx context.Context, productID string, stock, reserved int) error {
	const stmt = `UPDATE products SET stock = $2, reserved = $3, updated_at = now() WHERE id = $1`

	tag, err := r.exec(ctx, stmt, productID, stock, reserved)
	if err != nil {
		return wrapErr("update product counters", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapErr("list products", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapErr("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list products", err)
	}
	return out, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.Reserved, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	return p, nil
}
