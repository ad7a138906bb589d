package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
)

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) error {
	if err := s.fault("CreateProduct"); err != nil {
		return err
	}
	if err := s.lock(ctx, productKey(p.ID)); err != nil {
		return err
	}
	if p.Stock < 0 || p.Reserved < 0 || p.Reserved > p.Stock {
		return fmt.Errorf("create product %s: counters out of range", p.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; exists {
		return fmt.Errorf("create product %s: already exists", p.ID)
	}
	s.products[p.ID] = p
	s.record(ctx, func() { delete(s.products, p.ID) })
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if err := s.fault("GetProduct"); err != nil {
		return domain.Product{}, err
	}
	return s.product(productID)
}

func (s *Store) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	if err := s.fault("GetProductForUpdate"); err != nil {
		return domain.Product{}, err
	}
	if err := s.lock(ctx, productKey(productID)); err != nil {
		return domain.Product{}, err
	}
	return s.product(productID)
}

func (s *Store) product(productID string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// UpdateProductCounters enforces 0 <= reserved <= stock like the table's
// check constraint.
func (s *Store) UpdateProductCounters(ctx context.Context, productID string, stock, reserved int) error {
	if err := s.fault("UpdateProductCounters"); err != nil {
		return err
	}
	if err := s.lock(ctx, productKey(productID)); err != nil {
		return err
	}
	if stock < 0 || reserved < 0 || reserved > stock {
		return fmt.Errorf("update product %s: stock=%d reserved=%d violates counter check", productID, stock, reserved)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	next := prev
	next.Stock = stock
	next.Reserved = reserved
	next.UpdatedAt = time.Now().UTC()
	s.products[productID] = next
	s.record(ctx, func() { s.products[productID] = prev })
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := s.fault("ListProducts"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
