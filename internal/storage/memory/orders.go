package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
)

// CreateOrder keeps hold_id unique: a second order for the same hold fails
// with ErrHoldAlreadyUsed.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) error {
	if err := s.fault("CreateOrder"); err != nil {
		return err
	}
	if err := s.lock(ctx, orderHoldKey(order.HoldID)); err != nil {
		return err
	}
	if err := s.lock(ctx, orderKey(order.ID)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orderByHold[order.HoldID]; exists {
		return domain.ErrHoldAlreadyUsed
	}
	if _, ok := s.holds[order.HoldID]; !ok {
		return domain.ErrHoldNotFound
	}
	if _, ok := s.products[order.ProductID]; !ok {
		return domain.ErrProductNotFound
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("create order %s: already exists", order.ID)
	}
	s.orders[order.ID] = order
	s.orderByHold[order.HoldID] = order.ID
	s.record(ctx, func() {
		delete(s.orders, order.ID)
		delete(s.orderByHold, order.HoldID)
	})
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := s.fault("GetOrder"); err != nil {
		return domain.Order{}, err
	}
	return s.order(orderID)
}

func (s *Store) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	if err := s.fault("GetOrderForUpdate"); err != nil {
		return domain.Order{}, err
	}
	if err := s.lock(ctx, orderKey(orderID)); err != nil {
		return domain.Order{}, err
	}
	return s.order(orderID)
}

func (s *Store) order(orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	if err := s.fault("UpdateOrderStatus"); err != nil {
		return err
	}
	if err := s.lock(ctx, orderKey(orderID)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	next := prev
	next.Status = status
	next.UpdatedAt = at
	s.orders[orderID] = next
	s.record(ctx, func() { s.orders[orderID] = prev })
	return nil
}
