package app

import (
	"context"

	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	// CreateOrder returns ErrHoldAlreadyUsed when an order for the hold exists.
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// HoldResolver is the part of the hold manager that converts holds.
type HoldResolver interface {
	LockValidHold(ctx context.Context, holdID string) (domain.Hold, error)
	ResolveAsUsed(ctx context.Context, holdID string) error
}

type OrderService struct {
	repo  OrderRepository
	holds HoldResolver
	clock clock.Clock
	opts  options
}

func NewOrderService(repo OrderRepository, holds HoldResolver, clk clock.Clock, opts ...Option) *OrderService {
	return &OrderService{
		repo:  repo,
		holds: holds,
		clock: clk,
		opts:  newOptions(opts),
	}
}

// CreateOrder converts a valid hold into a pending order. The reserved units
// stay reserved until settlement commits or releases them.
func (s *OrderService) CreateOrder(ctx context.Context, holdID string) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("hold.id", holdID),
	))
	defer span.End()

	now := s.clock.Now()
	var result domain.Order

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.holds.LockValidHold(txCtx, holdID)
		if err != nil {
			return err
		}

		product, err := s.repo.GetProduct(txCtx, hold.ProductID)
		if err != nil {
			return err
		}

		order := domain.Order{
			ID:        uuid.NewString(),
			ProductID: hold.ProductID,
			HoldID:    hold.ID,
			Quantity:  hold.Quantity,
			Total:     domain.OrderTotal(product.Price, hold.Quantity),
			Status:    domain.OrderStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if err := s.holds.ResolveAsUsed(txCtx, hold.ID); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	s.opts.metrics.OrderCreated()
	s.opts.logger.Info("order created",
		zap.String("order_id", result.ID),
		zap.String("hold_id", result.HoldID),
		zap.String("product_id", result.ProductID),
		zap.String("total", result.Total.StringFixed(2)),
	)
	s.opts.publish(ctx, domain.Event{
		Type:        domain.EventOrderCreated,
		AggregateID: result.ID,
		ProductID:   result.ProductID,
		Quantity:    result.Quantity,
		OccurredAt:  now,
		Attributes: map[string]string{
			"hold_id": result.HoldID,
			"total":   result.Total.StringFixed(2),
		},
	})
	span.SetAttributes(attribute.String("order.id", result.ID))
	return result, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}
