package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SettlementRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// FindSettlement returns nil when no record exists for key.
	FindSettlement(ctx context.Context, key string) (*domain.Settlement, error)
	// ClaimSettlement inserts the record unless the key already exists and
	// reports whether this call inserted it. A concurrent claim of the same
	// key blocks until the other transaction ends.
	ClaimSettlement(ctx context.Context, s domain.Settlement) (bool, error)
	MarkSettlementProcessed(ctx context.Context, key string, status domain.OrderStatus) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error
}

// Notification is one payment outcome delivered by the external notifier.
type Notification struct {
	IdempotencyKey string
	OrderID        string
	Outcome        domain.Outcome
	Payload        json.RawMessage
}

type SettlementResult struct {
	IdempotencyKey string
	OrderID        string
	Outcome        domain.Outcome
	OrderStatus    domain.OrderStatus
	// Duplicate is set when the key had already been applied.
	Duplicate bool
	// Applied is set when this call moved the order out of pending.
	Applied bool
}

// SettlementService applies payment notifications exactly once per
// idempotency key.
type SettlementService struct {
	repo   SettlementRepository
	ledger Ledger
	clock  clock.Clock
	opts   options
}

func NewSettlementService(repo SettlementRepository, ledger Ledger, clk clock.Clock, opts ...Option) *SettlementService {
	return &SettlementService{
		repo:   repo,
		ledger: ledger,
		clock:  clk,
		opts:   newOptions(opts),
	}
}

// ApplyNotification records the notification and settles its order. A
// repeated key returns the stored result without side effects. Transient
// store failures are retried up to the configured number of attempts.
// ErrOrderNotFound leaves no record behind so a redelivery is re-evaluated.
func (s *SettlementService) ApplyNotification(ctx context.Context, n Notification) (SettlementResult, error) {
	if n.IdempotencyKey == "" {
		return SettlementResult{}, domain.ErrIdempotencyKeyRequired
	}
	if n.OrderID == "" {
		return SettlementResult{}, domain.ErrInvalidID
	}
	if _, err := domain.ParseOutcome(string(n.Outcome)); err != nil {
		return SettlementResult{}, err
	}

	ctx, span := tracer.Start(ctx, "SettlementService.ApplyNotification", trace.WithAttributes(
		attribute.String("settlement.idempotency_key", n.IdempotencyKey),
		attribute.String("order.id", n.OrderID),
		attribute.String("settlement.outcome", string(n.Outcome)),
	))
	defer span.End()

	var (
		res settlementAttempt
		err error
	)
	for attempt := 1; ; attempt++ {
		res, err = s.apply(ctx, n)
		if err == nil || !errors.Is(err, domain.ErrTransientStore) || attempt >= s.opts.maxAttempts {
			break
		}
		s.opts.metrics.SettlementRetried()
		s.opts.logger.Warn("settlement attempt failed, retrying",
			zap.String("idempotency_key", n.IdempotencyKey),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if werr := wait(ctx, s.opts.retryWait*time.Duration(attempt)); werr != nil {
			err = werr
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SettlementResult{}, err
	}

	s.opts.metrics.SettlementApplied(n.Outcome, res.result.Duplicate)
	span.SetAttributes(
		attribute.Bool("settlement.duplicate", res.result.Duplicate),
		attribute.String("order.status", string(res.result.OrderStatus)),
	)

	if res.result.Duplicate {
		s.opts.logger.Info("webhook already processed",
			zap.String("idempotency_key", n.IdempotencyKey),
			zap.String("order_id", res.result.OrderID),
		)
		return res.result, nil
	}
	if !res.result.Applied {
		s.opts.logger.Info("order already settled",
			zap.String("idempotency_key", n.IdempotencyKey),
			zap.String("order_id", n.OrderID),
			zap.String("order_status", string(res.result.OrderStatus)),
		)
		return res.result, nil
	}

	s.ledger.Invalidate(ctx, res.order.ProductID)
	s.opts.logger.Info("settlement applied",
		zap.String("idempotency_key", n.IdempotencyKey),
		zap.String("order_id", n.OrderID),
		zap.String("outcome", string(n.Outcome)),
		zap.String("order_status", string(res.result.OrderStatus)),
	)
	evType := domain.EventOrderPaid
	if res.result.OrderStatus == domain.OrderStatusCancelled {
		evType = domain.EventOrderCancelled
	}
	s.opts.publish(ctx, domain.Event{
		Type:        evType,
		AggregateID: res.order.ID,
		ProductID:   res.order.ProductID,
		Quantity:    res.order.Quantity,
		OccurredAt:  res.at,
		Attributes:  map[string]string{"idempotency_key": n.IdempotencyKey},
	})
	return res.result, nil
}

type settlementAttempt struct {
	result SettlementResult
	order  domain.Order
	at     time.Time
}

func (s *SettlementService) apply(ctx context.Context, n Notification) (settlementAttempt, error) {
	now := s.clock.Now()
	out := settlementAttempt{at: now}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindSettlement(txCtx, n.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing == nil {
			claimed, err := s.repo.ClaimSettlement(txCtx, domain.Settlement{
				IdempotencyKey: n.IdempotencyKey,
				OrderID:        n.OrderID,
				Outcome:        n.Outcome,
				Payload:        n.Payload,
				CreatedAt:      now,
			})
			if err != nil {
				return err
			}
			if !claimed {
				existing, err = s.repo.FindSettlement(txCtx, n.IdempotencyKey)
				if err != nil {
					return err
				}
				if existing == nil {
					return fmt.Errorf("%w: settlement %s claimed elsewhere but not visible", domain.ErrTransientStore, n.IdempotencyKey)
				}
			}
		}
		if existing != nil {
			out.result = SettlementResult{
				IdempotencyKey: existing.IdempotencyKey,
				OrderID:        existing.OrderID,
				Outcome:        existing.Outcome,
				OrderStatus:    existing.OrderStatus,
				Duplicate:      true,
			}
			return nil
		}

		// product_id never changes: read it unlocked, then lock product
		// before order to keep the same lock order as the hold workflows.
		order, err := s.repo.GetOrder(txCtx, n.OrderID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Lock(txCtx, order.ProductID); err != nil {
			return err
		}
		order, err = s.repo.GetOrderForUpdate(txCtx, n.OrderID)
		if err != nil {
			return err
		}

		out.order = order
		out.result = SettlementResult{
			IdempotencyKey: n.IdempotencyKey,
			OrderID:        order.ID,
			Outcome:        n.Outcome,
			OrderStatus:    order.Status,
		}
		if !order.IsPending() {
			return s.repo.MarkSettlementProcessed(txCtx, n.IdempotencyKey, order.Status)
		}

		status := domain.OrderStatusPaid
		if n.Outcome == domain.OutcomeSuccess {
			_, err = s.ledger.Commit(txCtx, order.ProductID, order.Quantity)
		} else {
			status = domain.OrderStatusCancelled
			_, err = s.ledger.ReleaseReservation(txCtx, order.ProductID, order.Quantity)
		}
		if err != nil {
			return err
		}
		if err := s.repo.UpdateOrderStatus(txCtx, order.ID, status, now); err != nil {
			return err
		}
		if err := s.repo.MarkSettlementProcessed(txCtx, n.IdempotencyKey, status); err != nil {
			return err
		}

		out.order.Status = status
		out.result.OrderStatus = status
		out.result.Applied = true
		return nil
	})
	if err != nil {
		return settlementAttempt{}, err
	}
	return out, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
