package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type HoldRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateHold(ctx context.Context, hold domain.Hold) error
	GetHold(ctx context.Context, holdID string) (domain.Hold, error)
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	// MarkHoldUsed and MarkHoldReleased only touch unresolved holds and
	// report whether the row changed.
	MarkHoldUsed(ctx context.Context, holdID string) (bool, error)
	MarkHoldReleased(ctx context.Context, holdID string) (bool, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
}

const (
	releaseCauseExpired   = "expired"
	releaseCauseCancelled = "cancelled"
)

// HoldService owns hold state. Creating a hold reserves stock through the
// ledger in the same transaction that inserts the hold.
type HoldService struct {
	repo   HoldRepository
	ledger Ledger
	clock  clock.Clock
	opts   options
}

func NewHoldService(repo HoldRepository, ledger Ledger, clk clock.Clock, opts ...Option) *HoldService {
	return &HoldService{
		repo:   repo,
		ledger: ledger,
		clock:  clk,
		opts:   newOptions(opts),
	}
}

type CreateHoldInput struct {
	ProductID string
	Quantity  int
	// TTL overrides the service default when positive.
	TTL time.Duration
}

func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (domain.Hold, error) {
	ctx, span := tracer.Start(ctx, "HoldService.CreateHold", trace.WithAttributes(
		attribute.String("product.id", in.ProductID),
		attribute.Int("hold.quantity", in.Quantity),
	))
	defer span.End()

	if in.Quantity <= 0 {
		return domain.Hold{}, domain.ErrInvalidQuantity
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.opts.holdTTL
	}

	now := s.clock.Now()
	var result domain.Hold

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.ledger.Reserve(txCtx, in.ProductID, in.Quantity); err != nil {
			return err
		}

		hold := domain.Hold{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		}
		if err := s.repo.CreateHold(txCtx, hold); err != nil {
			return err
		}
		result = hold
		return nil
	})
	if err != nil {
		s.opts.metrics.HoldRejected(rejectReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Hold{}, err
	}

	s.ledger.Invalidate(ctx, result.ProductID)
	s.opts.metrics.HoldCreated()
	s.opts.logger.Info("hold created",
		zap.String("hold_id", result.ID),
		zap.String("product_id", result.ProductID),
		zap.Int("quantity", result.Quantity),
		zap.Time("expires_at", result.ExpiresAt),
	)
	s.opts.publish(ctx, domain.Event{
		Type:        domain.EventHoldCreated,
		AggregateID: result.ID,
		ProductID:   result.ProductID,
		Quantity:    result.Quantity,
		OccurredAt:  now,
		Attributes:  map[string]string{"expires_at": result.ExpiresAt.Format(time.RFC3339Nano)},
	})
	span.SetAttributes(attribute.String("hold.id", result.ID))
	return result, nil
}

func (s *HoldService) GetHold(ctx context.Context, holdID string) (domain.Hold, error) {
	return s.repo.GetHold(ctx, holdID)
}

// LockValidHold locks the hold in the caller's transaction and returns it if
// it can still be converted. Otherwise it returns ErrHoldNotFound or the
// hold's state error (used, released, expired in that order).
func (s *HoldService) LockValidHold(ctx context.Context, holdID string) (domain.Hold, error) {
	hold, err := s.repo.GetHoldForUpdate(ctx, holdID)
	if err != nil {
		return domain.Hold{}, err
	}
	if err := hold.State(s.clock.Now()); err != nil {
		return hold, err
	}
	return hold, nil
}

// ResolveAsUsed marks a locked hold as converted. It must run in the same
// transaction as LockValidHold.
func (s *HoldService) ResolveAsUsed(ctx context.Context, holdID string) error {
	changed, err := s.repo.MarkHoldUsed(ctx, holdID)
	if err != nil {
		return err
	}
	if changed {
		return nil
	}
	hold, err := s.repo.GetHold(ctx, holdID)
	if err != nil {
		return err
	}
	if err := hold.State(s.clock.Now()); err != nil {
		return err
	}
	return fmt.Errorf("mark hold %s used: no row updated", holdID)
}

// ResolveAsReleased marks the hold released in the caller's transaction.
// Releasing a released hold is a no-op reported as false; a used hold cannot
// be released.
func (s *HoldService) ResolveAsReleased(ctx context.Context, holdID string) (bool, error) {
	hold, err := s.repo.GetHoldForUpdate(ctx, holdID)
	if err != nil {
		return false, err
	}
	if hold.Released {
		return false, nil
	}
	if hold.Used {
		return false, domain.ErrHoldAlreadyUsed
	}
	return s.repo.MarkHoldReleased(ctx, holdID)
}

// ReleaseHold cancels a hold and returns its reservation to the pool.
// Cancelling an already released hold returns it unchanged.
func (s *HoldService) ReleaseHold(ctx context.Context, holdID string) (domain.Hold, error) {
	ctx, span := tracer.Start(ctx, "HoldService.ReleaseHold", trace.WithAttributes(
		attribute.String("hold.id", holdID),
	))
	defer span.End()

	hold, _, err := s.release(ctx, holdID, releaseCauseCancelled)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Hold{}, err
	}
	return hold, nil
}

// ListExpired returns unresolved holds whose expiry is at or before now.
func (s *HoldService) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	return s.repo.ListExpiredHolds(ctx, now, limit)
}

// ReleaseExpired releases one expired hold in its own transaction. It reports
// false when the hold was resolved (or is not yet expired) by the time its
// lock was taken.
func (s *HoldService) ReleaseExpired(ctx context.Context, holdID string) (bool, error) {
	_, released, err := s.release(ctx, holdID, releaseCauseExpired)
	return released, err
}

func (s *HoldService) release(ctx context.Context, holdID, cause string) (domain.Hold, bool, error) {
	now := s.clock.Now()
	var (
		result   domain.Hold
		released bool
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// product_id never changes, so an unlocked read is enough to find
		// which product row to lock first.
		hold, err := s.repo.GetHold(txCtx, holdID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Lock(txCtx, hold.ProductID); err != nil {
			return err
		}
		hold, err = s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		result = hold

		switch {
		case hold.Released:
			return nil
		case hold.Used:
			if cause == releaseCauseExpired {
				return nil
			}
			return domain.ErrHoldAlreadyUsed
		case cause == releaseCauseExpired && !hold.IsExpired(now):
			return nil
		}

		if _, err := s.ledger.ReleaseReservation(txCtx, hold.ProductID, hold.Quantity); err != nil {
			return err
		}
		ok, err := s.ResolveAsReleased(txCtx, holdID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("mark hold %s released: no row updated", holdID)
		}
		result.Released = true
		released = true
		return nil
	})
	if err != nil {
		return domain.Hold{}, false, err
	}
	if !released {
		return result, false, nil
	}

	s.ledger.Invalidate(ctx, result.ProductID)
	s.opts.metrics.HoldsReleased(cause, 1)
	s.opts.logger.Info("hold released",
		zap.String("hold_id", result.ID),
		zap.String("product_id", result.ProductID),
		zap.Int("quantity", result.Quantity),
		zap.String("cause", cause),
	)
	s.opts.publish(ctx, domain.Event{
		Type:        domain.EventHoldReleased,
		AggregateID: result.ID,
		ProductID:   result.ProductID,
		Quantity:    result.Quantity,
		OccurredAt:  now,
		Attributes:  map[string]string{"cause": cause},
	})
	return result, true, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrTransientStore):
		return "transient"
	default:
		return "error"
	}
}
