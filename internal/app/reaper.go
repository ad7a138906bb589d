package app

import (
	"context"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ExpiredHoldReleaser is the part of the hold manager the reaper drives.
type ExpiredHoldReleaser interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
	ReleaseExpired(ctx context.Context, holdID string) (bool, error)
}

// Lease grants exclusive execution across replicas. release must be called
// once the guarded work is done.
type Lease interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// Reaper returns the stock of expired, unresolved holds to the pool.
type Reaper struct {
	holds ExpiredHoldReleaser
	clock clock.Clock
	lease Lease
	opts  options
}

func NewReaper(holds ExpiredHoldReleaser, clk clock.Clock, lease Lease, opts ...Option) *Reaper {
	return &Reaper{
		holds: holds,
		clock: clk,
		lease: lease,
		opts:  newOptions(opts),
	}
}

// RunExpirySweep releases every hold that had expired when the sweep started.
// Each hold is released in its own transaction; a failing hold is logged and
// left for the next sweep.
func (r *Reaper) RunExpirySweep(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Reaper.RunExpirySweep")
	defer span.End()

	start := time.Now()
	now := r.clock.Now()
	holds, err := r.holds.ListExpired(ctx, now, r.opts.sweepBatchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	released, failed := 0, 0
	for _, h := range holds {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		ok, err := r.holds.ReleaseExpired(ctx, h.ID)
		if err != nil {
			failed++
			r.opts.logger.Error("release expired hold failed",
				zap.String("hold_id", h.ID),
				zap.String("product_id", h.ProductID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			released++
		}
	}

	took := time.Since(start)
	r.opts.metrics.SweepCompleted(released, took)
	span.SetAttributes(
		attribute.Int("sweep.candidates", len(holds)),
		attribute.Int("sweep.released", released),
		attribute.Int("sweep.failed", failed),
	)
	if len(holds) > 0 {
		r.opts.logger.Info("expired holds released",
			zap.Int("candidates", len(holds)),
			zap.Int("released", released),
			zap.Int("failed", failed),
			zap.Duration("took", took),
		)
	}
	return released, nil
}

// Run sweeps every interval until ctx is done. A tick is skipped when the
// lease is held elsewhere or the previous sweep is still running.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	if r.lease != nil {
		release, ok, err := r.lease.TryAcquire(ctx)
		if err != nil {
			r.opts.logger.Warn("reaper lease acquisition failed", zap.Error(err))
			return
		}
		if !ok {
			r.opts.logger.Debug("reaper lease held by another instance")
			return
		}
		defer release()
	}
	if _, err := r.RunExpirySweep(ctx); err != nil && ctx.Err() == nil {
		r.opts.logger.Error("expiry sweep failed", zap.Error(err))
	}
}
