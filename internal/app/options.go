package app

import (
	"context"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/engmostafamohamed/flash-sale-task/internal/app")

const (
	defaultHoldTTL             = 2 * time.Minute
	defaultSettlementAttempts  = 3
	defaultSweepBatchSize      = 500
	defaultSettlementRetryWait = 20 * time.Millisecond
)

// Publisher receives domain events after the transaction that produced them commits.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// ProductCache is the read cache in front of product lookups.
type ProductCache interface {
	Get(ctx context.Context, productID string) (domain.Product, bool, error)
	Set(ctx context.Context, p domain.Product) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

// Metrics records engine outcomes.
type Metrics interface {
	HoldCreated()
	HoldRejected(reason string)
	HoldsReleased(cause string, n int)
	OrderCreated()
	SettlementApplied(outcome domain.Outcome, duplicate bool)
	SettlementRetried()
	SweepCompleted(released int, took time.Duration)
}

type options struct {
	logger         *zap.Logger
	publisher      Publisher
	cache          ProductCache
	metrics        Metrics
	holdTTL        time.Duration
	maxAttempts    int
	retryWait      time.Duration
	sweepBatchSize int
}

type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:         zap.NewNop(),
		publisher:      nopPublisher{},
		cache:          nopCache{},
		metrics:        nopMetrics{},
		holdTTL:        defaultHoldTTL,
		maxAttempts:    defaultSettlementAttempts,
		retryWait:      defaultSettlementRetryWait,
		sweepBatchSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithProductCache(c ProductCache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.holdTTL = d
		}
	}
}

// WithMaxAttempts bounds how many times a settlement is attempted when the
// store reports a transient failure.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithRetryWait(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryWait = d
		}
	}
}

// WithSweepBatchSize caps the holds released per sweep; zero or less means no cap.
func WithSweepBatchSize(n int) Option {
	return func(o *options) {
		o.sweepBatchSize = n
	}
}

func (o options) publish(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		if err := o.publisher.Publish(ctx, ev); err != nil {
			o.logger.Warn("publish event failed",
				zap.String("event_type", string(ev.Type)),
				zap.String("aggregate_id", ev.AggregateID),
				zap.Error(err),
			)
		}
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }

type nopCache struct{}

func (nopCache) Get(context.Context, string) (domain.Product, bool, error) {
	return domain.Product{}, false, nil
}
func (nopCache) Set(context.Context, domain.Product) error { return nil }
func (nopCache) Invalidate(context.Context, ...string) error { return nil }

type nopMetrics struct{}

func (nopMetrics) HoldCreated() {}
func (nopMetrics) HoldRejected(string) {}
func (nopMetrics) HoldsReleased(string, int) {}
func (nopMetrics) OrderCreated() {}
func (nopMetrics) SettlementApplied(domain.Outcome, bool) {}
func (nopMetrics) SettlementRetried() {}
func (nopMetrics) SweepCompleted(int, time.Duration) {}
