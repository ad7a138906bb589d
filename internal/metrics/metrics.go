// Package metrics exposes Prometheus collectors for HTTP traffic and the
// stock engine.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestTotal       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	HoldsCreated       prometheus.Counter
	HoldsRejectedTotal *prometheus.CounterVec
	HoldsReleasedTotal *prometheus.CounterVec
	OrdersCreated      prometheus.Counter
	SettlementsTotal   *prometheus.CounterVec
	SettlementRetries  prometheus.Counter
	SweepDuration      prometheus.Histogram
	SweepReleased      prometheus.Counter
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HoldsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "holds_created_total",
			Help: "Holds created",
		}),
		HoldsRejectedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holds_rejected_total",
				Help: "Hold requests rejected, by reason",
			},
			[]string{"reason"},
		),
		HoldsReleasedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holds_released_total",
				Help: "Holds released back to stock, by cause",
			},
			[]string{"cause"},
		),
		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created from holds",
		}),
		SettlementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlements_total",
				Help: "Payment notifications handled, by outcome and duplicate flag",
			},
			[]string{"outcome", "duplicate"},
		),
		SettlementRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_retries_total",
			Help: "Settlement attempts retried after a transient store failure",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "expiry_sweep_duration_seconds",
			Help:    "Expiry sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		SweepReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "expiry_sweep_released_total",
			Help: "Holds released by expiry sweeps",
		}),
	}
}

func (m *Metrics) HoldCreated() { m.HoldsCreated.Inc() }

func (m *Metrics) HoldRejected(reason string) { m.HoldsRejectedTotal.WithLabelValues(reason).Inc() }

func (m *Metrics) HoldsReleased(cause string, n int) {
	m.HoldsReleasedTotal.WithLabelValues(cause).Add(float64(n))
}

func (m *Metrics) OrderCreated() { m.OrdersCreated.Inc() }

func (m *Metrics) SettlementApplied(outcome domain.Outcome, duplicate bool) {
	m.SettlementsTotal.WithLabelValues(string(outcome), strconv.FormatBool(duplicate)).Inc()
}

func (m *Metrics) SettlementRetried() { m.SettlementRetries.Inc() }

func (m *Metrics) SweepCompleted(released int, took time.Duration) {
	m.SweepDuration.Observe(took.Seconds())
	m.SweepReleased.Add(float64(released))
}

// NormalizePath collapses an unmatched path to its first segment so raw ids
// never become label values.
func NormalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if idx := strings.Index(p, "/"); idx >= 0 {
		p = p[:idx]
	}
	if p == "" {
		return "root"
	}
	return p
}

// Middleware records request count and latency labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		path := c.FullPath()
		if path == "" {
			path = NormalizePath(c.Request.URL.Path)
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}
