// Package http exposes the stock engine over a gin router.
package http

import (
	stdhttp "net/http"

	"github.com/engmostafamohamed/flash-sale-task/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type Services struct {
	Catalog     ProductCatalog
	Holds       HoldManager
	Orders      OrderWorkflow
	Settlements PaymentSettler
	Sweeper     ExpirySweeper
}

type RouterConfig struct {
	// ServiceName enables otelgin server spans when set.
	ServiceName string
	CORSOrigins []string
	Logger      *zap.Logger
	// Metrics and MetricsHandler are optional; /metrics is mounted only
	// when MetricsHandler is set.
	Metrics        *metrics.Metrics
	MetricsHandler stdhttp.Handler
}

// NewRouter wires middleware and every route onto a fresh gin engine.
func NewRouter(svcs Services, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(Recovery(cfg.Logger))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(CORS(cfg.CORSOrigins))

	r.GET("/health", HealthHandler)
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	r.GET("/products/:id", HandleGetProduct(svcs.Catalog))

	r.POST("/holds", HandleCreateHold(svcs.Holds))
	r.GET("/holds/:id", HandleGetHold(svcs.Holds))
	r.DELETE("/holds/:id", HandleReleaseHold(svcs.Holds))

	r.POST("/orders", HandleCreateOrder(svcs.Orders))
	r.GET("/orders/:id", HandleGetOrder(svcs.Orders))

	r.POST("/payments/webhook", HandlePaymentWebhook(svcs.Settlements))

	admin := r.Group("/admin")
	admin.POST("/products", HandleAdminCreateProduct(svcs.Catalog))
	admin.GET("/products", HandleAdminListProducts(svcs.Catalog))
	admin.POST("/sweeps", HandleAdminSweep(svcs.Sweeper))

	r.NoRoute(NotFoundHandler)
	r.NoMethod(MethodNotAllowedHandler)
	return r
}
