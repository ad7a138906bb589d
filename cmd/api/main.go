package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/app"
	"github.com/engmostafamohamed/flash-sale-task/internal/cache"
	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/config"
	"github.com/engmostafamohamed/flash-sale-task/internal/events"
	"github.com/engmostafamohamed/flash-sale-task/internal/lease"
	"github.com/engmostafamohamed/flash-sale-task/internal/metrics"
	"github.com/engmostafamohamed/flash-sale-task/internal/observability"
	"github.com/engmostafamohamed/flash-sale-task/internal/storage/memory"
	"github.com/engmostafamohamed/flash-sale-task/internal/storage/postgres"
	transporthttp "github.com/engmostafamohamed/flash-sale-task/internal/transport/http"
	"github.com/engmostafamohamed/flash-sale-task/migrations"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	shutdownTimeout   = 10 * time.Second
	startupTimeout    = 5 * time.Second
	sweepLeaseKey     = "flash-sale:expiry-sweep"
	sweepAdvisoryLock = int64(801234569)
)

// engineStore is the union of capabilities every workflow needs from storage.
type engineStore interface {
	app.LedgerRepository
	app.HoldRepository
	app.OrderRepository
	app.SettlementRepository
	app.CatalogRepository
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(config.ServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(startupCtx, config.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	var (
		store      engineStore
		sweepLease app.Lease
	)
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		store = memory.NewStore()
		sweepLease = lease.NewLocal()
	default:
		pool, err := openPool(startupCtx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.Apply(startupCtx, pool); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		store = postgres.NewStore(pool)
		sweepLease = lease.NewPostgres(pool, sweepAdvisoryLock)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithMetrics(m),
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithMaxAttempts(cfg.SettlementMaxAttempts),
		app.WithSweepBatchSize(cfg.SweepBatchSize),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(startupCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, app.WithProductCache(cache.NewRedis(client, cfg.ProductCacheTTL)))
		sweepLease = lease.NewRedis(client, sweepLeaseKey, cfg.SweepInterval)
		logger.Info("redis enabled", zap.String("addr", cfg.RedisAddr))
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Warn("kafka writer close", zap.Error(err))
			}
		}()
		opts = append(opts, app.WithPublisher(events.NewKafkaPublisher(writer, cfg.KafkaTopic, logger)))
		logger.Info("kafka publishing enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		opts = append(opts, app.WithPublisher(events.NewLogPublisher(logger)))
	}

	clk := clock.NewSystem()
	ledger := app.NewStockLedger(store, opts...)
	holdSvc := app.NewHoldService(store, ledger, clk, opts...)
	orderSvc := app.NewOrderService(store, holdSvc, clk, opts...)
	settlementSvc := app.NewSettlementService(store, ledger, clk, opts...)
	catalogSvc := app.NewCatalogService(store, clk, opts...)
	reaper := app.NewReaper(holdSvc, clk, sweepLease, opts...)

	gin.SetMode(gin.ReleaseMode)
	router := transporthttp.NewRouter(transporthttp.Services{
		Catalog:     catalogSvc,
		Holds:       holdSvc,
		Orders:      orderSvc,
		Settlements: settlementSvc,
		Sweeper:     reaper,
	}, transporthttp.RouterConfig{
		ServiceName:    config.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		reaper.Run(stopCtx, cfg.SweepInterval)
	}()

	logger.Info("api listening", zap.String("addr", server.Addr), zap.String("store", cfg.Store))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
		stop()
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	<-reaperDone
	logger.Info("server stopped")
	return nil
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.LockTimeout > 0 {
		poolCfg.ConnConfig.RuntimeParams["lock_timeout"] = strconv.FormatInt(cfg.LockTimeout.Milliseconds(), 10)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}
