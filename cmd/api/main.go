package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovenworks/bakeshop/internal/app"
	"github.com/ovenworks/bakeshop/internal/cache"
	"github.com/ovenworks/bakeshop/internal/clock"
	"github.com/ovenworks/bakeshop/internal/config"
	"github.com/ovenworks/bakeshop/internal/metrics"
	"github.com/ovenworks/bakeshop/internal/queue"
	"github.com/ovenworks/bakeshop/internal/readiness"
	"github.com/ovenworks/bakeshop/internal/storage/postgres"
	transporthttp "github.com/ovenworks/bakeshop/internal/transport/http"
	"github.com/ovenworks/bakeshop/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.LoadAPI(logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := readiness.Wait(startupCtx, logger, "postgres", pool.Ping); err != nil {
		logger.Fatal("postgres not ready", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}
	if err := readiness.Wait(startupCtx, logger, "kafka", func(ctx context.Context) error {
		return queue.Ping(ctx, cfg.KafkaBrokers)
	}); err != nil {
		logger.Fatal("kafka not ready", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = redisClient.Close() }()

	// The cache is optional: when Redis stays down past the short
	// gate, catalog reads fall through to Postgres.
	var catalogCache app.CatalogCache
	if err := readiness.Wait(startupCtx, logger, "redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}, readiness.WithMaxElapsedTime(10*time.Second)); err != nil {
		logger.Warn("redis not available, catalog served without cache", zap.Error(err))
	} else {
		catalogCache = cache.NewCatalog(redisClient, cfg.CacheTTL)
	}

	publisher := queue.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() { _ = publisher.Close() }()

	m := metrics.NewAPIMetrics(prometheus.DefaultRegisterer)

	orderRepo := postgres.NewOrderRepository(pool)
	orderSvc := app.NewOrderService(orderRepo, publisher, clock.NewSystem(), logger, m)
	productRepo := postgres.NewProductRepository(pool)
	catalogSvc := app.NewCatalogService(productRepo, catalogCache, logger, m)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/products", transporthttp.Instrument(m, "products", transporthttp.HandleListProducts(catalogSvc)))
	mux.Handle("/api/orders", transporthttp.Instrument(m, "submit_order", transporthttp.HandleSubmitOrder(orderSvc)))
	mux.Handle("/api/orders/", transporthttp.Instrument(m, "order_status", transporthttp.HandleOrderStatus(orderSvc)))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
