package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ovenworks/bakeshop/internal/app"
	"github.com/ovenworks/bakeshop/internal/clock"
	"github.com/ovenworks/bakeshop/internal/config"
	"github.com/ovenworks/bakeshop/internal/metrics"
	"github.com/ovenworks/bakeshop/internal/queue"
	"github.com/ovenworks/bakeshop/internal/readiness"
	"github.com/ovenworks/bakeshop/internal/storage/postgres"
	transporthttp "github.com/ovenworks/bakeshop/internal/transport/http"
	"github.com/ovenworks/bakeshop/migrations"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.LoadWorker(logger)

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

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer func() { _ = consumer.Close() }()

	deadLetters := queue.NewPublisher(cfg.KafkaBrokers, cfg.DeadLetterTopic)
	defer func() { _ = deadLetters.Close() }()

	m := metrics.NewWorkerMetrics(prometheus.DefaultRegisterer)

	orderRepo := postgres.NewOrderRepository(pool)
	svc := app.NewFulfillmentService(
		orderRepo,
		consumer,
		deadLetters,
		bakeWork(cfg.WorkMin, cfg.WorkMax),
		clock.NewSystem(),
		logger,
		m,
		app.WithMaxAttempts(cfg.MaxAttempts),
		app.WithRetryDelay(cfg.RetryDelay),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started, waiting for orders",
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
	)

	if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker loop error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}

// bakeWork simulates the order's fulfillment step with a random
// duration in the configured range. Re-execution on redelivery is
// harmless: the durable side effect lives in order_fulfillments.
func bakeWork(min, max time.Duration) app.WorkFunc {
	if max < min {
		max = min
	}
	return func(ctx context.Context, orderID int64) error {
		d := min
		if span := max - min; span > 0 {
			d += time.Duration(rand.Int64N(int64(span) + 1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
}
