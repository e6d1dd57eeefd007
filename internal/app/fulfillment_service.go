package app

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ovenworks/bakeshop/internal/clock"
	"github.com/ovenworks/bakeshop/internal/domain"
	"github.com/ovenworks/bakeshop/internal/metrics"
	"github.com/ovenworks/bakeshop/internal/queue"
	"go.uber.org/zap"
)

const maxStoreRetryInterval = 30 * time.Second

type FulfillmentRepository interface {
	GetOrderStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error)
	MarkProcessing(ctx context.Context, orderID int64) error
	MarkCompleted(ctx context.Context, orderID int64) error
	RecordFulfillment(ctx context.Context, orderID int64, eventID string, at time.Time) (bool, error)
}

// JobConsumer delivers fulfillment jobs one at a time. Ack commits the
// delivery; an unacked delivery is redelivered after a restart or
// rebalance.
type JobConsumer interface {
	Fetch(ctx context.Context) (queue.Delivery, error)
	Ack(ctx context.Context, d queue.Delivery) error
}

// WorkFunc performs the domain-specific fulfillment work for one
// order. It must be safe to re-execute: a lost acknowledgment after
// the work finished means it runs again on redelivery.
type WorkFunc func(ctx context.Context, orderID int64) error

// storeFailure marks an error from the order store. The delivery
// policy treats an unreachable store as a wait-and-retry condition,
// never as grounds to dead-letter the job: the order is still valid,
// the store just cannot be asked about it yet.
type storeFailure struct {
	err error
}

func (e storeFailure) Error() string { return e.err.Error() }
func (e storeFailure) Unwrap() error { return e.err }

type FulfillmentService struct {
	repo        FulfillmentRepository
	jobs        JobConsumer
	deadLetters JobPublisher
	work        WorkFunc
	clock       clock.Clock
	logger      *zap.Logger
	metrics     *metrics.WorkerMetrics

	maxAttempts int
	retryDelay  time.Duration
	fetchDelay  time.Duration
}

func NewFulfillmentService(
	repo FulfillmentRepository,
	jobs JobConsumer,
	deadLetters JobPublisher,
	work WorkFunc,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.WorkerMetrics,
	opts ...FulfillmentOption,
) *FulfillmentService {
	svc := &FulfillmentService{
		repo:        repo,
		jobs:        jobs,
		deadLetters: deadLetters,
		work:        work,
		clock:       clk,
		logger:      logger,
		metrics:     m,
		maxAttempts: 5,
		retryDelay:  2 * time.Second,
		fetchDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type FulfillmentOption func(*FulfillmentService)

// WithMaxAttempts caps processing attempts per delivery before the job
// is dead-lettered.
func WithMaxAttempts(n int) FulfillmentOption {
	return func(s *FulfillmentService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between failed processing attempts,
// the starting interval for store-outage retries, and the pause after
// a failed fetch.
func WithRetryDelay(d time.Duration) FulfillmentOption {
	return func(s *FulfillmentService) {
		if d >= 0 {
			s.retryDelay = d
			s.fetchDelay = d
		}
	}
}

// Run is the worker loop: fetch one job, process it to completion,
// acknowledge, repeat. One delivery is in flight at a time, so a slow
// job never piles unacknowledged work onto this instance. Returns when
// the context is cancelled.
func (s *FulfillmentService) Run(ctx context.Context) error {
	for {
		delivery, err := s.jobs.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("fetch job", zap.Error(err))
			if !s.sleep(ctx, s.fetchDelay) {
				return ctx.Err()
			}
			continue
		}
		s.handleDelivery(ctx, delivery)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *FulfillmentService) handleDelivery(ctx context.Context, delivery queue.Delivery) {
	var job queue.OrderJob
	if err := json.Unmarshal(delivery.Value, &job); err != nil || job.OrderID <= 0 {
		// Requeueing a message the worker cannot interpret would loop
		// forever; drop it.
		s.logger.Warn("dropping malformed job", zap.ByteString("payload", delivery.Value))
		s.metrics.JobsDropped.Inc()
		s.ack(ctx, delivery)
		return
	}

	log := s.logger.With(zap.Int64("order_id", job.OrderID), zap.String("event_id", job.EventID))

	// Store outages back off exponentially with no attempt cap: the
	// job stays on this delivery until the store answers again, so an
	// order never lands in the dead-letter topic just because
	// Postgres was restarting. The attempt cap applies only to
	// failures of the fulfillment work itself.
	storeRetry := backoff.NewExponentialBackOff()
	storeRetry.InitialInterval = s.retryDelay
	storeRetry.MaxInterval = maxStoreRetryInterval
	storeRetry.MaxElapsedTime = 0

	attempts := 0
	for {
		err := s.processOrder(ctx, job, log)
		if err == nil {
			s.ack(ctx, delivery)
			return
		}
		if errors.Is(err, domain.ErrOrderNotFound) {
			// The write-then-publish discipline means this should not
			// happen; treat it like a malformed job rather than
			// redelivering forever.
			log.Warn("job references unknown order, dropping")
			s.metrics.JobsDropped.Inc()
			s.ack(ctx, delivery)
			return
		}
		if ctx.Err() != nil {
			// Shutting down mid-job: leave the delivery unacked so it
			// is redelivered.
			return
		}
		var sf storeFailure
		if errors.As(err, &sf) {
			s.metrics.JobsRetried.Inc()
			log.Warn("store unavailable, holding job", zap.Error(err))
			if !s.sleep(ctx, storeRetry.NextBackOff()) {
				return
			}
			continue
		}
		attempts++
		if attempts >= s.maxAttempts {
			if err := s.deadLetter(ctx, job, attempts, err, log); err != nil {
				// Could not park the job anywhere durable; leave the
				// delivery unacked so it is redelivered.
				log.Error("publish dead letter", zap.Error(err))
				return
			}
			s.ack(ctx, delivery)
			return
		}
		s.metrics.JobsRetried.Inc()
		log.Warn("processing failed, retrying", zap.Int("attempt", attempts), zap.Error(err))
		if !s.sleep(ctx, s.retryDelay) {
			return
		}
	}
}

// processOrder drives the order state machine for one delivery:
// created -> processing -> work -> completed. Every step tolerates
// redelivery; a completed order short-circuits before any work.
func (s *FulfillmentService) processOrder(ctx context.Context, job queue.OrderJob, log *zap.Logger) error {
	status, err := s.repo.GetOrderStatus(ctx, job.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}
		return storeFailure{err}
	}
	if status == domain.OrderStatusCompleted {
		log.Info("order already completed, skipping")
		s.metrics.JobsSkipped.Inc()
		return nil
	}

	if err := s.repo.MarkProcessing(ctx, job.OrderID); err != nil {
		return storeFailure{err}
	}
	log.Info("processing order")

	if err := s.work(ctx, job.OrderID); err != nil {
		return err
	}

	if _, err := s.repo.RecordFulfillment(ctx, job.OrderID, job.EventID, s.clock.Now()); err != nil {
		return storeFailure{err}
	}
	if err := s.repo.MarkCompleted(ctx, job.OrderID); err != nil {
		return storeFailure{err}
	}

	s.metrics.JobsCompleted.Inc()
	log.Info("order completed")
	return nil
}

// deadLetter parks an exhausted job on the dead-letter topic. A
// non-nil error means the job is not durably parked anywhere and the
// caller must not acknowledge the delivery.
func (s *FulfillmentService) deadLetter(ctx context.Context, job queue.OrderJob, attempts int, cause error, log *zap.Logger) error {
	log.Error("dead-lettering job", zap.Int("attempts", attempts), zap.Error(cause))
	if s.deadLetters == nil {
		// No dead-letter topic configured: dropping is the configured
		// policy.
		s.metrics.JobsDeadLetters.Inc()
		return nil
	}
	payload := queue.DeadLetter{
		EventID:  job.EventID,
		OrderID:  job.OrderID,
		Attempts: attempts,
		Reason:   cause.Error(),
		FailedAt: s.clock.Now(),
	}
	if err := s.deadLetters.Publish(ctx, strconv.FormatInt(job.OrderID, 10), payload); err != nil {
		return err
	}
	s.metrics.JobsDeadLetters.Inc()
	return nil
}

func (s *FulfillmentService) ack(ctx context.Context, delivery queue.Delivery) {
	if err := s.jobs.Ack(ctx, delivery); err != nil {
		s.logger.Warn("ack job", zap.Error(err))
	}
}

func (s *FulfillmentService) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
