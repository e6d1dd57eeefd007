package readiness

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Probe checks a single dependency, returning nil when it is usable.
type Probe func(ctx context.Context) error

// Option adjusts the retry policy.
type Option func(*backoff.ExponentialBackOff)

func WithInitialInterval(d time.Duration) Option {
	return func(b *backoff.ExponentialBackOff) {
		b.InitialInterval = d
	}
}

func WithMaxElapsedTime(d time.Duration) Option {
	return func(b *backoff.ExponentialBackOff) {
		b.MaxElapsedTime = d
	}
}

// Wait blocks until the probe succeeds, retrying with exponential
// backoff, and gives up after the policy's max elapsed time or when
// the context is cancelled. Every dependency gate at process start
// goes through this instead of an inlined retry loop.
func Wait(ctx context.Context, logger *zap.Logger, name string, probe Probe, opts ...Option) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 60 * time.Second
	for _, opt := range opts {
		opt(policy)
	}

	attempt := 0
	op := func() error {
		attempt++
		err := probe(ctx)
		if err != nil {
			logger.Warn("dependency not ready",
				zap.String("dependency", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}
