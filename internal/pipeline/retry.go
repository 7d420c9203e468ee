package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"sales-pipeline/internal/model"
)

// Retrier re-runs a transient file operation with exponential backoff.
// Attempts are capped per key (the file path) so a file that keeps failing
// ends in quarantine instead of looping.
type Retrier struct {
	policy model.RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewRetrier creates a retrier. A policy with MaxAttempts < 1 runs once.
func NewRetrier(policy model.RetryPolicy, logger *slog.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 1
	}
	return &Retrier{
		policy: policy,
		sleep:  sleepContext,
		logger: logger.With(slog.String("component", "retrier")),
	}
}

// Do calls fn until it succeeds, returns a non-transient error, the context
// ends, or the attempt cap is reached. It returns the number of attempts made.
func (r *Retrier) Do(ctx context.Context, key string, fn func(ctx context.Context) error) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) || attempt >= r.policy.MaxAttempts {
			return attempt, err
		}

		delay := r.backoff(attempt)
		r.logger.Warn("transient failure, retrying",
			slog.String("key", key),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.policy.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		if serr := r.sleep(ctx, delay); serr != nil {
			return attempt, err
		}
	}
}

// backoff returns the delay after the given failed attempt (1-based).
func (r *Retrier) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(r.policy.InitialDelay) * math.Pow(r.policy.BackoffFactor, float64(attempt-1)))
	if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
