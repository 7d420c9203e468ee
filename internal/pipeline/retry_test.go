package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/model"
)

func newTestRetrier(policy model.RetryPolicy) (*Retrier, *[]time.Duration) {
	r := NewRetrier(policy, logging.Discard())
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetrierBackoff(t *testing.T) {
	r, slept := newTestRetrier(model.RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
		BackoffFactor: 2,
	})

	transient := &TransientError{Err: errors.New("busy")}
	attempts, err := r.Do(context.Background(), "a.csv", func(context.Context) error { return transient })

	assert.Equal(t, 5, attempts)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}, *slept)
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r, slept := newTestRetrier(model.DefaultRetryPolicy())

	permanent := errors.New("malformed")
	calls := 0
	attempts, err := r.Do(context.Background(), "a.csv", func(context.Context) error {
		calls++
		return permanent
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
	assert.Empty(t, *slept)
}

func TestRetrierSucceedsAfterTransientFailure(t *testing.T) {
	r, _ := newTestRetrier(model.DefaultRetryPolicy())

	calls := 0
	attempts, err := r.Do(context.Background(), "a.csv", func(context.Context) error {
		calls++
		if calls == 1 {
			return &TransientError{Err: errors.New("busy")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetrierHonoursCancellation(t *testing.T) {
	r, _ := newTestRetrier(model.DefaultRetryPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := r.Do(ctx, "a.csv", func(context.Context) error {
		return &TransientError{Err: errors.New("busy")}
	})
	assert.Equal(t, 1, attempts)
	assert.Error(t, err)
}

func TestNewRetrierClampsPolicy(t *testing.T) {
	r := NewRetrier(model.RetryPolicy{}, logging.Discard())
	attempts, err := r.Do(context.Background(), "a.csv", func(context.Context) error {
		return &TransientError{Err: errors.New("busy")}
	})
	assert.Equal(t, 1, attempts)
	assert.Error(t, err)
}
