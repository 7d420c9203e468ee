package model

import "time"

// RetryPolicy defines how often a transient file load is retried before the
// file is quarantined. Attempts are counted per file path.
type RetryPolicy struct {
	MaxAttempts   int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// DefaultRetryPolicy retries a failed load twice with a short backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}
