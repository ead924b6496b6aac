package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds a stage's backoff loop: starting delay, multiplicative
// growth, capped maximum delay, and a fixed attempt ceiling.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy mirrors the repository retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
	}
}

// Retry runs op under the policy. Errors classified as non-retryable by
// Retryable stop the loop immediately; retryable ones are re-attempted until
// the ceiling is reached. The last error is returned unwrapped of any
// backoff bookkeeping.
func Retry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, op func() (T, error)) (T, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = policy.InitialDelay
	}
	if policy.Multiplier <= 1 {
		policy.Multiplier = 2
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialDelay
	expo.MaxInterval = policy.MaxDelay
	expo.Multiplier = policy.Multiplier

	wrapped := func() (T, error) {
		value, err := op()
		if err != nil && !Retryable(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
	}
	if logger != nil {
		opts = append(opts, backoff.WithNotify(func(err error, delay time.Duration) {
			logger.Warn("retryable failure, backing off",
				slog.Any("error", err),
				slog.Duration("delay", delay))
		}))
	}

	return backoff.Retry(ctx, wrapped, opts...)
}
