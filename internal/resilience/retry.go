// Package resilience provides the retry controller and circuit breaker used
// around upstream model calls:
//   - Exponential backoff with additive jitter
//   - Context cancellation handling
//   - Permanent errors that stop the retry loop
//   - Structured logging
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Default retry settings.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = time.Second
)

// ExhaustedRetriesError is returned when every attempt failed. Err is the
// error returned by the final attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) || errors.Is(err, ErrCircuitOpen)
}

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

// Delay returns the wait before attempt+1, given that attempt (1-based) just
// failed: BaseDelay * 2^(attempt-1) plus a jitter in [0, MaxJitter).
func (c RetryConfig) Delay(attempt int) time.Duration {
	return c.backoff(attempt) + jitter(c.MaxJitter)
}

func (c RetryConfig) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return c.BaseDelay << (attempt - 1)
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

type waitFunc func(ctx context.Context, d time.Duration) error

// Retry runs op up to cfg.MaxAttempts times. There is no delay before the
// first attempt. It stops early when ctx is done or op returns a permanent
// error; otherwise the final failure is returned as *ExhaustedRetriesError.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	return retry(ctx, cfg, op, sleep)
}

func retry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error), wait waitFunc) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if IsPermanent(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry abandoned: %w (last error: %v)", ctx.Err(), lastErr)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		slog.DebugContext(ctx, "Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", delay,
			"error", err,
		)
		if err := wait(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry abandoned: %w (last error: %v)", err, lastErr)
		}
	}

	return zero, &ExhaustedRetriesError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
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
