// Package retry implements the resilience layer wrapping flaky operations:
// exponential backoff, a transient-error classifier and a retry loop with a
// caller-supplied predicate.
package retry

import (
	"context"
	"strings"
	"time"

	"raven/internal/logging"
)

// Config controls the retry loop. MaxRetries counts additional attempts
// after the first, so the total number of attempts is MaxRetries+1.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// RetryOn decides whether a failure is worth retrying.
	// Nil means retry on every error.
	RetryOn func(error) bool

	// Sleep is injectable for deterministic tests. Nil uses a real
	// context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns the retry defaults used for tool and API calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExponentialBackoff returns a pure delay function: attempt k (0-based)
// yields min(initial * multiplier^k, max).
func ExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		delay := float64(initial)
		for i := 0; i < attempt; i++ {
			delay *= multiplier
			if delay >= float64(max) {
				return max
			}
		}
		if delay > float64(max) {
			return max
		}
		return time.Duration(delay)
	}
}

// Do executes op, retrying per cfg. The last error is returned unmodified
// once retries are exhausted or RetryOn declines.
func Do[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	var zero T

	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 1 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	backoff := ExponentialBackoff(cfg.InitialDelay, cfg.Multiplier, cfg.MaxDelay)

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt-1)); err != nil {
				return zero, err
			}
			logging.Debug("retrying operation", "attempt", attempt, "max", cfg.MaxRetries, "error", lastErr)
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.RetryOn != nil && !cfg.RetryOn(err) {
			return zero, err
		}
	}

	return zero, lastErr
}

// transientMarkers are message substrings indicating a transient failure.
var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"timeout",
	"timed out",
	"socket hang up",
	"network",
	"temporarily unavailable",
}

// IsTransientError classifies an error as transient based on its message.
// Nil errors are not transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
