// Package retry provides retry with exponential backoff for transient
// failures of agent calls.
package retry

import (
	"context"
	"time"
)

// Do runs fn up to cfg.MaxAttempts times, backing off between attempts. A
// non-transient error stops immediately; context cancellation is honored
// during backoff waits. On exhaustion the last error is returned.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}

	return zero, lastErr
}

// DoStream is Do for stream-opening functions: it retries establishing the
// stream, never individual reads.
func DoStream[T any](ctx context.Context, cfg Config, fn func() (<-chan T, error)) (<-chan T, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		ch, err := fn()
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}

	return nil, lastErr
}
