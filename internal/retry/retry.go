// Package retry is a small resilient-call wrapper shared by the oracle,
// transcription and sandbox clients.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Backoff returns the delay to wait before attempt n (1-based).
type Backoff func(attempt int) time.Duration

// Exponential doubles the base delay on every failed attempt.
func Exponential(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	}
}

// Do invokes fn up to maxAttempts times, sleeping per the backoff between
// attempts. It stops early when the context is cancelled and returns the
// last error once the attempt budget is exhausted.
func Do(ctx context.Context, maxAttempts int, backoff Backoff, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}
