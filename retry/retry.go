// Package retry provides a small generic helper for re-running failing
// operations with exponential backoff. The retry is deliberately blind: it
// does not inspect the error type, so transient and permanent failures are
// re-attempted identically up to the attempt ceiling.
package retry

import (
	"context"
	"time"
)

// Options configures a retry run.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; each subsequent
	// delay doubles (BaseDelay, 2*BaseDelay, 4*BaseDelay, ...).
	BaseDelay time.Duration
	// Sleep waits for the given duration or until the context is cancelled.
	// Overridable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultMaxAttempts is the attempt ceiling applied when none is configured.
const DefaultMaxAttempts = 3

// DefaultBaseDelay is the first backoff delay applied when none is configured.
const DefaultBaseDelay = 500 * time.Millisecond

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes op up to the configured attempt ceiling, sequentially, sleeping
// BaseDelay * 2^i after the i-th failed attempt. The first successful result
// is returned immediately; once attempts are exhausted the error of the final
// attempt is returned unmodified. Context cancellation during backoff aborts
// the run with the context's error.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), optFns ...func(o *Options)) (T, error) {
	opts := Options{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Sleep:       sleepContext,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	var zero T
	var lastErr error
	delay := opts.BaseDelay
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == opts.MaxAttempts-1 {
			break
		}
		if err := opts.Sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= 2
	}
	return zero, lastErr
}
