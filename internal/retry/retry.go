// Package retry runs an operation a bounded number of times with linear backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
)

// Options controls the retry loop. A zero MaxAttempts means DefaultMaxAttempts;
// BaseDelay is taken as given so callers can retry without waiting.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry is called before each wait, after a failed attempt.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = 0
	}
	return o
}

// Do calls fn until it succeeds or MaxAttempts is reached. After the n-th
// failure it waits BaseDelay*n. A cancelled context ends the loop early and
// its error is returned as-is.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts {
			break
		}

		wait := opts.BaseDelay * time.Duration(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: opts.MaxAttempts, Last: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
