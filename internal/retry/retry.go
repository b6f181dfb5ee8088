package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultAttempts is the attempt budget used when Policy.Attempts is zero.
	DefaultAttempts = 3
	// DefaultBackoffBase is the first backoff delay used when
	// Policy.BackoffBase is zero. Delay for attempt n is base * 2^n.
	DefaultBackoffBase = time.Second
)

// Policy configures the attempt budget and backoff schedule.
type Policy struct {
	Attempts    int
	BackoffBase time.Duration

	// sleep is replaceable in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return DefaultAttempts
	}
	return p.Attempts
}

func (p Policy) backoffBase() time.Duration {
	if p.BackoffBase <= 0 {
		return DefaultBackoffBase
	}
	return p.BackoffBase
}

func (p Policy) sleepFn() func(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep
	}
	return func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Do executes fn until it succeeds or the attempt budget is exhausted.
// Failed attempts back off exponentially: base, 2*base, 4*base, ...
// The final error carries the label and attempt count so callers can tell
// which collaborator gave up.
func Do[T any](ctx context.Context, policy Policy, label string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.attempts()
	base := policy.backoffBase()
	sleep := policy.sleepFn()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := base * (1 << (attempt - 1))
			if err := sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("%s aborted while backing off: %w", label, err)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s aborted after attempt %d/%d: %w", label, attempt+1, attempts, lastErr)
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", label, attempts, lastErr)
}
