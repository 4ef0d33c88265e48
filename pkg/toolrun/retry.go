package toolrun

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how often a network-bound operation is attempted.
// Attempts below 1 mean a single attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Retry calls fn until it succeeds or the policy is exhausted, doubling the
// delay after every failed attempt. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Backoff
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil || attempt >= attempts {
			return err
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
