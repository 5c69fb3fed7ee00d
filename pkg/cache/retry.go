package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnreachable marks backend connectivity failures (timeouts, refused connections).
var ErrUnreachable = errors.New("cache backend unreachable")

// RetryableError marks a failure worth another attempt.
type RetryableError struct{ Err error }

// Retryable marks err as retryable. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was marked with [Retryable].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff spaces retry attempts. The delay doubles after every failed
// attempt and never exceeds Max.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultBackoff keeps retries short: cache lookups sit on the request path
// and a miss is always an acceptable outcome.
var DefaultBackoff = Backoff{Attempts: 3, Initial: 50 * time.Millisecond, Max: 400 * time.Millisecond}

// RetryWithBackoff runs fn under [DefaultBackoff].
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}

// Retry calls fn until it succeeds, returns an error not marked retryable,
// or the attempts run out. The last error is returned.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Initial

	var err error
	for i := range attempts {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if delay *= 2; b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return err
}
