// Package retry runs calls to external services under a bounded retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryableError indicates a transient service failure that can be retried
// (rate limiting, 5xx, dropped connections).
type RetryableError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("%s: retryable error (status %d): %s", e.Service, e.StatusCode, msg)
}

// IsTransient reports whether err carries a RetryableError.
func IsTransient(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Policy bounds how often and how long a call is retried.
type Policy struct {
	MaxAttempts int           // Total attempts including the first.
	Delay       time.Duration // Wait before the second attempt.
	MaxDelay    time.Duration
	Multiplier  float64       // 1 keeps the delay fixed.
	Jitter      bool          // Add up to half the delay at random.
	MaxElapsed  time.Duration // Upper bound on the whole call, 0 for none.

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy is three attempts one second apart, capped at two minutes.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  1,
		MaxElapsed:  2 * time.Minute,
	}
}

// Backoff returns the wait after attempt n (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.Delay
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxDelay > 0 && d > p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.Jitter && d > 1 {
		d += time.Duration(rand.Int64N(int64(d) / 2))
	}
	return d
}

// Do calls fn until it succeeds, returns a permanent error, runs out of
// attempts, or MaxElapsed passes or ctx ends. The last error is
// returned wrapped.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)

	if p.MaxElapsed > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxElapsed)
		defer cancel()
	}

	var (
		lastErr error
		tried   int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		tried = attempt
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if IsPermanent(err) {
			return zero, err
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("gave up after %d attempts: %w", attempt, errors.Join(lastErr, ctx.Err()))
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("gave up after %d attempts: %w", tried, lastErr)
}
