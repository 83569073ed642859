// Package retry retries start-up operations against external services, such
// as reaching the redis event broker, with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy controls how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first. Values
	// below 1 mean a single call.
	Attempts int

	// Backoff is the delay after the first failure.
	Backoff time.Duration

	// MaxBackoff caps the delay between calls.
	MaxBackoff time.Duration

	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy makes three attempts starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    200 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Jitter:     0.1,
	}
}

var (
	// ErrExhausted is returned when every attempt failed.
	ErrExhausted = errors.New("retry: attempts exhausted")

	// ErrCanceled is returned when the context ends between attempts.
	ErrCanceled = errors.New("retry: canceled")
)

// Error reports a failed retry loop. It matches both its sentinel and the
// last error returned by the operation.
type Error struct {
	Attempts int
	Last     error
	Err      error // ErrExhausted or ErrCanceled
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Err, e.Attempts, e.Last)
}

func (e *Error) Unwrap() []error { return []error{e.Err, e.Last} }

type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err so Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts run
// out, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last == nil {
				return err
			}
			return &Error{Attempts: attempt - 1, Last: last, Err: ErrCanceled}
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		var perm *permanent
		if errors.As(last, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		wait := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, last)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Attempts: attempt, Last: last, Err: ErrCanceled}
		case <-timer.C:
		}
	}
	return &Error{Attempts: attempts, Last: last, Err: ErrExhausted}
}

// delay is the wait after failed attempt n (1-based).
func (p Policy) delay(n int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(n-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if j := min(max(p.Jitter, 0), 1); j > 0 {
		d += d * j * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}
