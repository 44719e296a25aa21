package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// Policy bounds the attempts and shapes the backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// AttemptTimeout caps each attempt with a derived context deadline.
	// Zero means attempts inherit the caller's deadline only.
	AttemptTimeout time.Duration
}

// Default returns the standard policy: 3 attempts, 1s base delay.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Delay returns the backoff before the given attempt (0-indexed). Attempt 0
// runs immediately; attempt i waits BaseDelay * 2^(i-1). No jitter: the
// sequence is deterministic.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// Validate reports a malformed policy.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry: base delay must be >= 0, got %v", p.BaseDelay)
	}
	return nil
}

type transientError struct {
	err error
}

func (e *transientError) Error() string   { return e.err.Error() }
func (e *transientError) Unwrap() error   { return e.err }
func (e *transientError) Transient() bool { return true }

// Transient marks err as retry-worthy for IsTransient.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient classifies an error as retry-worthy. Timeouts, interrupted
// connections, and anything carrying a Transient() marker qualify; everything
// else is permanent and aborts the retry loop.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var tagged interface{ Transient() bool }
	if errors.As(err, &tagged) {
		return tagged.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ETIMEDOUT):
		return true
	}
	return false
}

// Executor runs operations under a Policy. The zero value is not usable;
// construct with New. Sleeping is injectable so backoff tests run instantly.
type Executor struct {
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep overrides the backoff sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{sleep: sleepCtx}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var std = New()

// Do runs op under the policy with real backoff sleeps.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	return DoWith(ctx, std, p, op)
}

// DoWith runs op up to p.MaxAttempts times. Transient failures back off
// exponentially between attempts; a permanent failure aborts immediately.
// When attempts run out the last transient error is surfaced.
func DoWith[T any](ctx context.Context, e *Executor, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, p.Delay(attempt)); err != nil {
				return zero, err
			}
		}

		result, err := runAttempt(ctx, p, op)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err
	}
	return zero, fmt.Errorf("retry: %d attempts exhausted: %w", p.MaxAttempts, lastErr)
}

// runAttempt executes a single attempt under the per-attempt timeout.
// Each attempt is a fresh operation; no state crosses attempts.
func runAttempt[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
