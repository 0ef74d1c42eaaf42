// Package retry bounds blocking external calls with a per-attempt timeout and a
// small fixed attempt budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	defaultAttempts = 2
	maxAttempts     = 3
	defaultBackoff  = 250 * time.Millisecond
	defaultTimeout  = 20 * time.Second
)

// ErrTimeout marks an external call that exceeded its time budget on every attempt.
var ErrTimeout = errors.New("external call timed out")

// ErrPermanent wraps errors that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Policy configures Do.
type Policy struct {
	Attempts int           // clamped to [1, 3]
	Timeout  time.Duration // per attempt
	Backoff  time.Duration // doubled after each failed attempt
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{Attempts: defaultAttempts, Timeout: defaultTimeout, Backoff: defaultBackoff}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Attempts > maxAttempts {
		p.Attempts = maxAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Do runs fn until it succeeds, returns a permanent error, the parent context
// ends, or the attempt budget is spent.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: canceled: %w", op, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		err := fn(attemptCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, p.Timeout, err)
		}
		lastErr = err

		if attempt == p.Attempts-1 {
			break
		}
		log.Printf("[WARN] %s: retry attempt %d/%d after error: %v", op, attempt+1, p.Attempts, err)

		if err := sleepWithContext(ctx, p.Backoff*time.Duration(1<<attempt)); err != nil {
			return fmt.Errorf("%s: canceled: %w", op, err)
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, p.Attempts, lastErr)
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
