// Package retry provides a bounded retry policy with exponential backoff
// for calls to external services. Configuration and auth failures are never
// retried; callers tag transient failures with ErrTemporary.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTemporary marks an error as transient and therefore retryable.
var ErrTemporary = errors.New("temporary error")

// Temporary wraps err so the default policy will retry it.
func Temporary(err error) error {
	return fmt.Errorf("%w: %v", ErrTemporary, err)
}

// IsTemporary reports whether err is tagged transient.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrTemporary)
}

// Policy describes how an external call is retried.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable decides whether an error is worth another attempt. Nil
	// means retry everything.
	Retryable func(error) bool
}

// DefaultPolicy retries transient errors up to three attempts with delays
// doubling from 2s and capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     8 * time.Second,
		Retryable:    IsTemporary,
	}
}

// Do runs op until it succeeds, a non-retryable error is returned, the
// attempt budget is exhausted, or ctx is cancelled.
func (p Policy) Do(ctx context.Context, name string, op func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialDelay > 0 {
		bo.InitialInterval = p.InitialDelay
	}
	if p.MaxDelay > 0 {
		bo.MaxInterval = p.MaxDelay
	}
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			break
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		slog.Warn("call failed, retrying",
			"call", name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled while retrying %s: %w", name, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, p.MaxAttempts, lastErr)
}
