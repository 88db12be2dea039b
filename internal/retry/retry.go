// Package retry runs an operation a bounded number of times with a randomized
// pause between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// ErrPermanent marks an error that must not be retried. Wrap with Permanent.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (p permanentError) Error() string        { return p.err.Error() }
func (p permanentError) Unwrap() error        { return p.err }
func (p permanentError) Is(target error) bool { return target == ErrPermanent }

// Permanent stops Do from retrying err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Policy bounds a retry loop.
type Policy struct {
	Attempts   int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// Sleep waits between attempts; nil uses a timer that honours ctx.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Result describes how a retry loop ended.
type Result struct {
	Attempts int
	Err      error
}

// OK reports whether some attempt succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Backoff picks a pause uniformly from [MinBackoff, MaxBackoff].
func (p Policy) Backoff() time.Duration {
	lo, hi := p.MinBackoff, p.MaxBackoff
	if hi < lo {
		hi = lo
	}
	if hi == lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}

// Do calls op until it succeeds, returns a Permanent error, ctx ends, or
// Attempts is exhausted. attempt is 1-based.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) Result {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return Result{Attempts: attempt}
		}
		lastErr = err

		if errors.Is(err, ErrPermanent) {
			return Result{Attempts: attempt, Err: err}
		}
		if attempt == attempts {
			break
		}

		wait := p.Backoff()
		logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"of", attempts,
			"backoff", wait,
			"error", err,
		)
		if err := sleep(ctx, wait); err != nil {
			return Result{Attempts: attempt, Err: fmt.Errorf("retry interrupted: %w", err)}
		}
	}

	return Result{Attempts: attempts, Err: fmt.Errorf("after %d attempts: %w", attempts, lastErr)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
