package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Policy bounds a retry loop. Delays come from a fresh BackOff per Do call.
type Policy struct {
	MaxAttempts int
	BackOff     func() backoff.BackOff
	// Retryable decides whether a failed attempt is worth another try.
	// Nil retries every error.
	Retryable func(error) bool
	OnRetry   func(attempt int, err error, delay time.Duration)
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Constant waits d between attempts.
func Constant(d time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// Exponential doubles the delay from base on each attempt, capped at max.
// There is no jitter so schedules are reproducible.
func Exponential(base, max time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = base
		b.RandomizationFactor = 0
		b.Multiplier = 2
		b.MaxInterval = max
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// Do runs op until it succeeds, returns a permanent error, the policy's
// attempts run out, or ctx is done.
func Do(ctx context.Context, p Policy, op Operation) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var schedule backoff.BackOff = &backoff.ZeroBackOff{}
	if p.BackOff != nil {
		schedule = p.BackOff()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx, attempt); err == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry interrupted: %w", sleepErr)
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
