// Package retry provides a bounded, fixed-interval retry helper.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy bounds a retry loop. Attempts are spaced by Interval with no backoff.
type Policy struct {
	Attempts int
	Interval time.Duration

	// Sleep defaults to a timer-based sleeper. Tests replace it.
	Sleep Sleeper
}

// ExhaustedError carries the attempt count and the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%v after %d attempt(s)", ErrExhausted, e.Attempts)
	}
	return fmt.Sprintf("%v after %d attempt(s): %v", ErrExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
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

// Poll calls fn until it returns nil or the policy's attempts are used up.
//
// The interval is slept between attempts only, so a policy of 30 attempts
// at 1s makes 30 calls and 29 sleeps. Attempts are numbered from 1.
//
// Returns:
//   - The number of attempts made
//   - nil on success
//   - *ExhaustedError (matching ErrExhausted) when all attempts failed
//   - ctx.Err() if the context ends while sleeping
func Poll(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) (int, error) {
	if p.Attempts < 1 {
		return 0, fmt.Errorf("retry policy needs at least one attempt, got %d", p.Attempts)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		last = fn(ctx, attempt)
		if last == nil {
			return attempt, nil
		}

		if attempt < p.Attempts {
			if err := sleep(ctx, p.Interval); err != nil {
				return attempt, err
			}
		}
	}
	return p.Attempts, &ExhaustedError{Attempts: p.Attempts, Last: last}
}
