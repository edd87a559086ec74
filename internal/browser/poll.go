package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollExhausted is returned when the predicate never held within the attempt budget.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// Predicate reports whether the awaited condition holds. Errors are treated as "not yet".
type Predicate func(ctx context.Context) (bool, error)

// Poll evaluates predicate immediately and then every interval until it holds, maxAttempts
// evaluations were made, or ctx is done.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, predicate Predicate) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		ok, err := predicate(ctx)
		if ok && err == nil {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if attempt >= maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrPollExhausted, maxAttempts, lastErr)
	}
	return fmt.Errorf("%w after %d attempts", ErrPollExhausted, maxAttempts)
}
