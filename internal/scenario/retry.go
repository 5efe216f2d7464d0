package scenario

import (
	"context"
	"fmt"
	"time"
)

const maxRetryDelay = 30 * time.Second

// withRetry runs fn with doubling backoff until it succeeds, the attempts
// run out, or the context ends. Persistence writes go through it so a
// transient database hiccup does not abort a scenario mid-script.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if maxRetries >= 0 && attempt >= maxRetries {
			return fmt.Errorf("after %d attempts: %w", attempt+1, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if delay < maxRetryDelay {
			delay *= 2
		}
	}
}
