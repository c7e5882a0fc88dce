package local

import (
	"context"
	"fmt"
	"time"
)

const (
	maxAttempts = 5
	baseBackoff = 100 * time.Millisecond
)

// retry runs fn until it succeeds, fails with a non-transient error or
// runs out of attempts, doubling the pause after each transient failure.
func retry(ctx context.Context, opName string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return fmt.Errorf("%s failed: %w", opName, err)
		}
		if attempt == maxAttempts {
			break
		}

		t := time.NewTimer(baseBackoff << (attempt - 1))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", opName, maxAttempts, lastErr)
}
