package watcher

import (
	"context"
	"time"
)

const defaultPollInterval = 30 * time.Second

// StartPolling rescans the watched directories on a fixed interval. A
// reload rescans at once, with the new directories and interval.
func (w *Watcher) StartPolling(ctx context.Context) {
	defer w.stopTimers()

	// The first scan only records what is already there.
	seen := map[string]time.Time{}
	w.scan(seen, false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.reload:
			w.scan(seen, true)
		case <-w.clock.After(w.pollInterval()):
			w.scan(seen, true)
		}
	}
}

func (w *Watcher) pollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.interval <= 0 {
		return defaultPollInterval
	}
	return w.interval
}
