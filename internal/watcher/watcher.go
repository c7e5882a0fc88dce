// Package watcher monitors local backup directories and asks for a
// retention run when a new backup of a series lands.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/raoulx24/backup-pruner/internal/config"
	"github.com/raoulx24/backup-pruner/internal/fsprobe"
	"github.com/raoulx24/backup-pruner/internal/logging"
	"github.com/raoulx24/backup-pruner/internal/mailbox"
	"github.com/raoulx24/backup-pruner/internal/worker"
)

// Watcher observes the directories of local series and enqueues a job for
// a series once its directory has been quiet for the debounce window.
type Watcher struct {
	mu sync.RWMutex

	mode     string
	interval time.Duration
	debounce time.Duration
	targets  map[string][]target // keyed by directory

	timers map[string]clock.Timer // pending debounce per series
	reload chan struct{}

	clock clock.Clock
	log   logging.Logger
	mb    *mailbox.Mailbox[string, worker.Job]
}

// New creates a watcher from the watch settings and series of cfg.
func New(cfg *config.Config, clk clock.Clock, log logging.Logger, mb *mailbox.Mailbox[string, worker.Job]) *Watcher {
	if clk == nil {
		clk = clock.WallClock
	}
	w := &Watcher{
		timers: map[string]clock.Timer{},
		reload: make(chan struct{}, 1),
		clock:  clk,
		log:    log,
		mb:     mb,
	}
	w.apply(cfg)
	return w
}

// Start chooses the watching strategy from the configured mode and blocks
// until ctx is done. Mode "off" returns at once.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.RLock()
	mode := w.mode
	dirs := w.dirs()
	w.mu.RUnlock()

	switch mode {
	case "off", "":
		w.log.Debug("watcher disabled")
		return nil

	case "fsnotify":
		return w.StartFsNotify(ctx)

	case "poll":
		w.StartPolling(ctx)
		return nil

	case "auto":
		for _, dir := range dirs {
			res := fsprobe.Probe(ctx, dir, fsprobe.DefaultTimeout)
			if !res.FsnotifySupported {
				w.log.Warn("fsnotify disabled, falling back to polling", "dir", dir, "reason", res.Reason)
				w.StartPolling(ctx)
				return nil
			}
		}
		return w.StartFsNotify(ctx)

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}
