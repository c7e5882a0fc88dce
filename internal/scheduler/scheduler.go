// Package scheduler triggers retention runs on each series' cron schedule.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/robfig/cron/v3"

	"github.com/raoulx24/backup-pruner/internal/config"
	"github.com/raoulx24/backup-pruner/internal/logging"
	"github.com/raoulx24/backup-pruner/internal/mailbox"
	"github.com/raoulx24/backup-pruner/internal/worker"
)

// Scheduler posts a job to the mailbox whenever a series' schedule fires.
// Series without a schedule are only pruned on demand or by the watcher.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	running bool

	mb    *mailbox.Mailbox[string, worker.Job]
	clock clock.Clock
	log   logging.Logger
}

// New creates a scheduler. It does nothing until Start.
func New(mb *mailbox.Mailbox[string, worker.Job], clk clock.Clock, log logging.Logger) *Scheduler {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scheduler{
		cron:    cron.New(),
		entries: map[string]cron.EntryID{},
		mb:      mb,
		clock:   clk,
		log:     log,
	}
}

// Reload replaces every scheduled series with those in series. It is safe
// to call before or after Start.
func (s *Scheduler) Reload(series []config.SeriesConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	for _, sc := range series {
		if sc.Schedule == "" {
			continue
		}
		name := sc.Name
		id, err := s.cron.AddFunc(sc.Schedule, func() { s.fire(name) })
		if err != nil {
			return fmt.Errorf("scheduling %s: invalid cron schedule %q: %w", name, sc.Schedule, err)
		}
		s.entries[name] = id
		s.log.Debug("series scheduled", "series", name, "schedule", sc.Schedule)
	}

	s.log.Info("schedules loaded", "series", len(s.entries))
	return nil
}

func (s *Scheduler) fire(series string) {
	s.log.Debug("schedule fired", "series", series)
	s.mb.Put(series, worker.Job{
		Series:  series,
		Trigger: worker.TriggerSchedule,
		At:      s.clock.Now(),
	})
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started")
}

// Stop stops the scheduler. Jobs already posted stay in the mailbox.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("scheduler stopped")
}

// NextRun returns when series is next due. ok is false for series that are
// not scheduled, or before Start.
func (s *Scheduler) NextRun(series string) (next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[series]
	if !ok {
		return time.Time{}, false
	}
	next = s.cron.Entry(id).Next
	return next, !next.IsZero()
}
