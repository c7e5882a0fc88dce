// Package worker applies retention decisions to backup stores, one series
// at a time, and records what it did.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/raoulx24/backup-pruner/internal/config"
	"github.com/raoulx24/backup-pruner/internal/journal"
	"github.com/raoulx24/backup-pruner/internal/logging"
	"github.com/raoulx24/backup-pruner/internal/mailbox"
	"github.com/raoulx24/backup-pruner/internal/metrics"
	"github.com/raoulx24/backup-pruner/internal/retention"
	"github.com/raoulx24/backup-pruner/internal/store"
)

// ErrRemoveFailed is returned when a run could not remove every backup it
// decided to delete.
var ErrRemoveFailed = errors.New("some backups could not be removed")

// Journal is the part of the run journal the worker writes to.
type Journal interface {
	Record(ctx context.Context, run journal.Run) error
	Trim(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds the worker's collaborators. Journal and Metrics are optional.
type Config struct {
	Series          []config.SeriesConfig
	Open            store.Opener
	Journal         Journal
	JournalKeepDays int
	Metrics         *metrics.Collector
	Clock           clock.Clock
	Log             logging.Logger

	// DryRun forces every run to plan only, whatever the series says.
	DryRun bool
}

// Failure is a backup the worker could not remove.
type Failure struct {
	Record retention.Record
	Err    error
}

// Result describes one retention run.
type Result struct {
	RunID      string
	Series     string
	Policy     string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Decision   retention.Decision
	Removed    []retention.Record
	Failed     []Failure
}

// Matched is the number of backups that belonged to the series.
func (r Result) Matched() int {
	return len(r.Decision.Delete) + len(r.Decision.Retained)
}

// Worker runs retention for the series it is configured with.
type Worker struct {
	mu       sync.RWMutex
	series   map[string]config.SeriesConfig
	keepDays int

	open    store.Opener
	journal Journal
	metrics *metrics.Collector
	clock   clock.Clock
	log     logging.Logger
	dryRun  bool
	mb      *mailbox.Mailbox[string, Job]
}

// New creates a worker fed by mb.
func New(cfg Config, mb *mailbox.Mailbox[string, Job]) *Worker {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	cfg.Log.Debug("creating worker", "series", len(cfg.Series))

	w := &Worker{
		open:    cfg.Open,
		journal: cfg.Journal,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
		log:     cfg.Log,
		dryRun:  cfg.DryRun,
		mb:      mb,
	}
	w.UpdateConfig(cfg.Series, cfg.JournalKeepDays)
	return w
}

// UpdateConfig hot-reloads the series definitions.
func (w *Worker) UpdateConfig(series []config.SeriesConfig, journalKeepDays int) {
	m := make(map[string]config.SeriesConfig, len(series))
	for _, s := range series {
		m[s.Name] = s
	}

	w.mu.Lock()
	w.series = m
	w.keepDays = journalKeepDays
	w.mu.Unlock()
}

// Start runs the worker loop until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("starting worker")
	for {
		_, job, err := w.mb.Take(ctx)
		if err != nil {
			w.log.Info("worker stopped")
			return
		}
		if err := w.Handle(ctx, job); err != nil {
			w.log.Error("retention run failed", "series", job.Series, "trigger", job.Trigger, "error", err)
		}
	}
}

// Handle runs retention for the series named by job.
func (w *Worker) Handle(ctx context.Context, job Job) error {
	w.mu.RLock()
	sc, ok := w.series[job.Series]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown series %q", job.Series)
	}

	_, err := w.Prune(ctx, sc, job.Trigger, sc.DryRun)
	return err
}

// Plan lists the series' store and decides what to keep, without
// removing anything.
func (w *Worker) Plan(ctx context.Context, sc config.SeriesConfig) (Result, error) {
	st, err := w.open(ctx, sc.Store)
	if err != nil {
		return Result{}, fmt.Errorf("opening store for %s: %w", sc.Name, err)
	}
	return w.plan(ctx, sc, st)
}

func (w *Worker) plan(ctx context.Context, sc config.SeriesConfig, st store.Store) (Result, error) {
	log := w.log.With("series", sc.Name)
	res := Result{
		RunID:     uuid.NewString(),
		Series:    sc.Name,
		Policy:    sc.Policy().String(),
		DryRun:    true,
		StartedAt: w.clock.Now(),
	}

	records, err := st.List(ctx)
	if err != nil {
		return res, fmt.Errorf("listing %s: %w", sc.Name, err)
	}
	log.Debug("listed store", "records", len(records))

	res.Decision, err = retention.Plan(records, sc.Prefix, sc.Policy(), res.StartedAt)
	if err != nil {
		return res, fmt.Errorf("planning %s: %w", sc.Name, err)
	}
	if res.Decision.Reordered {
		log.Warn("backups were not listed oldest first; ordered by creation time")
	}
	for _, v := range res.Decision.Lapsed {
		log.Debug("bucket representative outside window", "record", v.Record.Name, "rule", v.Reason.Rule)
	}

	res.FinishedAt = w.clock.Now()
	return res, nil
}

// Prune plans the series and removes what the plan gives up on, unless
// dryRun (or the worker-wide dry run) is set. Removal continues past
// individual failures; those are reported in Result.Failed and as
// ErrRemoveFailed.
func (w *Worker) Prune(ctx context.Context, sc config.SeriesConfig, trigger string, dryRun bool) (Result, error) {
	dryRun = dryRun || w.dryRun
	log := w.log.With("series", sc.Name, "trigger", trigger)

	st, err := w.open(ctx, sc.Store)
	if err != nil {
		now := w.clock.Now()
		res := Result{
			RunID:      uuid.NewString(),
			Series:     sc.Name,
			Policy:     sc.Policy().String(),
			DryRun:     dryRun,
			StartedAt:  now,
			FinishedAt: now,
		}
		err = fmt.Errorf("opening store for %s: %w", sc.Name, err)
		w.finish(ctx, res, trigger, err)
		return res, err
	}

	res, err := w.plan(ctx, sc, st)
	res.DryRun = dryRun
	if err != nil {
		w.finish(ctx, res, trigger, err)
		return res, err
	}

	for _, r := range res.Decision.Delete {
		if dryRun {
			log.Info("would delete backup", "record", r.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, Failure{Record: r, Err: err})
			continue
		}
		if err := st.Remove(ctx, r); err != nil {
			log.Error("failed to delete backup", "record", r.Name, "error", err)
			res.Failed = append(res.Failed, Failure{Record: r, Err: err})
			continue
		}
		log.Info("deleted backup", "record", r.Name)
		res.Removed = append(res.Removed, r)
	}
	res.FinishedAt = w.clock.Now()

	log.Info("retention run finished",
		"matched", res.Matched(),
		"kept", len(res.Decision.Retained),
		"deleted", len(res.Removed),
		"failed", len(res.Failed),
		"dryRun", dryRun,
	)

	if len(res.Failed) > 0 {
		err = fmt.Errorf("%w: %d of %d in %s", ErrRemoveFailed, len(res.Failed), len(res.Decision.Delete), sc.Name)
	}
	w.finish(ctx, res, trigger, err)
	return res, err
}
