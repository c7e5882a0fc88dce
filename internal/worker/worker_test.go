package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/raoulx24/backup-pruner/internal/config"
	"github.com/raoulx24/backup-pruner/internal/journal"
	"github.com/raoulx24/backup-pruner/internal/logging"
	"github.com/raoulx24/backup-pruner/internal/mailbox"
	"github.com/raoulx24/backup-pruner/internal/metrics"
	"github.com/raoulx24/backup-pruner/internal/retention"
	"github.com/raoulx24/backup-pruner/internal/store"
	"github.com/raoulx24/backup-pruner/internal/store/memstore"
)

var now = time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

// sixBackups returns db_0 .. db_5, one day apart, oldest first.
func sixBackups() []retention.Record {
	var out []retention.Record
	for i := range 6 {
		name := fmt.Sprintf("db_%d", i)
		out = append(out, retention.Record{
			ID:        name,
			Name:      name,
			CreatedAt: now.AddDate(0, 0, i-6),
		})
	}
	return out
}

func opener(s store.Store) store.Opener {
	return func(context.Context, config.StoreConfig) (store.Store, error) { return s, nil }
}

func series(keepLast int) config.SeriesConfig {
	return config.SeriesConfig{
		Name:     "db",
		Prefix:   "db_",
		KeepLast: keepLast,
		Store:    config.StoreConfig{Kind: config.StoreLocal, Path: "/unused"},
	}
}

type fakeJournal struct {
	mu      sync.Mutex
	runs    []journal.Run
	cutoffs []time.Time
	err     error
}

func (j *fakeJournal) Record(_ context.Context, run journal.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.runs = append(j.runs, run)
	return nil
}

func (j *fakeJournal) Trim(_ context.Context, cutoff time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cutoffs = append(j.cutoffs, cutoff)
	return 0, nil
}

func newWorker(st store.Store, j Journal, col *metrics.Collector) *Worker {
	return New(Config{
		Series:          []config.SeriesConfig{series(4)},
		Open:            opener(st),
		Journal:         j,
		JournalKeepDays: 30,
		Metrics:         col,
		Clock:           testclock.NewClock(now),
		Log:             logging.Nop(),
	}, mailbox.New[string, Job]())
}

func TestPruneDeletesOldest(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	j := &fakeJournal{}
	col := metrics.NewCollector()
	w := newWorker(st, j, col)

	res, err := w.Prune(context.Background(), series(4), TriggerManual, false)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Removed(), qt.DeepEquals, []string{"db_1", "db_0"})
	c.Assert(res.Matched(), qt.Equals, 6)
	c.Assert(res.Removed, qt.HasLen, 2)
	c.Assert(res.RunID, qt.Not(qt.Equals), "")

	c.Assert(j.runs, qt.HasLen, 1)
	run := j.runs[0]
	c.Assert(run.Series, qt.Equals, "db")
	c.Assert(run.Trigger, qt.Equals, TriggerManual)
	c.Assert(run.Kept, qt.Equals, 4)
	c.Assert(run.Deleted, qt.Equals, 2)
	c.Assert(run.Entries, qt.HasLen, 6)
	c.Assert(run.Entries[0].Action, qt.Equals, journal.ActionKeep)
	c.Assert(run.Entries[0].Name, qt.Equals, "db_5")
	c.Assert(run.Entries[4].Action, qt.Equals, journal.ActionDelete)
	c.Assert(run.Entries[4].Name, qt.Equals, "db_1")

	c.Assert(j.cutoffs, qt.DeepEquals, []time.Time{now.AddDate(0, 0, -30)})

	c.Assert(testutil.CollectAndCount(col, "backup_pruner_runs_total"), qt.Equals, 1)
}

func TestPruneDryRun(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	j := &fakeJournal{}
	w := newWorker(st, j, nil)

	res, err := w.Prune(context.Background(), series(4), TriggerManual, true)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Removed(), qt.HasLen, 0)
	c.Assert(res.DryRun, qt.IsTrue)
	c.Assert(res.Decision.Delete, qt.HasLen, 2)

	c.Assert(j.runs[0].DryRun, qt.IsTrue)
	c.Assert(j.runs[0].Deleted, qt.Equals, 0)
	c.Assert(j.runs[0].Entries[5].Reason, qt.Equals, "dry run")
}

func TestWorkerDryRunOverridesSeries(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	w := New(Config{
		Series: []config.SeriesConfig{series(1)},
		Open:   opener(st),
		Clock:  testclock.NewClock(now),
		DryRun: true,
	}, mailbox.New[string, Job]())

	res, err := w.Prune(context.Background(), series(1), TriggerManual, false)
	c.Assert(err, qt.IsNil)
	c.Assert(res.DryRun, qt.IsTrue)
	c.Assert(st.Removed(), qt.HasLen, 0)
}

func TestPruneContinuesPastFailures(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	st.FailRemove("db_1", errors.New("permission denied"))
	j := &fakeJournal{}
	col := metrics.NewCollector()
	w := newWorker(st, j, col)

	res, err := w.Prune(context.Background(), series(4), TriggerManual, false)
	c.Assert(errors.Is(err, ErrRemoveFailed), qt.IsTrue)
	c.Assert(st.Removed(), qt.DeepEquals, []string{"db_0"})
	c.Assert(res.Failed, qt.HasLen, 1)
	c.Assert(res.Failed[0].Record.ID, qt.Equals, "db_1")

	run := j.runs[0]
	c.Assert(run.Failed, qt.Equals, 1)
	c.Assert(run.Entries[4].Action, qt.Equals, journal.ActionFailed)
	c.Assert(run.Entries[4].Reason, qt.Equals, "permission denied")
}

func TestPruneListFailure(t *testing.T) {
	c := qt.New(t)
	st := memstore.New()
	st.FailList(errors.New("bucket gone"))
	j := &fakeJournal{}
	w := newWorker(st, j, nil)

	_, err := w.Prune(context.Background(), series(4), TriggerSchedule, false)
	c.Assert(err, qt.ErrorMatches, "listing db: bucket gone")
	c.Assert(j.runs, qt.HasLen, 1)
	c.Assert(j.runs[0].Error, qt.Equals, "listing db: bucket gone")
}

func TestPruneOpenFailure(t *testing.T) {
	c := qt.New(t)
	j := &fakeJournal{}
	w := New(Config{
		Open: func(context.Context, config.StoreConfig) (store.Store, error) {
			return nil, errors.New("no credentials")
		},
		Journal: j,
		Clock:   testclock.NewClock(now),
	}, mailbox.New[string, Job]())

	_, err := w.Prune(context.Background(), series(4), TriggerManual, false)
	c.Assert(err, qt.ErrorMatches, "opening store for db: no credentials")
	c.Assert(j.runs, qt.HasLen, 1)
}

func TestPruneInvalidPolicy(t *testing.T) {
	c := qt.New(t)
	w := newWorker(memstore.New(sixBackups()...), nil, nil)

	sc := series(4)
	sc.Keep = config.KeepConfig{Days: 7}
	_, err := w.Prune(context.Background(), sc, TriggerManual, false)
	c.Assert(errors.Is(err, retention.ErrInvalidPolicy), qt.IsTrue)
}

func TestPlanCalendar(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	w := newWorker(st, nil, nil)

	sc := series(0)
	sc.Keep = config.KeepConfig{Days: 4}
	res, err := w.Plan(context.Background(), sc)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Decision.Retained, qt.HasLen, 3)
	c.Assert(res.Decision.Delete, qt.HasLen, 3)
	c.Assert(st.Removed(), qt.HasLen, 0)
}

func TestJournalFailureDoesNotFailRun(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	w := newWorker(st, &fakeJournal{err: errors.New("disk full")}, nil)

	_, err := w.Prune(context.Background(), series(4), TriggerManual, false)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Removed(), qt.HasLen, 2)
}

func TestPruneWithSQLiteJournal(t *testing.T) {
	c := qt.New(t)
	j, err := journal.Open(filepath.Join(c.TempDir(), "journal.db"))
	c.Assert(err, qt.IsNil)
	defer j.Close()

	w := newWorker(memstore.New(sixBackups()...), j, nil)
	res, err := w.Prune(context.Background(), series(4), TriggerManual, false)
	c.Assert(err, qt.IsNil)

	runs, err := j.Runs(context.Background(), "db", 1)
	c.Assert(err, qt.IsNil)
	c.Assert(runs, qt.HasLen, 1)
	c.Assert(runs[0].ID, qt.Equals, res.RunID)

	entries, err := j.Entries(context.Background(), res.RunID)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 6)
}

func TestStartHandlesQueuedJobs(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	j := &fakeJournal{}
	mb := mailbox.New[string, Job]()
	w := New(Config{
		Series:  []config.SeriesConfig{series(4)},
		Open:    opener(st),
		Journal: j,
		Clock:   testclock.NewClock(now),
	}, mb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	mb.Put("db", Job{Series: "db", Trigger: TriggerSchedule, At: now})

	deadline := time.After(5 * time.Second)
	for len(st.Removed()) < 2 {
		select {
		case <-deadline:
			c.Fatal("job was not handled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	c.Assert(j.runs[0].Trigger, qt.Equals, TriggerSchedule)
}

func TestHandleUnknownSeries(t *testing.T) {
	c := qt.New(t)
	w := newWorker(memstore.New(), nil, nil)

	err := w.Handle(context.Background(), Job{Series: "nope"})
	c.Assert(err, qt.ErrorMatches, `unknown series "nope"`)
}

func TestUpdateConfig(t *testing.T) {
	c := qt.New(t)
	st := memstore.New(sixBackups()...)
	w := newWorker(st, nil, nil)

	sc := series(1)
	sc.Name = "other"
	w.UpdateConfig([]config.SeriesConfig{sc}, 0)

	c.Assert(w.Handle(context.Background(), Job{Series: "db"}), qt.ErrorMatches, `unknown series "db"`)
	c.Assert(w.Handle(context.Background(), Job{Series: "other"}), qt.IsNil)
	c.Assert(st.Removed(), qt.HasLen, 5)
}
