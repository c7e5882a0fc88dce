package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/raoulx24/backup-pruner/internal/journal"
	"github.com/raoulx24/backup-pruner/internal/metrics"
	"github.com/raoulx24/backup-pruner/internal/retention"
)

// finish reports a run to the journal and metrics. Journal failures are
// logged, never returned: the run itself already happened.
func (w *Worker) finish(ctx context.Context, res Result, trigger string, runErr error) {
	if res.FinishedAt.IsZero() {
		res.FinishedAt = w.clock.Now()
	}

	if w.metrics != nil {
		stats := metrics.RunStats{
			Series:   res.Series,
			Matched:  res.Matched(),
			Retained: len(res.Decision.Retained),
			Deleted:  len(res.Removed),
			Failed:   len(res.Failed),
			Finished: res.FinishedAt,
			Duration: res.FinishedAt.Sub(res.StartedAt),
		}
		if runErr != nil && !errors.Is(runErr, ErrRemoveFailed) {
			stats.Err = runErr
		}
		w.metrics.ObserveRun(stats)
	}

	if w.journal == nil {
		return
	}

	// Record even if the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	run := toJournalRun(res, trigger, runErr)
	if err := w.journal.Record(ctx, run); err != nil {
		w.log.Error("failed to record run", "series", res.Series, "run", res.RunID, "error", err)
		return
	}

	w.mu.RLock()
	keepDays := w.keepDays
	w.mu.RUnlock()
	if keepDays <= 0 {
		return
	}
	cutoff := res.FinishedAt.AddDate(0, 0, -keepDays)
	n, err := w.journal.Trim(ctx, cutoff)
	if err != nil {
		w.log.Warn("failed to trim journal", "error", err)
		return
	}
	if n > 0 {
		w.log.Debug("trimmed journal", "runs", n)
	}
}

func toJournalRun(res Result, trigger string, runErr error) journal.Run {
	run := journal.Run{
		ID:         res.RunID,
		Series:     res.Series,
		Policy:     res.Policy,
		Trigger:    trigger,
		DryRun:     res.DryRun,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Matched:    res.Matched(),
		Kept:       len(res.Decision.Retained),
		Deleted:    len(res.Removed),
		Failed:     len(res.Failed),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	for _, v := range res.Decision.Retained {
		run.Entries = append(run.Entries, entry(v.Record, journal.ActionKeep, reasonText(v.Reason)))
	}

	failed := make(map[string]error, len(res.Failed))
	for _, f := range res.Failed {
		failed[f.Record.ID] = f.Err
	}
	for _, r := range res.Decision.Delete {
		switch err, ok := failed[r.ID]; {
		case ok:
			run.Entries = append(run.Entries, entry(r, journal.ActionFailed, err.Error()))
		case res.DryRun:
			run.Entries = append(run.Entries, entry(r, journal.ActionDelete, "dry run"))
		default:
			run.Entries = append(run.Entries, entry(r, journal.ActionDelete, ""))
		}
	}
	return run
}

func entry(r retention.Record, action, reason string) journal.Entry {
	return journal.Entry{
		RecordID:  r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		Action:    action,
		Reason:    reason,
	}
}

func reasonText(r retention.Reason) string {
	if r.Rule == retention.RuleLast {
		return retention.RuleLast
	}
	return fmt.Sprintf("%s bucket %d", r.Rule, r.Bucket)
}
