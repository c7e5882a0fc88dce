package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"

	"github.com/raoulx24/backup-pruner/internal/retention"
	"github.com/raoulx24/backup-pruner/internal/worker"
)

func newTable(header ...any) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow(header...)
	return table
}

func printTable(w io.Writer, table *uitable.Table) {
	fmt.Fprintln(w, table)
}

func created(r retention.Record, now time.Time) (string, string) {
	if !r.HasCreatedAt() {
		return "-", "-"
	}
	return r.CreatedAt.Format(time.RFC3339), humanize.RelTime(r.CreatedAt, now, "ago", "from now")
}

func size(r retention.Record) string {
	if r.Size <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(r.Size))
}

func reason(v retention.Verdict) string {
	if v.Reason.Rule == retention.RuleLast {
		return fmt.Sprintf("last %d", v.Reason.Bucket)
	}
	return fmt.Sprintf("%s bucket %d (window from %s)", v.Reason.Rule, v.Reason.Bucket,
		v.Reason.WindowStart.Format(time.DateOnly))
}

// decisionRows adds one KEEP row per retained backup and one row per
// backup given up on, with the action deleteAction returns for it.
func decisionRows(table *uitable.Table, res worker.Result, now time.Time, deleteAction func(retention.Record) (string, string)) {
	for _, v := range res.Decision.Retained {
		at, age := created(v.Record, now)
		table.AddRow(res.Series, "KEEP", v.Record.Name, at, age, size(v.Record), reason(v))
	}
	for _, r := range res.Decision.Delete {
		at, age := created(r, now)
		action, why := deleteAction(r)
		table.AddRow(res.Series, action, r.Name, at, age, size(r), why)
	}
}

func summary(w io.Writer, res worker.Result) {
	fmt.Fprintf(w, "%s: %d matched, %d kept, %d to delete (%s)\n",
		res.Series, res.Matched(), len(res.Decision.Retained), len(res.Decision.Delete), res.Policy)
}
