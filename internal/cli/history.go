package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history [series]",
		Short: "Show recent retention runs from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireJournal(); err != nil {
				return err
			}

			if runID != "" {
				entries, err := a.journal.Entries(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					return fmt.Errorf("no decisions recorded for run %q", runID)
				}
				table := newTable("ACTION", "NAME", "CREATED", "REASON")
				for _, e := range entries {
					at := "-"
					if !e.CreatedAt.IsZero() {
						at = e.CreatedAt.Format(time.RFC3339)
					}
					table.AddRow(e.Action, e.Name, at, e.Reason)
				}
				printTable(stdout, table)
				return nil
			}

			var series string
			if len(args) == 1 {
				series = args[0]
			}
			runs, err := a.journal.Runs(cmd.Context(), series, limit)
			if err != nil {
				return err
			}

			now := a.clock.Now()
			table := newTable("RUN", "STARTED", "SERIES", "TRIGGER", "MATCHED", "KEPT", "DELETED", "FAILED", "DRY RUN", "ERROR")
			for _, r := range runs {
				table.AddRow(r.ID, humanize.RelTime(r.StartedAt, now, "ago", "from now"), r.Series, r.Trigger,
					r.Matched, r.Kept, r.Deleted, r.Failed, r.DryRun, r.Error)
			}
			printTable(stdout, table)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the per-backup decisions of one run")
	return cmd
}
