package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/raoulx24/backup-pruner/internal/retention"
	"github.com/raoulx24/backup-pruner/internal/worker"
)

func newPruneCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "prune [series...]",
		Short: "Delete the backups each series' policy gives up on",
		Long: "Delete the backups each series' policy gives up on. A failed removal does not\n" +
			"stop the run; the command exits non-zero once every series has been processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			series, err := a.cfg.Lookup(args...)
			if err != nil {
				return err
			}

			w := a.newWorker(nil, nil)
			table := newTable("SERIES", "ACTION", "NAME", "CREATED", "AGE", "SIZE", "REASON")
			var errs []error
			for _, sc := range series {
				res, err := w.Prune(cmd.Context(), sc, worker.TriggerManual, sc.DryRun)
				if err != nil && !errors.Is(err, worker.ErrRemoveFailed) {
					errs = append(errs, err)
					continue
				}
				errs = append(errs, err)

				summary(stdout, res)
				failed := map[string]error{}
				for _, f := range res.Failed {
					failed[f.Record.ID] = f.Err
				}
				decisionRows(table, res, res.StartedAt, func(r retention.Record) (string, string) {
					switch {
					case failed[r.ID] != nil:
						return "FAILED", failed[r.ID].Error()
					case res.DryRun:
						return "WOULD DELETE", "dry run"
					}
					return "DELETED", ""
				})
			}
			printTable(stdout, table)
			return errors.Join(errs...)
		},
	}
}
