package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/raoulx24/backup-pruner/internal/retention"
)

func newPlanCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [series...]",
		Short: "Show which backups each series would keep and delete",
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
			for _, sc := range series {
				res, err := w.Plan(cmd.Context(), sc)
				if err != nil {
					return err
				}
				summary(stdout, res)
				decisionRows(table, res, res.StartedAt, func(retention.Record) (string, string) {
					return "DELETE", "outside policy"
				})
			}
			printTable(stdout, table)
			return nil
		},
	}
}
