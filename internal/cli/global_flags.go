package cli

import (
	"fmt"
	"io"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/raoulx24/backup-pruner/internal/config"
	"github.com/raoulx24/backup-pruner/internal/journal"
	"github.com/raoulx24/backup-pruner/internal/logging"
	"github.com/raoulx24/backup-pruner/internal/mailbox"
	"github.com/raoulx24/backup-pruner/internal/metrics"
	"github.com/raoulx24/backup-pruner/internal/store"
	"github.com/raoulx24/backup-pruner/internal/worker"
)

// addGlobalFlags adds the persistent flags shared by every command.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "config.yaml", "Path to the configuration file")
	cmd.PersistentFlags().Bool("dry-run", false, "Plan only; never remove a backup")
	cmd.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")
}

type globalOptions struct {
	ConfigPath string
	DryRun     bool
	LogLevel   string
}

func getGlobalOptions(cmd *cobra.Command) globalOptions {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	level, _ := cmd.Root().PersistentFlags().GetString("log-level")
	return globalOptions{ConfigPath: path, DryRun: dry, LogLevel: level}
}

// app is what every command needs: the loaded config, a logger and, when
// configured, the journal.
type app struct {
	opts    globalOptions
	cfg     *config.Config
	log     logging.Logger
	journal *journal.Journal
	clock   clock.Clock
	open    store.Opener
}

func newApp(cmd *cobra.Command, logOut io.Writer) (*app, error) {
	opts := getGlobalOptions(cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	a := &app{
		opts:  opts,
		cfg:   cfg,
		log:   logging.New(level, cfg.Logging.Format, logOut),
		clock: clock.WallClock,
	}
	a.open = store.Open(a.log)

	if cfg.Journal.Path != "" {
		a.journal, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("closing journal", "error", err)
		}
	}
}

func (a *app) newWorker(col *metrics.Collector, mb *mailbox.Mailbox[string, worker.Job]) *worker.Worker {
	wc := worker.Config{
		Series:          a.cfg.Series,
		Open:            a.open,
		JournalKeepDays: a.cfg.Journal.KeepDays,
		Metrics:         col,
		Clock:           a.clock,
		Log:             a.log,
		DryRun:          a.opts.DryRun,
	}
	// Leave the interface nil rather than holding a nil *journal.Journal.
	if a.journal != nil {
		wc.Journal = a.journal
	}
	return worker.New(wc, mb)
}

func (a *app) requireJournal() error {
	if a.journal == nil {
		return fmt.Errorf("journal is not configured (set journal.path in %s)", a.opts.ConfigPath)
	}
	return nil
}
