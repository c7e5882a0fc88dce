package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raoulx24/backup-pruner/internal/config"
	"github.com/raoulx24/backup-pruner/internal/mailbox"
	"github.com/raoulx24/backup-pruner/internal/metrics"
	"github.com/raoulx24/backup-pruner/internal/scheduler"
	"github.com/raoulx24/backup-pruner/internal/watcher"
	"github.com/raoulx24/backup-pruner/internal/worker"
)

func newRunCmd(stderr io.Writer) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run as a daemon: prune on schedule and when new backups land",
		Long: "Run as a daemon until SIGINT or SIGTERM. Series are pruned on their cron\n" +
			"schedule and, for local stores with watching enabled, after a new backup\n" +
			"appears. SIGHUP reloads series, schedules and watch settings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.daemon(ctx, now)
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Prune every series once at startup")
	return cmd
}

// daemon runs the scheduler, watcher and worker until ctx is done. It
// returns only after the worker has finished, and recorded, its current run.
func (a *app) daemon(ctx context.Context, now bool) error {
	mb := mailbox.New[string, worker.Job]()
	col := metrics.NewCollector()
	w := a.newWorker(col, mb)

	sched := scheduler.New(mb, a.clock, a.log.With("component", "scheduler"))
	if err := sched.Reload(a.cfg.Series); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	watch := watcher.New(a.cfg, a.clock, a.log.With("component", "watcher"), mb)

	if a.cfg.Metrics.Listen != "" {
		srv, err := serveMetrics(a, col)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(2)
	go func() {
		defer wg.Done()
		w.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := watch.Start(ctx); err != nil {
			a.log.Error("watcher stopped", "error", err)
		}
	}()

	if now {
		for _, sc := range a.cfg.Series {
			mb.Put(sc.Name, worker.Job{Series: sc.Name, Trigger: worker.TriggerManual, At: a.clock.Now()})
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	a.log.Info("backup-pruner running", "series", len(a.cfg.Series), "config", a.opts.ConfigPath)
	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutting down")
			return nil
		case <-hup:
			newCfg, err := config.Load(a.opts.ConfigPath)
			if err != nil {
				a.log.Error("config reload failed", "error", err)
				continue
			}
			if err := sched.Reload(newCfg.Series); err != nil {
				a.log.Error("config reload failed", "error", err)
				continue
			}
			w.UpdateConfig(newCfg.Series, newCfg.Journal.KeepDays)
			watch.UpdateConfig(newCfg)
			a.log.Info("config reloaded", "series", len(newCfg.Series))
		}
	}
}

func serveMetrics(a *app, col *metrics.Collector) (*http.Server, error) {
	h, err := metrics.Handler(col)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              a.cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", "error", err)
		}
	}()
	a.log.Info("serving metrics", "listen", a.cfg.Metrics.Listen)
	return srv, nil
}
