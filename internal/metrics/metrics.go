// Package metrics exposes retention run statistics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backup_pruner"

// Run results used as the "result" label.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultError   = "error"
)

// Collector is a prometheus.Collector holding the per-series retention
// metrics.
type Collector struct {
	runs           *prometheus.CounterVec
	deleted        *prometheus.CounterVec
	deleteFailures *prometheus.CounterVec
	retained       *prometheus.GaugeVec
	matched        *prometheus.GaugeVec
	lastRun        *prometheus.GaugeVec
	runDuration    *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Retention runs by series and result.",
			}, []string{"series", "result"},
		),
		deleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_deleted_total",
				Help:      "Backups removed by retention.",
			}, []string{"series"},
		),
		deleteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delete_failures_total",
				Help:      "Backups that retention failed to remove.",
			}, []string{"series"},
		),
		retained: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records_retained",
				Help:      "Backups kept by the last run.",
			}, []string{"series"},
		),
		matched: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records_matched",
				Help:      "Backups matching the series prefix in the last run.",
			}, []string{"series"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run of the series finished.",
			}, []string{"series"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Time taken by a retention run.",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			}, []string{"series"},
		),
	}
}

// RunStats summarises one run for ObserveRun.
type RunStats struct {
	Series   string
	Matched  int
	Retained int
	Deleted  int
	Failed   int
	Err      error
	Finished time.Time
	Duration time.Duration
}

// ObserveRun records the outcome of a retention run.
func (c *Collector) ObserveRun(s RunStats) {
	result := ResultOK
	switch {
	case s.Err != nil:
		result = ResultError
	case s.Failed > 0:
		result = ResultPartial
	}

	c.runs.WithLabelValues(s.Series, result).Inc()
	c.runDuration.WithLabelValues(s.Series).Observe(s.Duration.Seconds())
	c.lastRun.WithLabelValues(s.Series).Set(float64(s.Finished.Unix()))
	if s.Err != nil {
		return
	}
	c.deleted.WithLabelValues(s.Series).Add(float64(s.Deleted))
	c.deleteFailures.WithLabelValues(s.Series).Add(float64(s.Failed))
	c.retained.WithLabelValues(s.Series).Set(float64(s.Retained))
	c.matched.WithLabelValues(s.Series).Set(float64(s.Matched))
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.runs.Describe(ch)
	c.deleted.Describe(ch)
	c.deleteFailures.Describe(ch)
	c.retained.Describe(ch)
	c.matched.Describe(ch)
	c.lastRun.Describe(ch)
	c.runDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.runs.Collect(ch)
	c.deleted.Collect(ch)
	c.deleteFailures.Collect(ch)
	c.retained.Collect(ch)
	c.matched.Collect(ch)
	c.lastRun.Collect(ch)
	c.runDuration.Collect(ch)
}

// Handler serves the collector, plus Go runtime metrics, on a private
// registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
