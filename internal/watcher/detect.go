package watcher

import (
	"path/filepath"

	"github.com/juju/clock"

	"github.com/raoulx24/backup-pruner/internal/worker"
)

// detect reacts to a new or changed file at path.
func (w *Watcher) detect(path string) {
	dir, name := filepath.Split(path)
	for _, series := range w.match(dir, name) {
		w.log.Debug("backup detected", "series", series, "file", name)
		w.trigger(series)
	}
}

// trigger (re)starts the debounce timer of series. Backups are often
// written in several steps; the job is posted once writes stop.
func (w *Watcher) trigger(series string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[series]; ok {
		t.Stop()
	}
	if w.debounce <= 0 {
		delete(w.timers, series)
		w.enqueue(series)
		return
	}
	// t is assigned under w.mu, and the callback takes w.mu before reading it.
	var t clock.Timer
	t = w.clock.AfterFunc(w.debounce, func() { w.fired(series, t) })
	w.timers[series] = t
}

// fired runs when the debounce timer t of series expires. A newer timer may
// already have replaced t; its entry stays so stopTimers can still cancel it.
func (w *Watcher) fired(series string, t clock.Timer) {
	w.mu.Lock()
	if w.timers[series] == t {
		delete(w.timers, series)
	}
	w.mu.Unlock()
	w.enqueue(series)
}

func (w *Watcher) enqueue(series string) {
	w.mb.Put(series, worker.Job{
		Series:  series,
		Trigger: worker.TriggerWatch,
		At:      w.clock.Now(),
	})
	w.log.Info("queued retention run", "series", series)
}

// stopTimers cancels pending debounce timers.
func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for series, t := range w.timers {
		t.Stop()
		delete(w.timers, series)
	}
}
