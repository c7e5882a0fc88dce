package watcher

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// StartFsNotify triggers detect() when fsnotify reports a created or
// written file in a watched directory.
func (w *Watcher) StartFsNotify(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	defer w.stopTimers()

	watched := map[string]bool{}
	resync := func() {
		w.mu.RLock()
		want := w.dirs()
		w.mu.RUnlock()

		keep := map[string]bool{}
		for _, dir := range want {
			keep[dir] = true
			if watched[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				w.log.Error("cannot watch directory", "dir", dir, "error", err)
				continue
			}
			watched[dir] = true
			w.log.Debug("watching directory", "dir", dir)
		}
		for dir := range watched {
			if !keep[dir] {
				_ = watcher.Remove(dir)
				delete(watched, dir)
				w.log.Debug("stopped watching directory", "dir", dir)
			}
		}
	}
	resync()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.reload:
			resync()

		case ev, ok := <-watcher.Events:
			if !ok {
				w.log.Error("events channel closed")
				return nil
			}

			w.log.Debug("event", "name", ev.Name, "op", ev.Op)

			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.detect(ev.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("fsnotify error", "error", err)
		}
	}
}
