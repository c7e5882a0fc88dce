package watcher

import (
	"os"
	"path/filepath"
	"time"
)

// scan lists every watched directory and detects files that are new or
// modified since the previous scan. With notify unset it only refreshes
// seen. Files that disappeared are forgotten.
func (w *Watcher) scan(seen map[string]time.Time, notify bool) {
	w.mu.RLock()
	dirs := w.dirs()
	w.mu.RUnlock()

	present := map[string]bool{}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			w.log.Warn("failed to read dir", "dir", dir, "error", err)
			continue
		}

		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			full := filepath.Join(dir, e.Name())

			info, err := e.Info()
			if err != nil {
				w.log.Debug("stat failed", "path", full, "error", err)
				continue
			}
			present[full] = true

			mod := info.ModTime()
			last, ok := seen[full]
			if ok && !mod.After(last) {
				continue
			}
			seen[full] = mod
			if notify {
				w.detect(full)
			}
		}
	}

	for path := range seen {
		if !present[path] {
			delete(seen, path)
		}
	}
}
