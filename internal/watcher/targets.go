package watcher

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/raoulx24/backup-pruner/internal/config"
)

// target is a series whose backups live in a watched directory.
type target struct {
	series string
	prefix string
}

// UpdateConfig swaps in new watch settings and series for hot-reload.
// A running watcher picks up added or removed directories.
func (w *Watcher) UpdateConfig(cfg *config.Config) {
	w.apply(cfg)

	select {
	case w.reload <- struct{}{}:
	default:
	}
}

func (w *Watcher) apply(cfg *config.Config) {
	targets := map[string][]target{}
	for _, s := range cfg.Series {
		if s.Store.Kind != config.StoreLocal || s.Store.Path == "" {
			continue
		}
		dir := filepath.Clean(s.Store.Path)
		targets[dir] = append(targets[dir], target{series: s.Name, prefix: s.Prefix})
	}

	w.mu.Lock()
	w.mode = cfg.Watch.Mode
	w.interval = cfg.Watch.PollInterval
	w.debounce = cfg.Watch.DebounceWindow
	w.targets = targets
	w.mu.Unlock()
}

// dirs returns the watched directories, sorted. Callers hold w.mu.
func (w *Watcher) dirs() []string {
	out := make([]string, 0, len(w.targets))
	for dir := range w.targets {
		out = append(out, dir)
	}
	slices.Sort(out)
	return out
}

// match returns the series in dir whose prefix name carries. Dotfiles are
// never backups: they are temp files, trash directories or probe files.
func (w *Watcher) match(dir, name string) []string {
	if name == "" || strings.HasPrefix(name, ".") {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []string
	for _, t := range w.targets[filepath.Clean(dir)] {
		if strings.HasPrefix(name, t.prefix) {
			out = append(out, t.series)
		}
	}
	return out
}
