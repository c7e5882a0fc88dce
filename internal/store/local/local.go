// Package local stores backups as plain files in one directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/raoulx24/backup-pruner/internal/logging"
	"github.com/raoulx24/backup-pruner/internal/retention"
)

// Store lists the regular files directly under Root. Dotfiles and
// directories are never treated as backups, which keeps the trash
// directory and in-flight temp files out of listings.
type Store struct {
	Root     string
	TrashDir string // relative to Root; empty removes files outright

	log logging.Logger
}

func New(root, trashDir string, log logging.Logger) *Store {
	return &Store{Root: root, TrashDir: trashDir, log: log}
}

// List returns the backups ordered by modification time, oldest first.
// Backups are written once, so the modification time is their creation time.
func (s *Store) List(ctx context.Context) ([]retention.Record, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}

	var records []retention.Record
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		name := e.Name()
		if strings.HasPrefix(name, ".") || !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			s.log.Warn("stat failed", "name", name, "error", err)
			records = append(records, retention.Record{ID: name, Name: name})
			continue
		}

		records = append(records, retention.Record{
			ID:        name,
			Name:      name,
			CreatedAt: info.ModTime().UTC(),
			Size:      info.Size(),
		})
	}

	slices.SortStableFunc(records, func(a, b retention.Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return records, nil
}

// Remove deletes the backup, or moves it into TrashDir when one is set.
func (s *Store) Remove(ctx context.Context, r retention.Record) error {
	if r.ID == "" || r.ID != filepath.Base(r.ID) || strings.HasPrefix(r.ID, ".") {
		return fmt.Errorf("refusing to remove %q: not a backup in %s", r.ID, s.Root)
	}
	src := filepath.Join(s.Root, r.ID)

	if s.TrashDir == "" {
		s.log.Debug("deleting backup", "path", src)
		return retry(ctx, "remove", func() error {
			return os.Remove(src)
		})
	}

	trash := filepath.Join(s.Root, s.TrashDir)
	if err := os.MkdirAll(trash, 0o755); err != nil {
		return fmt.Errorf("creating trash dir: %w", err)
	}
	dst := filepath.Join(trash, r.ID)
	s.log.Debug("trashing backup", "path", src, "trash", dst)
	return retry(ctx, "rename", func() error {
		return os.Rename(src, dst)
	})
}

func (s *Store) String() string {
	return "local:" + s.Root
}
