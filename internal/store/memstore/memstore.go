// Package memstore is an in-memory store for tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/raoulx24/backup-pruner/internal/retention"
)

type Store struct {
	mu      sync.Mutex
	records []retention.Record
	removed []string
	failing map[string]error
	listErr error
}

// New returns a store holding records in listing order.
func New(records ...retention.Record) *Store {
	return &Store{records: slices.Clone(records), failing: map[string]error{}}
}

// FailRemove makes removing id return err.
func (s *Store) FailRemove(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[id] = err
}

// FailList makes List return err.
func (s *Store) FailList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *Store) List(context.Context) ([]retention.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return slices.Clone(s.records), nil
}

func (s *Store) Remove(_ context.Context, r retention.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failing[r.ID]; err != nil {
		return err
	}
	i := slices.IndexFunc(s.records, func(x retention.Record) bool { return x.ID == r.ID })
	if i < 0 {
		return fmt.Errorf("no backup %q", r.ID)
	}
	s.records = slices.Delete(s.records, i, i+1)
	s.removed = append(s.removed, r.ID)
	return nil
}

// Removed returns the IDs removed so far, in order.
func (s *Store) Removed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.removed)
}
