package mailbox

import (
	"context"
	"sync"
)

// Mailbox holds at most one pending value per key; the latest Put for a key
// wins. It is NOT a queue of values: repeated Puts for the same key collapse
// into one, keeping the key's original place in line. Keys are taken in the
// order they first became pending.
type Mailbox[K comparable, T any] struct {
	mu      sync.Mutex
	pending map[K]T
	order   []K
	notify  chan struct{}
}

// New creates an empty mailbox.
func New[K comparable, T any]() *Mailbox[K, T] {
	return &Mailbox[K, T]{
		pending: make(map[K]T),
		notify:  make(chan struct{}, 1),
	}
}

// Put stores v for k, replacing any value still pending for k.
// It never blocks.
func (m *Mailbox[K, T]) Put(k K, v T) {
	m.mu.Lock()
	if _, ok := m.pending[k]; !ok {
		m.order = append(m.order, k)
	}
	m.pending[k] = v
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Take blocks until a value is available or ctx is done.
func (m *Mailbox[K, T]) Take(ctx context.Context) (K, T, error) {
	for {
		if k, v, ok := m.TryTake(); ok {
			return k, v, nil
		}
		select {
		case <-ctx.Done():
			var (
				k K
				v T
			)
			return k, v, ctx.Err()
		case <-m.notify:
		}
	}
}

// TryTake returns the oldest pending key and its latest value, if any.
// It never blocks.
func (m *Mailbox[K, T]) TryTake() (K, T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) == 0 {
		var (
			k K
			v T
		)
		return k, v, false
	}

	k := m.order[0]
	m.order = m.order[1:]
	v := m.pending[k]
	delete(m.pending, k)

	// Leave a token for the next Take if more keys are waiting.
	if len(m.order) > 0 {
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}
	return k, v, true
}

// Len reports how many keys are pending.
func (m *Mailbox[K, T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
