package shell

import (
	"sync"
	"time"
)

// registry keeps values by id and forgets those idle for longer than ttl.
type registry[T any] struct {
	ttl     time.Duration
	now     func() time.Time
	onEvict func(id string, v T)

	mu      sync.Mutex
	entries map[string]*slot[T]
}

type slot[T any] struct {
	val  T
	seen time.Time
}

func newRegistry[T any](ttl time.Duration, now func() time.Time, onEvict func(string, T)) *registry[T] {
	return &registry[T]{ttl: ttl, now: now, onEvict: onEvict, entries: map[string]*slot[T]{}}
}

// get returns the value for id and marks it used.
func (r *registry[T]) get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	s.seen = r.now()
	return s.val, true
}

func (r *registry[T]) put(id string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &slot[T]{val: v, seen: r.now()}
}

// remove drops id without calling onEvict.
func (r *registry[T]) remove(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(r.entries, id)
	return s.val, true
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sweep evicts idle entries and returns how many went. onEvict runs after
// the lock is released.
func (r *registry[T]) sweep() int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.ttl)
	var gone []string
	var vals []T
	for id, s := range r.entries {
		if s.seen.Before(cutoff) {
			gone = append(gone, id)
			vals = append(vals, s.val)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()
	if r.onEvict != nil {
		for i, id := range gone {
			r.onEvict(id, vals[i])
		}
	}
	return len(gone)
}
