// Package dedupe tracks recently seen tap ids so client retries are
// acknowledged without being applied twice.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen ids to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a tap that failed before being applied can be
	// retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// window remembers the most recent ids in a fixed ring. When full, the
// oldest id is forgotten first.
type window struct {
	mu    sync.Mutex
	seen  map[string]int // id -> slot in ring
	ring  []string
	next  int
	count int
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := config{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &window{
		seen: make(map[string]int, cfg.maxSize),
		ring: make([]string, cfg.maxSize),
	}
}

func (w *window) SeenAndRecord(_ context.Context, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}
	if w.count == len(w.ring) {
		if old := w.ring[w.next]; old != "" {
			delete(w.seen, old)
		}
		w.count--
	}
	w.ring[w.next] = id
	w.seen[id] = w.next
	w.next = (w.next + 1) % len(w.ring)
	w.count++
	return false
}

func (w *window) Unrecord(_ context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	slot, ok := w.seen[id]
	if !ok {
		return
	}
	delete(w.seen, id)
	// The slot stays occupied until the ring wraps over it.
	w.ring[slot] = ""
}

func (w *window) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.seen))
}
