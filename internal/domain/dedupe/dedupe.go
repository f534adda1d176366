// Package dedupe tracks keys of work that is already pending, so the same
// ledger job is not queued twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 4096

// Deduper records claimed keys until they are released.
type Deduper interface {
	// Claim records key and reports whether it was free.
	// A false result means the key is already claimed.
	Claim(ctx context.Context, key string) bool

	// Release frees key. Releasing an unknown key is a no-op.
	Release(ctx context.Context, key string)

	// Size returns the number of claimed keys.
	Size() int
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	claimed map[string]*list.Element
	order   *list.List // oldest claim at the front
	maxSize int        // 0 or negative means unbounded
}

// NewInMemoryDeduper creates a deduper. When bounded, the oldest claim is
// dropped to make room for a new one.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		claimed: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.claimed[key]; ok {
		return false
	}
	if d.maxSize > 0 && len(d.claimed) >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.claimed, oldest.Value.(string))
	}
	d.claimed[key] = d.order.PushBack(key)
	return true
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.claimed[key]; ok {
		d.order.Remove(e)
		delete(d.claimed, key)
	}
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.claimed)
}
