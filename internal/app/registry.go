package service

import (
	"slices"
	"sync"

	"github.com/okian/tally/internal/domain/ledger"
)

// Registry holds the live ledgers keyed by id.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[int]*ledger.Ledger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[int]*ledger.Ledger)}
}

// Get returns the ledger with id.
func (r *Registry) Get(id int) (*ledger.Ledger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[id]
	return l, ok
}

// Put registers l, replacing any ledger with the same id.
func (r *Registry) Put(l *ledger.Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[l.ID()] = l
}

// List returns every ledger ordered by id.
func (r *Registry) List() []*ledger.Ledger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ledger.Ledger, 0, len(r.ledgers))
	for _, l := range r.ledgers {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *ledger.Ledger) int { return a.ID() - b.ID() })
	return out
}

// Len returns the number of ledgers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ledgers)
}

// Clear drops every ledger.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.ledgers)
}
