package audit

import (
	"context"
	"sync"
)

// MemorySink keeps entries in process memory.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemorySink) ListAll(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...), nil
}

func (s *MemorySink) DeleteFirst(_ context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(max(n, 0), len(s.entries))
	s.entries = append([]Entry(nil), s.entries[n:]...)
	return nil
}
