package events

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of rec.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	rec.Data = maps.Clone(rec.Data)
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

// List returns matching records, newest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.limit()
	out := make([]Record, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.matches(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() {}
