package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	errx "github.com/storefront-agent/server/internal/core/error"
)

// MemoryStore is an in-process Store used by tests and local demos.
// It applies the same handle-sorted scan order as the Redis store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{records: make(map[string]Record, len(records))}
	for _, rec := range records {
		if rec.Handle == "" {
			continue
		}
		s.records[rec.Handle] = rec
	}
	return s
}

func (s *MemoryStore) Scroll(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]string, 0, len(s.records))
	for handle := range s.records {
		handles = append(handles, handle)
	}
	sort.Strings(handles)

	records := make([]Record, 0, len(handles))
	for _, handle := range handles {
		if limit > 0 && len(records) >= limit {
			break
		}
		records = append(records, s.records[handle])
	}
	return records, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	if rec.Handle == "" {
		return errx.WrapValidation(fmt.Errorf("record %q has no handle", rec.Title), "catalog record requires a handle")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Handle] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, handle)
	return nil
}

var _ Store = (*MemoryStore)(nil)
