package cache

import (
	"context"
	"sync"

	"idschooldata/pkg/contracts/domain"
)

// MemoryStore keeps encoded tables in process memory. Storing bytes
// rather than pointers keeps callers from mutating cached entries.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key][]byte)}
}

func (s *MemoryStore) Exists(_ context.Context, endYear int, shape domain.Shape) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[Key{EndYear: endYear, Shape: shape}]
	return ok, nil
}

func (s *MemoryStore) Read(_ context.Context, endYear int, shape domain.Shape) (*domain.EnrollmentTable, error) {
	s.mu.RLock()
	data, ok := s.entries[Key{EndYear: endYear, Shape: shape}]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(data)
}

func (s *MemoryStore) Write(_ context.Context, table *domain.EnrollmentTable, endYear int, shape domain.Shape) error {
	if err := checkKey(endYear, shape); err != nil {
		return err
	}
	data, err := Encode(table)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[Key{EndYear: endYear, Shape: shape}] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, endYear int, shape domain.Shape) error {
	s.mu.Lock()
	delete(s.entries, Key{EndYear: endYear, Shape: shape})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]Key, error) {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sortKeys(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }
