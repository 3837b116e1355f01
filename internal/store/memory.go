package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory LocalStore for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]json.RawMessage)}
}

// Fetch returns the records for entityType in stored order.
func (s *MemoryStore) Fetch(ctx context.Context, entityType string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]json.RawMessage(nil), s.records[entityType]...), nil
}

// Replace swaps the record set for entityType.
func (s *MemoryStore) Replace(ctx context.Context, entityType string, records []json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[entityType] = append([]json.RawMessage(nil), records...)
	return nil
}

// Count returns the number of stored records for entityType.
func (s *MemoryStore) Count(ctx context.Context, entityType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[entityType]), nil
}
