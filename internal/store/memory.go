package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory ring of the most recent records.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record // oldest first
	size    int
}

// NewMemoryStore creates an in-memory store holding at most size records.
func NewMemoryStore(size int) *MemoryStore {
	if size < 1 {
		size = DefaultSize
	}
	return &MemoryStore{
		records: make([]Record, 0, size),
		size:    size,
	}
}

func (m *MemoryStore) Append(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == m.size {
		copy(m.records, m.records[1:])
		m.records = m.records[:m.size-1]
	}
	m.records = append(m.records, r)
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, n int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	out := make([]Record, 0, n)
	for i := len(m.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
