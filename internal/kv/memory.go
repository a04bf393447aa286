package kv

import (
	"context"
	"sync"

	"github.com/safar/go-storefront/internal/database"
)

// MemoryBackend keeps entries in process memory only.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Value: append([]byte(nil), e.Value...), Version: e.Version}, nil
}

func (m *MemoryBackend) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[key].Version != expectedVersion {
		return 0, database.ErrOptimisticLockFailed
	}
	next := expectedVersion + 1
	m.entries[key] = Entry{Value: append([]byte(nil), value...), Version: next}
	return next, nil
}

func (m *MemoryBackend) Version(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.entries[key].Version, nil
}
