package session

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Ensure MemoryStore satisfies Store at compile time.
var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Find returns a copy of the live data for key.
func (m *MemoryStore) Find(_ context.Context, key string) (Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return Data{}, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return Data{}, oops.Code("SESSION_EXPIRED").Wrap(ErrNotFound)
	}
	return entry.data.clone(), nil
}

// Save upserts a copy of data under key.
func (m *MemoryStore) Save(_ context.Context, key string, data Data, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{data: data.clone(), expiresAt: expiresAt}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// DeleteExpired drops every expired entry and returns how many were removed.
func (m *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed int64
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
