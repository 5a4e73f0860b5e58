package settings

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps settings in process. Used in development and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	cur Settings
	now func() time.Time
}

// NewMemoryStore returns a store seeded with initial.
func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{cur: initial, now: time.Now}
}

func (m *MemoryStore) Current(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now()
	m.cur = s
	return nil
}

var _ Store = (*MemoryStore)(nil)
