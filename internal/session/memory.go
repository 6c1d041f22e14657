package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

const sweepInterval = time.Minute

// MemoryBackend keeps sessions in process. Expired entries are dropped on
// Load and swept from Save at most once per sweepInterval.
type MemoryBackend struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (m *MemoryBackend) Load(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		for key, entry := range m.entries {
			if !now.Before(entry.expiresAt) {
				delete(m.entries, key)
			}
		}
		m.lastSweep = now
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.entries[id] = memoryEntry{data: buf, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
