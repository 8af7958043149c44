// Package storage is the persistence boundary of the wallet core. State is
// stored as opaque keyed blobs: restored verbatim at process start and
// written through on every change. The core never interprets the payloads.
package storage

import "sync"

// Store persists keyed blobs.
type Store interface {
	// Load returns the blob stored under key and whether it exists.
	Load(key string) ([]byte, bool, error)
	// Save writes the blob under key, replacing any previous value.
	Save(key string, value []byte) error
	// Close releases underlying resources.
	Close() error
}

// Memory is an in-process Store for tests and ephemeral runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *Memory) Save(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *Memory) Close() error { return nil }
