// Package cache provides LocalCache implementations for serialized session
// credentials.
package cache

import (
	"sync"

	"didstore/internal/access"
)

// Memory is an in-process LocalCache. Use in tests and short-lived
// processes. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ access.LocalCache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = stored
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
