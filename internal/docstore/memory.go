package docstore

import (
	"context"
	"fmt"
	"sync"

	"didstore/internal/access"
)

// MemoryStore is an in-memory DocumentStore. It backs mem:// DSNs and is the
// workhorse of the test suite. Safe for concurrent use.
type MemoryStore struct {
	name string
	mu   sync.RWMutex
	docs map[string]access.Record
}

var _ access.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store with the given physical
// name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name: name,
		docs: make(map[string]access.Record),
	}
}

// Put creates or replaces the record under its _id.
func (m *MemoryStore) Put(_ context.Context, doc access.Record) (access.Record, error) {
	id := doc.ID()
	if id == "" {
		return nil, fmt.Errorf("putting document in %q: missing _id", m.name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = doc.Clone()
	return doc, nil
}

// Get returns the record with the given identifier, soft-deleted or not.
func (m *MemoryStore) Get(_ context.Context, id string) (access.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q in %q: %w", id, m.name, access.ErrNotFound)
	}
	return doc.Clone(), nil
}

// Find returns all live records matching the query.
func (m *MemoryStore) Find(_ context.Context, query access.FindQuery) (*access.FindResult, error) {
	m.mu.RLock()
	docs := make([]access.Record, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc.Clone())
	}
	m.mu.RUnlock()

	matched, err := Apply(docs, query)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", m.name, err)
	}
	return &access.FindResult{Docs: matched}, nil
}

// Len returns the number of stored records, soft-deleted included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// memRegistry keeps mem:// stores alive per (dsn, name) so every backend
// opened against the same DSN observes the same data, mirroring how a remote
// replica behaves.
var memRegistry = struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}{stores: make(map[string]*MemoryStore)}

func memoryStoreFor(dsn, name string) *MemoryStore {
	key := dsn + "\x00" + name
	memRegistry.mu.Lock()
	defer memRegistry.mu.Unlock()
	store, ok := memRegistry.stores[key]
	if !ok {
		store = NewMemoryStore(name)
		memRegistry.stores[key] = store
	}
	return store
}
