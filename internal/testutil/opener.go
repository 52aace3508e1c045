package testutil

import (
	"context"
	"errors"
	"sync"

	"didstore/internal/access"
	"didstore/internal/docstore"
)

// RecordingOpener is a BackendOpener that hands out in-memory stores and
// records every BackendConfig it was asked to open, so routing tests can
// assert which variant was selected and what it was given.
type RecordingOpener struct {
	mu      sync.Mutex
	Configs []access.BackendConfig

	// Err, when set, fails every Open.
	Err error
	// Opens counts calls, including failed ones.
	Opens int

	stores map[string]*docstore.MemoryStore
}

var _ access.BackendOpener = (*RecordingOpener)(nil)

func NewRecordingOpener() *RecordingOpener {
	return &RecordingOpener{stores: make(map[string]*docstore.MemoryStore)}
}

func (o *RecordingOpener) Open(_ context.Context, cfg access.BackendConfig) (access.DocumentStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Opens++
	if o.Err != nil {
		return nil, o.Err
	}
	o.Configs = append(o.Configs, cfg)
	store, ok := o.stores[cfg.Name]
	if !ok {
		store = docstore.NewMemoryStore(cfg.Name)
		o.stores[cfg.Name] = store
	}
	return store, nil
}

// Store returns the memory store for a database identity, or nil.
func (o *RecordingOpener) Store(name string) *docstore.MemoryStore {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stores[name]
}

// LastConfig returns the most recent opened config.
func (o *RecordingOpener) LastConfig() (access.BackendConfig, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Configs) == 0 {
		return access.BackendConfig{}, errors.New("no backend opened")
	}
	return o.Configs[len(o.Configs)-1], nil
}

// StaticOpener always hands out the same backend, bypassing DSN resolution
// and variant wrapping.
type StaticOpener struct {
	Backend access.DocumentStore
	Opens   int
}

var _ access.BackendOpener = (*StaticOpener)(nil)

func (o *StaticOpener) Open(context.Context, access.BackendConfig) (access.DocumentStore, error) {
	o.Opens++
	return o.Backend, nil
}

// FailingStore is a DocumentStore whose every operation fails with Err. Use
// to exercise query degradation paths.
type FailingStore struct {
	Err error
}

var _ access.DocumentStore = (*FailingStore)(nil)

func (s *FailingStore) Put(context.Context, access.Record) (access.Record, error) {
	return nil, s.Err
}

func (s *FailingStore) Get(context.Context, string) (access.Record, error) {
	return nil, s.Err
}

func (s *FailingStore) Find(context.Context, access.FindQuery) (*access.FindResult, error) {
	return nil, s.Err
}
