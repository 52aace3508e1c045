package backend

import (
	"context"
	"fmt"

	"didstore/internal/access"
)

// PublicBackend wraps an unencrypted store. Reads are open to anyone holding
// the connection string; writes are gated by the writable flag, which the
// routing core sets from the write permission and record ownership, so a
// public-read/owner-write database rejects foreign writes here.
type PublicBackend struct {
	store    access.DocumentStore
	name     string
	writable bool
}

var _ access.DocumentStore = (*PublicBackend)(nil)

// NewPublicBackend wraps store with the given write gate.
func NewPublicBackend(store access.DocumentStore, name string, writable bool) *PublicBackend {
	return &PublicBackend{store: store, name: name, writable: writable}
}

// Put stores the record, or fails with ErrReadOnly when the caller does not
// hold write access.
func (b *PublicBackend) Put(ctx context.Context, doc access.Record) (access.Record, error) {
	if !b.writable {
		return nil, fmt.Errorf("writing to public database %q: %w", b.name, access.ErrReadOnly)
	}
	return b.store.Put(ctx, doc)
}

// Get delegates to the underlying store.
func (b *PublicBackend) Get(ctx context.Context, id string) (access.Record, error) {
	return b.store.Get(ctx, id)
}

// Find delegates to the underlying store.
func (b *PublicBackend) Find(ctx context.Context, query access.FindQuery) (*access.FindResult, error) {
	return b.store.Find(ctx, query)
}
