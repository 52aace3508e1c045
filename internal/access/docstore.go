package access

import "context"

// SortField names a field to order query results by.
type SortField struct {
	Field      string
	Descending bool
}

// FindQuery describes a selector-based query against a document store. The
// selector uses Mango-style operators ($and, $or, $gt, $in, ...); a nil
// selector matches every live record.
type FindQuery struct {
	Selector map[string]any
	Sort     []SortField
	Skip     int
	Limit    int
}

// FindResult is the raw result envelope returned by a document store.
type FindResult struct {
	Docs []Record
	// Warning carries a non-fatal diagnostic from the store, e.g. that a
	// sort could not use an index.
	Warning string
}

// DocumentStore is the narrow capability the access layer requires from a
// concrete document database. Soft-deleted records are returned by Get (the
// caller decides how to surface them) but are excluded from Find.
type DocumentStore interface {
	// Put creates or replaces the record under its _id and returns the
	// stored form.
	Put(ctx context.Context, doc Record) (Record, error)

	// Get returns the record with the given identifier, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Find returns all live records matching the query.
	Find(ctx context.Context, query FindQuery) (*FindResult, error)
}

// BackendConfig carries everything a backend variant needs to wrap a concrete
// document store instance.
type BackendConfig struct {
	Kind BackendKind
	// Name is the stable database identity, used as the physical store name.
	Name string
	// DSN is the remote connection string; empty means a local in-process
	// store scoped by Name.
	DSN string
	// EncryptionKey seals record payloads at rest. Required for encrypted
	// kinds, ignored for public.
	EncryptionKey []byte
	// OwnerDID is the identity that owns the store, for diagnostics.
	OwnerDID string
	// Writable gates mutations on public stores: a public-read/owner-write
	// database is only writable by its owner.
	Writable    bool
	Permissions PermissionDescriptor
}

// BackendOpener constructs the backend for a database on first use. The
// returned DocumentStore is the database's backend for its whole lifetime.
type BackendOpener interface {
	Open(ctx context.Context, cfg BackendConfig) (DocumentStore, error)
}
