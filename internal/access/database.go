package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// EventKind identifies a record lifecycle notification.
type EventKind int

const (
	EventBeforeInsert EventKind = iota
	EventAfterInsert
	EventBeforeUpdate
	EventAfterUpdate
)

// Event is delivered to subscribers around every committed write.
type Event struct {
	Kind   EventKind
	Record Record
}

// DatabaseOptions tunes a single Database instance.
type DatabaseOptions struct {
	// ReadOnly rejects Save and Delete with ErrReadOnly.
	ReadOnly bool
	// EncryptionKey is the caller-supplied key for users-scoped databases.
	EncryptionKey []byte
	// DSN overrides the connection string resolved from the session.
	DSN string
	// StrictQueries propagates store failures from GetMany instead of
	// degrading to an empty result.
	StrictQueries bool
	// Clock and IDGenerator default to the real implementations.
	Clock       Clock
	IDGenerator IDGenerator
}

// FindOptions tunes a GetMany call.
type FindOptions struct {
	Sort  []SortField
	Skip  int
	Limit int
}

// DefaultFindLimit is the page size applied when a GetMany call does not set
// one.
const DefaultFindLimit = 20

// Database owns permission enforcement, backend selection, lazy
// initialization and record signing for one named database belonging to one
// identity. The backend is constructed exactly once, on the first operation;
// a failed construction is not retried, the same error is returned on every
// subsequent call.
type Database struct {
	name     string
	ownerDID string
	appName  string
	perms    PermissionDescriptor

	// session supplies the owner's key and DSN; signer signs records and
	// may belong to a different identity than the owner.
	session *Session
	signer  *Session
	opener  BackendOpener
	logger  Logger

	readOnly      bool
	encryptionKey []byte
	dsn           string
	strictQueries bool
	clock         Clock
	idgen         IDGenerator

	identityOnce sync.Once
	identity     string

	// Backend lifecycle: uninitialized until the first operation, then the
	// sync.Once single-flights construction; concurrent first calls block
	// until exactly one backend (or one terminal error) exists.
	initOnce sync.Once
	backend  DocumentStore
	initErr  error

	subMu       sync.Mutex
	subscribers []func(Event)
}

// NewDatabase constructs a Database. No I/O happens until the first
// operation. session may be nil for anonymous public reads; signer may be
// nil, in which case Save fails with ErrNoSigner.
func NewDatabase(name, ownerDID, appName string, perms PermissionDescriptor,
	session, signer *Session, opener BackendOpener, logger Logger, opts DatabaseOptions) *Database {

	if logger == nil {
		logger = NewNopLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	idgen := opts.IDGenerator
	if idgen == nil {
		idgen = UUIDv7Generator{}
	}
	return &Database{
		name:          name,
		ownerDID:      strings.ToLower(ownerDID),
		appName:       appName,
		perms:         perms,
		session:       session,
		signer:        signer,
		opener:        opener,
		logger:        logger,
		readOnly:      opts.ReadOnly,
		encryptionKey: opts.EncryptionKey,
		dsn:           opts.DSN,
		strictQueries: opts.StrictQueries,
		clock:         clock,
		idgen:         idgen,
	}
}

// Name returns the logical database name.
func (d *Database) Name() string { return d.name }

// Identity returns the stable physical name, computed once per instance.
func (d *Database) Identity() string {
	d.identityOnce.Do(func() {
		d.identity = DatabaseIdentity(d.ownerDID, d.appName, d.name, d.perms)
	})
	return d.identity
}

// Subscribe registers fn for record lifecycle events. Subscribers run
// synchronously on the writing goroutine, before and after each commit.
func (d *Database) Subscribe(fn func(Event)) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

func (d *Database) notify(ev Event) {
	d.subMu.Lock()
	subs := d.subscribers
	d.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Save commits a record. A record without an _id is an insert: it is
// assigned a fresh time-ordered identifier and matching insertedAt and
// modifiedAt timestamps. A record with an _id is an update: insertedAt is
// left alone and modifiedAt advances. Both paths sign the record before the
// commit and notify subscribers around it.
func (d *Database) Save(ctx context.Context, doc Record) (Record, error) {
	if d.readOnly {
		return nil, fmt.Errorf("saving to %q: %w", d.name, ErrReadOnly)
	}
	backend, err := d.ensureBackend(ctx)
	if err != nil {
		return nil, err
	}

	doc = doc.Clone()
	now := Timestamp(d.clock.Now())

	insert := doc.ID() == ""
	if insert {
		doc[FieldID] = d.idgen.New()
		doc[FieldInsertedAt] = now
	}
	doc[FieldModifiedAt] = now

	if err := d.SignData(ctx, doc); err != nil {
		return nil, err
	}

	before, after := EventBeforeUpdate, EventAfterUpdate
	if insert {
		before, after = EventBeforeInsert, EventAfterInsert
	}

	d.notify(Event{Kind: before, Record: doc})
	stored, err := backend.Put(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("saving record %q to %q: %w", doc.ID(), d.name, err)
	}
	d.notify(Event{Kind: after, Record: stored})

	return stored, nil
}

// Get fetches a single record by identifier. Soft-deleted records are
// reported as missing.
func (d *Database) Get(ctx context.Context, id string) (Record, error) {
	backend, err := d.ensureBackend(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := backend.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("record %q in %q: %w", id, d.name, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching record %q from %q: %w", id, d.name, err)
	}
	if doc.Deleted() {
		return nil, fmt.Errorf("record %q in %q: %w", id, d.name, ErrNotFound)
	}
	return doc, nil
}

// GetMany returns all records matching filter. Store failures are logged and
// degraded to an empty result unless the database was opened with
// StrictQueries; callers treating failures as "no matching records" is the
// documented contract.
func (d *Database) GetMany(ctx context.Context, filter map[string]any, opts FindOptions) ([]Record, error) {
	res, err := d.GetManyRaw(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return res.Docs, nil
}

// GetManyRaw is GetMany returning the backend's raw result envelope.
func (d *Database) GetManyRaw(ctx context.Context, filter map[string]any, opts FindOptions) (*FindResult, error) {
	backend, err := d.ensureBackend(ctx)
	if err != nil {
		return nil, err
	}

	query := buildFindQuery(filter, opts)
	res, err := backend.Find(ctx, query)
	if err != nil {
		if d.strictQueries {
			return nil, fmt.Errorf("querying %q: %w", d.name, err)
		}
		d.logger.Warn("query failed, returning empty result", "database", d.name, "error", err)
		return &FindResult{Docs: []Record{}}, nil
	}
	return res, nil
}

// buildFindQuery merges the caller filter into a selector and applies the
// default page size. Every field named in the sort order is additionally
// constrained with an exists-and-greater-than-true conjunct: the underlying
// store silently drops the sort otherwise, so the rewrite is a correctness
// requirement, not an optimization.
func buildFindQuery(filter map[string]any, opts FindOptions) FindQuery {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	selector := filter
	if len(opts.Sort) > 0 {
		if selector == nil {
			selector = map[string]any{}
		}
		and := []any{selector}
		for _, s := range opts.Sort {
			and = append(and, map[string]any{s.Field: map[string]any{"$gt": true}})
		}
		selector = map[string]any{"$and": and}
	}

	return FindQuery{
		Selector: selector,
		Sort:     opts.Sort,
		Skip:     opts.Skip,
		Limit:    limit,
	}
}

// Delete soft-deletes a record: the deletion flag is set and the record goes
// through the normal Save path, so the tombstone is signed and timestamped
// and the store retains it. ref is either a Record or an identifier string
// (fetched first).
func (d *Database) Delete(ctx context.Context, ref any) error {
	if d.readOnly {
		return fmt.Errorf("deleting from %q: %w", d.name, ErrReadOnly)
	}

	var doc Record
	switch v := ref.(type) {
	case Record:
		doc = v
	case map[string]any:
		doc = Record(v)
	case string:
		fetched, err := d.Get(ctx, v)
		if err != nil {
			return err
		}
		doc = fetched
	default:
		return fmt.Errorf("deleting from %q: unsupported reference type %T", d.name, ref)
	}

	doc = doc.Clone()
	doc[FieldDeleted] = true
	if _, err := d.Save(ctx, doc); err != nil {
		return err
	}
	return nil
}

// SignData populates the record's signature field using the signing
// session's keyring. The signer may differ from the record owner: a user can
// write records signed by themselves into a database owned by another DID.
func (d *Database) SignData(ctx context.Context, doc Record) error {
	if d.signer == nil {
		return fmt.Errorf("signing record for %q: %w", d.name, ErrNoSigner)
	}
	keyring, err := d.signer.Keyring(ctx)
	if err != nil {
		return fmt.Errorf("signing record for %q: %w", d.name, err)
	}
	payload, err := doc.SigningPayload()
	if err != nil {
		return err
	}
	signature, err := keyring.Sign(payload)
	if err != nil {
		return fmt.Errorf("signing record for %q: %w", d.name, err)
	}
	doc[FieldSignature] = signature
	return nil
}

// VerifyRecord checks a record's signature against the given keyring.
func VerifyRecord(doc Record, keyring Keyring) (bool, error) {
	signature, _ := doc[FieldSignature].(string)
	if signature == "" {
		return false, nil
	}
	payload, err := doc.SigningPayload()
	if err != nil {
		return false, err
	}
	return keyring.Verify(payload, signature), nil
}

// ensureBackend runs the backend selection state machine. Initialization is
// attempted at most once; a failure is memoized and re-returned
// deterministically. Retrying is the surrounding application's decision.
func (d *Database) ensureBackend(ctx context.Context) (DocumentStore, error) {
	d.initOnce.Do(func() {
		backend, err := d.openBackend(ctx)
		if err != nil {
			d.initErr = fmt.Errorf("initializing database %q owned by %s: %w", d.name, d.ownerDID, err)
			return
		}
		d.backend = backend
	})
	if d.initErr != nil {
		return nil, d.initErr
	}
	return d.backend, nil
}

func (d *Database) openBackend(ctx context.Context) (DocumentStore, error) {
	kind, err := SelectBackend(d.perms)
	if err != nil {
		return nil, fmt.Errorf("routing permissions read=%s write=%s: %w", d.perms.Read, d.perms.Write, err)
	}

	cfg := BackendConfig{
		Kind:        kind,
		Name:        d.Identity(),
		OwnerDID:    d.ownerDID,
		Permissions: d.perms,
	}

	switch kind {
	case KindOwnerEncrypted:
		if d.session == nil {
			return nil, fmt.Errorf("owner-scoped database requires a session")
		}
		// Key and DSN come from the owner session; this may trigger a
		// live authentication.
		key, err := d.session.Key(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving owner key: %w", err)
		}
		dsn, err := d.session.DSN(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving owner DSN: %w", err)
		}
		cfg.EncryptionKey = key
		cfg.DSN = dsn
		cfg.Writable = true

	case KindPublic:
		cfg.DSN = d.dsn
		cfg.Writable = d.perms.Write == AccessPublic || d.isOwner()

	case KindSharedEncrypted:
		dsn, err := d.resolveSharedDSN()
		if err != nil {
			return nil, err
		}
		cfg.EncryptionKey = d.encryptionKey
		cfg.DSN = dsn
		cfg.Writable = true
	}

	d.logger.Debug("opening backend", "database", d.name, "identity", cfg.Name, "kind", int(kind))
	return d.opener.Open(ctx, cfg)
}

// resolveSharedDSN resolves the connection string for a users-scoped
// database: the caller-supplied DSN wins, then an already-connected session's
// DSN. A forced connect is deliberately not triggered here, the database may
// be owned by a different DID than the session user.
func (d *Database) resolveSharedDSN() (string, error) {
	if d.dsn != "" {
		return d.dsn, nil
	}
	if d.session != nil {
		if dsn := d.session.CurrentDSN(); dsn != "" {
			return dsn, nil
		}
	}
	return "", fmt.Errorf("database %q: %w", d.name, ErrMissingDSN)
}

func (d *Database) isOwner() bool {
	return d.session != nil && d.session.DID() == d.ownerDID
}
