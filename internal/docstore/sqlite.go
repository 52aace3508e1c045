package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"didstore/internal/access"
	"didstore/internal/docstore/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is a DocumentStore backed by a local SQLite file. One file
// holds any number of named databases, keyed by the stable database
// identity; records are stored as JSON documents.
type SQLiteStore struct {
	db   *sql.DB
	name string
}

var _ access.DocumentStore = (*SQLiteStore)(nil)

// sqliteConns shares one connection (and one migration run) per file across
// every store opened against the same path.
var sqliteConns = struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}{conns: make(map[string]*sql.DB)}

// NewSQLiteStore opens (or creates) the SQLite file at path and scopes the
// store to the given physical database name. path may be ":memory:" for
// tests.
func NewSQLiteStore(path, name string) (*SQLiteStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, name: name}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	sqliteConns.mu.Lock()
	defer sqliteConns.mu.Unlock()

	if db, ok := sqliteConns.conns[path]; ok {
		return db, nil
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite file %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite file %q: %w", path, err)
	}

	sqliteConns.conns[path] = db
	return db, nil
}

// Put creates or replaces the record under its _id.
func (s *SQLiteStore) Put(ctx context.Context, doc access.Record) (access.Record, error) {
	id := doc.ID()
	if id == "" {
		return nil, fmt.Errorf("putting document in %q: missing _id", s.name)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document %q: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (db_name, id, doc) VALUES (?, ?, ?)
		 ON CONFLICT (db_name, id) DO UPDATE SET doc = excluded.doc`,
		s.name, id, string(data))
	if err != nil {
		return nil, fmt.Errorf("storing document %q in %q: %w", id, s.name, err)
	}
	return doc, nil
}

// Get returns the record with the given identifier, soft-deleted or not.
func (s *SQLiteStore) Get(ctx context.Context, id string) (access.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE db_name = ? AND id = ?`, s.name, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q in %q: %w", id, s.name, access.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %q from %q: %w", id, s.name, err)
	}
	var doc access.Record
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding document %q: %w", id, err)
	}
	return doc, nil
}

// Find loads the named database and evaluates the query in memory. Selector
// pushdown into SQL is not attempted; record volumes at this layer are
// per-user, not per-service.
func (s *SQLiteStore) Find(ctx context.Context, query access.FindQuery) (*access.FindResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE db_name = ?`, s.name)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", s.name, err)
	}
	defer rows.Close()

	var docs []access.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning document from %q: %w", s.name, err)
		}
		var doc access.Record
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("decoding document from %q: %w", s.name, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %q: %w", s.name, err)
	}

	matched, err := Apply(docs, query)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", s.name, err)
	}
	return &access.FindResult{Docs: matched}, nil
}
