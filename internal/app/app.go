// Package app is the wiring layer between an embedding application and the
// access core: it constructs the cache, identity client and backend opener
// from config, owns one Session per (app, user), and hands out Database
// instances.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"didstore/internal/access"
	"didstore/internal/backend"
	"didstore/internal/cache"
	"didstore/internal/config"
	"didstore/internal/identity"
	"didstore/internal/keyring"
)

// App holds the shared collaborators for one application.
type App struct {
	cfg     *config.Config
	cache   access.LocalCache
	client  access.IdentityClient
	opener  access.BackendOpener
	logger  access.Logger
	logFile *os.File

	mu       sync.Mutex
	sessions map[string]*access.Session
}

// New creates a fully wired App from the given config.
// The caller must call Close when done.
func New(cfg *config.Config) (*App, error) {
	localCache, err := newCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	client, err := newIdentityClient(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("creating identity client: %w", err)
	}

	slogger, logFile, err := newLogger(cfg.LogDir, cfg.AppName)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	return &App{
		cfg:      cfg,
		cache:    localCache,
		client:   client,
		opener:   backend.NewOpener(logger),
		logger:   logger,
		logFile:  logFile,
		sessions: make(map[string]*access.Session),
	}, nil
}

func newCache(cfg config.CacheConfig) (access.LocalCache, error) {
	switch cfg.Type {
	case "memory":
		return cache.NewMemory(), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem cache requires dir to be set")
		}
		return cache.NewFilesystem(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

func newIdentityClient(cfg config.IdentityConfig) (access.IdentityClient, error) {
	switch cfg.Type {
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http identity client requires endpoint to be set")
		}
		return identity.NewClient(cfg.Endpoint, nil), nil
	default:
		return nil, fmt.Errorf("unknown identity client type: %s", cfg.Type)
	}
}

// Session returns the session for the given account, creating it on first
// use. One session exists per (app, DID) pair.
func (a *App) Session(account access.Account) *access.Session {
	key := strings.ToLower(account.DID())
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[key]; ok {
		return s
	}
	s := access.NewSession(access.SessionConfig{
		AppName:    a.cfg.AppName,
		Account:    account,
		Client:     a.client,
		Cache:      a.cache,
		NewKeyring: keyring.Factory,
		Logger:     a.logger,
	})
	a.sessions[key] = s
	return s
}

// OpenDatabase constructs a Database owned by ownerDID with the given
// permissions, signed by account. Owner-level access connects the account's
// session up front so permission failures surface here rather than on the
// first record operation.
func (a *App) OpenDatabase(ctx context.Context, account access.Account, ownerDID, dbName string,
	perms access.PermissionDescriptor, opts access.DatabaseOptions) (*access.Database, error) {

	session := a.Session(account)

	kind, err := access.SelectBackend(perms)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", dbName, err)
	}
	if kind == access.KindOwnerEncrypted {
		if _, err := session.Connect(ctx, true); err != nil {
			return nil, fmt.Errorf("opening database %q: %w", dbName, err)
		}
	}

	db := access.NewDatabase(dbName, ownerDID, a.cfg.AppName, perms,
		session, session, a.opener, a.logger, opts)
	return db, nil
}

// Close releases the resources the App owns. Open databases keep working;
// their backends are released by process shutdown.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}
