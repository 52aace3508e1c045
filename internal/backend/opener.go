package backend

import (
	"context"
	"fmt"

	"didstore/internal/access"
	"didstore/internal/docstore"
)

// Opener constructs backends from routing decisions. It resolves the
// config's DSN to a concrete document store and wraps it in the variant the
// kind demands.
type Opener struct {
	logger access.Logger

	// openStore is swappable in tests.
	openStore func(ctx context.Context, dsn, name string) (access.DocumentStore, error)
}

var _ access.BackendOpener = (*Opener)(nil)

// NewOpener creates an Opener resolving DSNs through the docstore factory.
func NewOpener(logger access.Logger) *Opener {
	if logger == nil {
		logger = access.NewNopLogger()
	}
	return &Opener{logger: logger, openStore: docstore.Open}
}

// Open constructs the backend described by cfg.
func (o *Opener) Open(ctx context.Context, cfg access.BackendConfig) (access.DocumentStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		// No replica: a local in-process store scoped by the database
		// identity.
		dsn = "mem://local"
	}

	store, err := o.openStore(ctx, dsn, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", docstore.Redact(dsn), err)
	}

	switch cfg.Kind {
	case access.KindOwnerEncrypted, access.KindSharedEncrypted:
		o.logger.Debug("opening encrypted backend", "name", cfg.Name, "dsn", docstore.Redact(dsn))
		return NewEncryptedBackend(store, cfg.Name, cfg.EncryptionKey)
	case access.KindPublic:
		o.logger.Debug("opening public backend", "name", cfg.Name, "writable", cfg.Writable)
		return NewPublicBackend(store, cfg.Name, cfg.Writable), nil
	default:
		return nil, fmt.Errorf("backend kind %d: %w", cfg.Kind, access.ErrUnknownPermission)
	}
}
