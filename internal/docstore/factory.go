package docstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"didstore/internal/access"
)

// Open resolves a DSN to a DocumentStore scoped to the given physical
// database name. Supported schemes:
//
//	mem://<namespace>          in-process, shared per (DSN, name)
//	sqlite://<path>            local SQLite file
//	s3://<bucket>[/prefix]     S3 bucket, see S3Store for options
func Open(ctx context.Context, dsn, name string) (access.DocumentStore, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN %q: %w", dsn, err)
	}

	switch u.Scheme {
	case "mem":
		return memoryStoreFor(dsn, name), nil
	case "sqlite":
		path := u.Host + u.Path
		if u.Opaque != "" {
			// sqlite::memory: style DSNs parse into Opaque.
			path = u.Opaque
		}
		if path == "" {
			return nil, fmt.Errorf("sqlite DSN %q missing file path", dsn)
		}
		return NewSQLiteStore(path, name)
	case "s3":
		return NewS3Store(ctx, u, name)
	default:
		return nil, fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
}

// Redact strips embedded credentials from a DSN for logging.
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	u.User = nil
	return strings.Replace(u.String(), "://", "://***@", 1)
}
