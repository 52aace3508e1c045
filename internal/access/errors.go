package access

import "errors"

var (
	// ErrReadOnly is returned by mutating operations on a database that was
	// opened read-only, or whose permissions deny the caller write access.
	ErrReadOnly = errors.New("database is read only")

	// ErrNotFound is returned when a record does not exist, or has been
	// soft-deleted.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownPermission is returned when no backend route matches the
	// declared read/write permission pair.
	ErrUnknownPermission = errors.New("unknown permission configuration")

	// ErrMissingDSN is returned when a backend needs a remote connection
	// string that could not be resolved.
	ErrMissingDSN = errors.New("no DSN resolvable for database")

	// ErrUnauthorized is returned when the identity server rejects the
	// presented credentials.
	ErrUnauthorized = errors.New("identity server rejected credentials")

	// ErrNoSigner is returned when record signing is attempted with no
	// configured signing session.
	ErrNoSigner = errors.New("no signing session configured")

	// ErrIdentityNotFound is returned by an IdentityClient when the DID has
	// no user record on the identity server.
	ErrIdentityNotFound = errors.New("identity not registered")
)

func isNotFound(err error) bool { return errors.Is(err, ErrIdentityNotFound) }

func isUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
