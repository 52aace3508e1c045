package access

import "context"

// RequestAuth carries the per-call credentials presented to the identity
// server. Passing them explicitly on every call avoids hidden shared mutable
// state between concurrent requests on the same client.
type RequestAuth struct {
	Username  string
	Signature string
}

// UserRecord is the per-app connection descriptor held by the identity
// server for a DID.
type UserRecord struct {
	DID string `json:"did"`
	// VID is the verifiable identity document reference.
	VID string `json:"vid"`
	// DSN points at the physical replica the user's databases sync with.
	DSN string `json:"dsn"`
}

// IdentityClient authenticates DIDs against a remote identity registry.
// Implementations translate wire-level error shapes into the typed errors
// ErrIdentityNotFound and ErrUnauthorized at the boundary; consumers never
// inspect response bodies.
type IdentityClient interface {
	// GetUser fetches the per-app user record for a DID. Returns
	// ErrIdentityNotFound if the DID is not registered, ErrUnauthorized if
	// the presented credentials are rejected.
	GetUser(ctx context.Context, auth RequestAuth, did string) (*UserRecord, error)

	// CreateUser provisions a user record for a DID with the given
	// server-side password.
	CreateUser(ctx context.Context, auth RequestAuth, did, password string) (*UserRecord, error)

	// GetPublicUser returns the registry's public-facing credential record.
	// It requires no authentication.
	GetPublicUser(ctx context.Context) (*UserRecord, error)
}
