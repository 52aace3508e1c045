package access

import "context"

// Keyring holds the symmetric key and signing capability derived from an
// authentication signature. It is recreated whenever session credentials are
// established; only the originating signature is ever persisted.
type Keyring interface {
	// SymmetricKey returns the per-app database encryption key.
	SymmetricKey() []byte

	// Sign returns the signature over data, hex encoded.
	Sign(data []byte) (string, error)

	// Verify reports whether signature is valid for data.
	Verify(data []byte, signature string) bool
}

// KeyringFactory derives a Keyring from an authentication signature.
type KeyringFactory func(authSignature string) (Keyring, error)

// Account is the user's wallet capability: it knows the DID and can produce
// consent signatures. Everything else about the wallet is out of scope.
type Account interface {
	DID() string
	Sign(ctx context.Context, message string) (string, error)
}
