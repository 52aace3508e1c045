// Package keyring derives the per-app symmetric key and signing capability
// from an authentication signature. The signature is the only secret ever
// persisted; everything here is recomputed from it on demand.
package keyring

import (
	"crypto/ed25519"
	"crypto/hkdf"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"didstore/internal/access"
)

// Domain-separation labels for the two derived secrets. Changing either
// invalidates every existing database and signature.
const (
	symmetricInfo = "didstore/v1/symmetric"
	signingInfo   = "didstore/v1/signing"
)

// Keyring holds the secrets derived from one authentication signature.
type Keyring struct {
	symmetricKey []byte
	privateKey   ed25519.PrivateKey
}

var _ access.Keyring = (*Keyring)(nil)

// New derives a Keyring from an authentication signature. The derivation is
// deterministic: the same signature always yields the same keys.
func New(authSignature string) (*Keyring, error) {
	if authSignature == "" {
		return nil, fmt.Errorf("deriving keyring: empty signature")
	}
	secret := []byte(authSignature)

	symmetricKey, err := hkdf.Key(sha256.New, secret, nil, symmetricInfo, 32)
	if err != nil {
		return nil, fmt.Errorf("deriving symmetric key: %w", err)
	}
	seed, err := hkdf.Key(sha256.New, secret, nil, signingInfo, ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("deriving signing seed: %w", err)
	}

	return &Keyring{
		symmetricKey: symmetricKey,
		privateKey:   ed25519.NewKeyFromSeed(seed),
	}, nil
}

// Factory adapts New to the access.KeyringFactory signature.
func Factory(authSignature string) (access.Keyring, error) {
	return New(authSignature)
}

// SymmetricKey returns the 32-byte database encryption key.
func (k *Keyring) SymmetricKey() []byte {
	return k.symmetricKey
}

// Sign returns the hex-encoded ed25519 signature over data.
func (k *Keyring) Sign(data []byte) (string, error) {
	return hex.EncodeToString(ed25519.Sign(k.privateKey, data)), nil
}

// Verify reports whether signature is a valid hex-encoded signature over
// data from this keyring's key pair.
func (k *Keyring) Verify(data []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(k.PublicKey(), data, sig)
}

// PublicKey returns the verification key, for publishing alongside records.
func (k *Keyring) PublicKey() ed25519.PublicKey {
	return k.privateKey.Public().(ed25519.PublicKey)
}
