package access

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// SessionCachePrefix namespaces serialized sessions in the local cache. The
// full key is prefix + appName + did.
const SessionCachePrefix = "VERIDA_SESSION_"

// Credentials is the minimal per-(app, user) state that survives a session.
// The keyring is always rebuilt from Signature, never persisted.
type Credentials struct {
	Signature         string      `json:"signature"`
	DSN               string      `json:"dsn"`
	VID               string      `json:"vid"`
	PublicCredentials *UserRecord `json:"publicCredentials,omitempty"`
}

// SessionConfig collects the collaborators a Session needs.
type SessionConfig struct {
	AppName    string
	Account    Account
	Client     IdentityClient
	Cache      LocalCache
	NewKeyring KeyringFactory
	Logger     Logger
}

// Session owns the credential lifecycle for one (application, user) pair:
// authentication against the identity server, local persistence of the
// resulting credentials, and lazy derivation of the symmetric key, signing
// keyring and DSN.
type Session struct {
	appName    string
	account    Account
	client     IdentityClient
	cache      LocalCache
	newKeyring KeyringFactory
	logger     Logger

	mu          sync.Mutex
	creds       *Credentials
	keyring     Keyring
	publicCreds *UserRecord
}

// NewSession creates a disconnected Session. Call Connect, or any of Key,
// DSN and Keyring (which force a connect), before using derived values.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Session{
		appName:    cfg.AppName,
		account:    cfg.Account,
		client:     cfg.Client,
		cache:      cfg.Cache,
		newKeyring: cfg.NewKeyring,
		logger:     logger,
	}
}

// DID returns the case-normalized identity this session belongs to.
func (s *Session) DID() string {
	return strings.ToLower(s.account.DID())
}

func (s *Session) cacheKey() string {
	return SessionCachePrefix + s.appName + s.DID()
}

// consentMessage is what the account signs to authorize this application.
// The signature doubles as the keyring seed, so the text must stay stable.
func (s *Session) consentMessage() string {
	return fmt.Sprintf("Do you approve access to view and update %q?\n\n%s", s.appName, s.DID())
}

// Connect establishes session credentials. Already-connected sessions
// succeed immediately. Otherwise the session is restored from the local
// cache when possible; on a cache miss Connect returns false unless force is
// set, in which case the user authorizes the app and the identity server is
// consulted (provisioning a server-side user record on first contact).
func (s *Session) Connect(ctx context.Context, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds != nil {
		return true, nil
	}

	cached, err := s.cache.Get(s.cacheKey())
	if err != nil {
		return false, fmt.Errorf("reading cached session: %w", err)
	}
	if cached != nil {
		if err := s.restoreLocked(cached); err != nil {
			return false, fmt.Errorf("restoring cached session: %w", err)
		}
		s.logger.Debug("session restored from cache", "did", s.DID(), "app", s.appName)
		return true, nil
	}

	if !force {
		return false, nil
	}

	signature, err := s.account.Sign(ctx, s.consentMessage())
	if err != nil {
		return false, fmt.Errorf("signing consent message: %w", err)
	}

	user, err := s.resolveUser(ctx, signature)
	if err != nil {
		return false, err
	}

	s.setCredentialsLocked(&Credentials{
		Signature: signature,
		DSN:       user.DSN,
		VID:       user.VID,
	})
	if err := s.buildKeyringLocked(); err != nil {
		s.creds = nil
		return false, err
	}

	if err := s.persistLocked(); err != nil {
		// The session is live; a cache write failure only costs the next
		// process a re-authentication.
		s.logger.Warn("persisting session failed", "did", s.DID(), "error", err)
	}

	s.logger.Info("session established", "did", s.DID(), "app", s.appName)
	return true, nil
}

// resolveUser fetches the per-app user record, provisioning one when the DID
// is unknown to the identity server. The server-side password is derived
// one-way from the consent signature, so the same wallet always reproduces
// it.
func (s *Session) resolveUser(ctx context.Context, signature string) (*UserRecord, error) {
	auth := RequestAuth{Username: s.DID(), Signature: signature}

	user, err := s.client.GetUser(ctx, auth, s.DID())
	switch {
	case err == nil:
		return user, nil
	case isNotFound(err):
		password := passwordFromSignature(signature)
		user, err = s.client.CreateUser(ctx, auth, s.DID(), password)
		if err != nil {
			return nil, fmt.Errorf("provisioning user for %s: %w", s.DID(), err)
		}
		return user, nil
	case isUnauthorized(err):
		return nil, fmt.Errorf("authenticating %s: %w", s.DID(), ErrUnauthorized)
	default:
		return nil, fmt.Errorf("fetching user for %s: %w", s.DID(), err)
	}
}

// Serialize returns the minimal persistent form of the session credentials.
func (s *Session) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil, fmt.Errorf("serializing session for %s: not connected", s.DID())
	}
	data, err := json.Marshal(s.creds)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return data, nil
}

// Restore reconstructs session state from a previous Serialize. The keyring
// is rebuilt from the stored signature alone.
func (s *Session) Restore(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(data)
}

func (s *Session) restoreLocked(data []byte) error {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("decoding session: %w", err)
	}
	s.setCredentialsLocked(&creds)
	return s.buildKeyringLocked()
}

func (s *Session) setCredentialsLocked(creds *Credentials) {
	s.creds = creds
	if creds.PublicCredentials != nil {
		s.publicCreds = creds.PublicCredentials
	}
}

func (s *Session) buildKeyringLocked() error {
	kr, err := s.newKeyring(s.creds.Signature)
	if err != nil {
		return fmt.Errorf("deriving keyring: %w", err)
	}
	s.keyring = kr
	return nil
}

func (s *Session) persistLocked() error {
	data, err := json.Marshal(s.creds)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return s.cache.Set(s.cacheKey(), data)
}

// Logout clears connected state and removes the cached session entry. It
// does not revoke server-side credentials.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	s.keyring = nil
	if err := s.cache.Remove(s.cacheKey()); err != nil {
		return fmt.Errorf("removing cached session: %w", err)
	}
	return nil
}

// CurrentDSN returns the connection string when connected, without forcing a
// connect. Empty when disconnected.
func (s *Session) CurrentDSN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.DSN
}

// Connected reports whether credentials are currently established.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds != nil
}

// ensureConnected forces a connect when no keyring exists yet. After it
// returns nil a keyring is guaranteed present.
func (s *Session) ensureConnected(ctx context.Context) error {
	s.mu.Lock()
	connected := s.keyring != nil
	s.mu.Unlock()
	if connected {
		return nil
	}
	ok, err := s.Connect(ctx, true)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("connecting session for %s: connect refused", s.DID())
	}
	return nil
}

// Key returns the per-app symmetric encryption key, connecting first if
// needed.
func (s *Session) Key(ctx context.Context) ([]byte, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyring.SymmetricKey(), nil
}

// DSN returns the remote connection string for the user's replica,
// connecting first if needed.
func (s *Session) DSN(ctx context.Context) (string, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.DSN, nil
}

// Keyring returns the session's signing keyring, connecting first if needed.
func (s *Session) Keyring(ctx context.Context) (Keyring, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyring, nil
}

// PublicCredentials returns the identity server's public-facing credential
// record. The result is memoized and independent of owner session state.
func (s *Session) PublicCredentials(ctx context.Context) (*UserRecord, error) {
	s.mu.Lock()
	if s.publicCreds != nil {
		defer s.mu.Unlock()
		return s.publicCreds, nil
	}
	s.mu.Unlock()

	user, err := s.client.GetPublicUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching public credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicCreds = user
	if s.creds != nil {
		s.creds.PublicCredentials = user
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("persisting session failed", "did", s.DID(), "error", err)
		}
	}
	return s.publicCreds, nil
}

// passwordFromSignature derives the server-side password deterministically
// from the consent signature via a one-way hash.
func passwordFromSignature(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
}
