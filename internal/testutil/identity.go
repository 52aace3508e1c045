// Package testutil provides fakes and helpers shared by the test suites.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"didstore/internal/access"
)

// StaticAccount is a deterministic Account fake: the consent signature is a
// pure function of (did, message), so sessions derived from it are
// reproducible across runs.
type StaticAccount struct {
	did string
}

func NewStaticAccount(did string) *StaticAccount {
	return &StaticAccount{did: did}
}

func (a *StaticAccount) DID() string { return a.did }

func (a *StaticAccount) Sign(_ context.Context, message string) (string, error) {
	sum := sha256.Sum256([]byte(strings.ToLower(a.did) + "|" + message))
	return hex.EncodeToString(sum[:]), nil
}

// FakeIdentityClient is an in-memory identity server. Unknown DIDs report
// access.ErrIdentityNotFound until created; every call is counted so tests
// can assert that no network traffic happened.
type FakeIdentityClient struct {
	mu    sync.Mutex
	users map[string]*access.UserRecord

	// DSN assigned to users created through CreateUser.
	DefaultDSN string
	// RejectAuth makes every authenticated call fail unauthorized.
	RejectAuth bool
	// Public is returned by GetPublicUser.
	Public *access.UserRecord

	GetUserCalls    int
	CreateUserCalls int
	PublicCalls     int
}

var _ access.IdentityClient = (*FakeIdentityClient)(nil)

func NewFakeIdentityClient() *FakeIdentityClient {
	return &FakeIdentityClient{
		users:      make(map[string]*access.UserRecord),
		DefaultDSN: "mem://replica",
		Public:     &access.UserRecord{DID: "did:example:registry", VID: "vid-public", DSN: "mem://public"},
	}
}

// AddUser registers a pre-existing user record.
func (f *FakeIdentityClient) AddUser(user *access.UserRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[strings.ToLower(user.DID)] = user
}

// Calls returns the total number of calls made against the client.
func (f *FakeIdentityClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GetUserCalls + f.CreateUserCalls + f.PublicCalls
}

func (f *FakeIdentityClient) GetUser(_ context.Context, auth access.RequestAuth, did string) (*access.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetUserCalls++
	if f.RejectAuth || auth.Signature == "" {
		return nil, access.ErrUnauthorized
	}
	user, ok := f.users[strings.ToLower(did)]
	if !ok {
		return nil, access.ErrIdentityNotFound
	}
	return user, nil
}

func (f *FakeIdentityClient) CreateUser(_ context.Context, auth access.RequestAuth, did, password string) (*access.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateUserCalls++
	if f.RejectAuth {
		return nil, access.ErrUnauthorized
	}
	vid := "vid-" + password
	if len(password) > 8 {
		vid = "vid-" + password[:8]
	}
	user := &access.UserRecord{
		DID: strings.ToLower(did),
		VID: vid,
		DSN: f.DefaultDSN,
	}
	f.users[user.DID] = user
	return user, nil
}

func (f *FakeIdentityClient) GetPublicUser(_ context.Context) (*access.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PublicCalls++
	return f.Public, nil
}
