package access_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"didstore/internal/access"
	"didstore/internal/cache"
	"didstore/internal/keyring"
	"didstore/internal/testutil"
)

func newSession(t *testing.T, appName, did string) (*access.Session, *testutil.FakeIdentityClient, *cache.Memory) {
	t.Helper()
	client := testutil.NewFakeIdentityClient()
	localCache := cache.NewMemory()
	session := access.NewSession(access.SessionConfig{
		AppName:    appName,
		Account:    testutil.NewStaticAccount(did),
		Client:     client,
		Cache:      localCache,
		NewKeyring: keyring.Factory,
	})
	return session, client, localCache
}

func TestSession_ConnectWithoutForce(t *testing.T) {
	session, client, _ := newSession(t, "notes", "did:example:abc")

	ok, err := session.Connect(context.Background(), false)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if ok {
		t.Error("Connect() = true with empty cache and force=false")
	}
	if client.Calls() != 0 {
		t.Errorf("identity server contacted %d times, want 0", client.Calls())
	}
}

func TestSession_ConnectForceProvisionsUnknownDID(t *testing.T) {
	session, client, localCache := newSession(t, "notes", "did:example:abc")

	ok, err := session.Connect(context.Background(), true)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !ok {
		t.Fatal("Connect() = false, want true")
	}
	if client.GetUserCalls != 1 || client.CreateUserCalls != 1 {
		t.Errorf("calls get=%d create=%d, want 1 and 1", client.GetUserCalls, client.CreateUserCalls)
	}

	entry, err := localCache.Get("VERIDA_SESSION_notesdid:example:abc")
	if err != nil {
		t.Fatalf("cache Get() error = %v", err)
	}
	if entry == nil {
		t.Error("no cache entry persisted at VERIDA_SESSION_notesdid:example:abc")
	}
}

func TestSession_ConnectIsIdempotent(t *testing.T) {
	session, client, _ := newSession(t, "notes", "did:example:abc")

	if _, err := session.Connect(context.Background(), true); err != nil {
		t.Fatalf("first Connect() error = %v", err)
	}
	calls := client.Calls()

	ok, err := session.Connect(context.Background(), true)
	if err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if !ok {
		t.Error("second Connect() = false")
	}
	if client.Calls() != calls {
		t.Errorf("second Connect() made %d extra calls", client.Calls()-calls)
	}
}

func TestSession_ConnectRestoresFromCacheWithoutNetwork(t *testing.T) {
	first, client, localCache := newSession(t, "notes", "did:example:abc")
	if _, err := first.Connect(context.Background(), true); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	calls := client.Calls()

	// A new session over the same cache restores without contacting the
	// identity server, even without force.
	second := access.NewSession(access.SessionConfig{
		AppName:    "notes",
		Account:    testutil.NewStaticAccount("did:example:abc"),
		Client:     client,
		Cache:      localCache,
		NewKeyring: keyring.Factory,
	})
	ok, err := second.Connect(context.Background(), false)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !ok {
		t.Fatal("Connect() = false, want restore from cache")
	}
	if client.Calls() != calls {
		t.Errorf("restore contacted identity server %d times", client.Calls()-calls)
	}
}

func TestSession_SerializeRestoreRoundTrip(t *testing.T) {
	session, _, _ := newSession(t, "notes", "did:example:abc")
	ctx := context.Background()
	if _, err := session.Connect(ctx, true); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	keyBefore, err := session.Key(ctx)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	dsnBefore, err := session.DSN(ctx)
	if err != nil {
		t.Fatalf("DSN() error = %v", err)
	}

	data, err := session.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	restored, _, _ := newSession(t, "notes", "did:example:abc")
	if err := restored.Restore(data); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	keyAfter, err := restored.Key(ctx)
	if err != nil {
		t.Fatalf("Key() after restore error = %v", err)
	}
	dsnAfter, err := restored.DSN(ctx)
	if err != nil {
		t.Fatalf("DSN() after restore error = %v", err)
	}

	if !bytes.Equal(keyBefore, keyAfter) {
		t.Error("symmetric key changed across serialize/restore")
	}
	if dsnBefore != dsnAfter {
		t.Errorf("DSN changed across serialize/restore: %q != %q", dsnBefore, dsnAfter)
	}
}

func TestSession_LogoutRemovesCacheEntry(t *testing.T) {
	session, _, localCache := newSession(t, "notes", "did:example:abc")
	ctx := context.Background()
	if _, err := session.Connect(ctx, true); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := session.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if session.Connected() {
		t.Error("session still connected after Logout")
	}

	entry, err := localCache.Get("VERIDA_SESSION_notesdid:example:abc")
	if err != nil {
		t.Fatalf("cache Get() error = %v", err)
	}
	if entry != nil {
		t.Error("cache entry survived Logout")
	}

	ok, err := session.Connect(ctx, false)
	if err != nil {
		t.Fatalf("Connect() after Logout error = %v", err)
	}
	if ok {
		t.Error("Connect(force=false) succeeded after Logout")
	}
}

func TestSession_ConnectUnauthorized(t *testing.T) {
	session, client, _ := newSession(t, "notes", "did:example:abc")
	client.RejectAuth = true

	_, err := session.Connect(context.Background(), true)
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("Connect() error = %v, want ErrUnauthorized", err)
	}
}

func TestSession_KeyForcesConnect(t *testing.T) {
	session, client, _ := newSession(t, "notes", "did:example:abc")

	key, err := session.Key(context.Background())
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if len(key) != 32 {
		t.Errorf("key length = %d, want 32", len(key))
	}
	if !session.Connected() {
		t.Error("Key() did not establish a session")
	}
	if client.CreateUserCalls != 1 {
		t.Errorf("CreateUser calls = %d, want 1", client.CreateUserCalls)
	}
}

func TestSession_PublicCredentialsMemoized(t *testing.T) {
	session, client, _ := newSession(t, "notes", "did:example:abc")
	ctx := context.Background()

	first, err := session.PublicCredentials(ctx)
	if err != nil {
		t.Fatalf("PublicCredentials() error = %v", err)
	}
	second, err := session.PublicCredentials(ctx)
	if err != nil {
		t.Fatalf("PublicCredentials() error = %v", err)
	}
	if first != second {
		t.Error("PublicCredentials() not memoized")
	}
	if client.PublicCalls != 1 {
		t.Errorf("GetPublicUser calls = %d, want 1", client.PublicCalls)
	}
	if session.Connected() {
		t.Error("PublicCredentials() should not establish a session")
	}
}
