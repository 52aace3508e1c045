package backend

import (
	"context"
	"strings"
	"testing"

	"didstore/internal/access"
	"didstore/internal/docstore"
)

func TestEncryptedBackend_RoundTrip(t *testing.T) {
	raw := docstore.NewMemoryStore("vabc")
	enc, err := NewEncryptedBackend(raw, "vabc", []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewEncryptedBackend() error = %v", err)
	}
	ctx := context.Background()

	doc := access.Record{
		"_id":        "doc1",
		"insertedAt": "2024-01-15T10:30:00.000Z",
		"title":      "secret note",
		"body":       "the payload",
	}
	if _, err := enc.Put(ctx, doc); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// The stored envelope carries only system fields plus the sealed payload.
	envelope, err := raw.Get(ctx, "doc1")
	if err != nil {
		t.Fatalf("raw Get() error = %v", err)
	}
	if _, ok := envelope["title"]; ok {
		t.Error("application field stored in clear")
	}
	if _, ok := envelope["_payload"]; !ok {
		t.Error("envelope missing sealed payload")
	}
	if envelope["insertedAt"] != "2024-01-15T10:30:00.000Z" {
		t.Error("system field not kept in clear on the envelope")
	}
	if payload, _ := envelope["_payload"].(string); strings.Contains(payload, "secret note") {
		t.Error("payload readable in the envelope")
	}

	got, err := enc.Get(ctx, "doc1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["title"] != "secret note" || got["body"] != "the payload" {
		t.Errorf("unsealed doc = %v, want original fields back", got)
	}
}

func TestEncryptedBackend_FindOnPlaintextFields(t *testing.T) {
	raw := docstore.NewMemoryStore("vabc")
	enc, err := NewEncryptedBackend(raw, "vabc", []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewEncryptedBackend() error = %v", err)
	}
	ctx := context.Background()

	enc.Put(ctx, access.Record{"_id": "a", "kind": "note", "rank": 2.0})
	enc.Put(ctx, access.Record{"_id": "b", "kind": "note", "rank": 1.0})
	enc.Put(ctx, access.Record{"_id": "c", "kind": "task", "rank": 3.0})

	res, err := enc.Find(ctx, access.FindQuery{
		Selector: map[string]any{"kind": "note"},
		Sort:     []access.SortField{{Field: "rank"}},
	})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(res.Docs) != 2 {
		t.Fatalf("Find() = %d docs, want 2", len(res.Docs))
	}
	if res.Docs[0].ID() != "b" || res.Docs[1].ID() != "a" {
		t.Errorf("sort over sealed fields wrong: %s %s", res.Docs[0].ID(), res.Docs[1].ID())
	}
}

func TestEncryptedBackend_WrongKey(t *testing.T) {
	raw := docstore.NewMemoryStore("vabc")
	ctx := context.Background()

	enc, err := NewEncryptedBackend(raw, "vabc", []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewEncryptedBackend() error = %v", err)
	}
	if _, err := enc.Put(ctx, access.Record{"_id": "doc1", "title": "secret"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	wrong, err := NewEncryptedBackend(raw, "vabc", []byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("NewEncryptedBackend() error = %v", err)
	}
	if _, err := wrong.Get(ctx, "doc1"); err == nil {
		t.Error("Get() with the wrong key succeeded")
	}
}

func TestNewEncryptedBackend_MissingKey(t *testing.T) {
	if _, err := NewEncryptedBackend(docstore.NewMemoryStore("v"), "v", nil); err == nil {
		t.Error("missing key did not fail")
	}
}
