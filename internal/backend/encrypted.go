// Package backend provides the document store backend variants the routing
// core selects between, and the opener that constructs them from a
// BackendConfig.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"filippo.io/age"

	"didstore/internal/access"
	"didstore/internal/docstore"
)

// payloadField holds the sealed application fields of an encrypted record.
const payloadField = "_payload"

// scryptWorkFactor for sealing. The passphrase is a 256-bit derived key, not
// a human secret, so key stretching adds nothing; keep unsealing cheap.
const scryptWorkFactor = 10

// EncryptedBackend seals record payloads at rest. System fields (_id,
// timestamps, deletion flag, signature) stay in clear so tombstones and
// provenance remain visible to the replica; every application field is
// encrypted. Queries are evaluated after decryption, the underlying store
// never sees plaintext.
type EncryptedBackend struct {
	store access.DocumentStore
	name  string

	recipient age.Recipient
	identity  age.Identity
}

var _ access.DocumentStore = (*EncryptedBackend)(nil)

// NewEncryptedBackend wraps store, sealing payloads with the given symmetric
// key.
func NewEncryptedBackend(store access.DocumentStore, name string, key []byte) (*EncryptedBackend, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("encrypted backend %q: missing encryption key", name)
	}
	passphrase := hex.EncodeToString(key)

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypted backend %q: %w", name, err)
	}
	recipient.SetWorkFactor(scryptWorkFactor)

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypted backend %q: %w", name, err)
	}

	return &EncryptedBackend{
		store:     store,
		name:      name,
		recipient: recipient,
		identity:  identity,
	}, nil
}

// Put seals the record's application fields and stores the envelope.
func (b *EncryptedBackend) Put(ctx context.Context, doc access.Record) (access.Record, error) {
	envelope, err := b.seal(doc)
	if err != nil {
		return nil, err
	}
	if _, err := b.store.Put(ctx, envelope); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get fetches and unseals a single record.
func (b *EncryptedBackend) Get(ctx context.Context, id string) (access.Record, error) {
	envelope, err := b.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.unseal(envelope)
}

// Find fetches every live envelope, unseals, then evaluates the query
// locally. Selectors reference plaintext fields the store cannot see, so
// there is nothing to push down.
func (b *EncryptedBackend) Find(ctx context.Context, query access.FindQuery) (*access.FindResult, error) {
	res, err := b.store.Find(ctx, access.FindQuery{})
	if err != nil {
		return nil, err
	}

	docs := make([]access.Record, 0, len(res.Docs))
	for _, envelope := range res.Docs {
		doc, err := b.unseal(envelope)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	matched, err := docstore.Apply(docs, query)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", b.name, err)
	}
	return &access.FindResult{Docs: matched, Warning: res.Warning}, nil
}

// systemFields stay in clear on the stored envelope.
var systemFields = map[string]bool{
	access.FieldID:         true,
	access.FieldInsertedAt: true,
	access.FieldModifiedAt: true,
	access.FieldDeleted:    true,
	access.FieldSignature:  true,
}

func (b *EncryptedBackend) seal(doc access.Record) (access.Record, error) {
	payload := make(map[string]any)
	envelope := make(access.Record)
	for k, v := range doc {
		if systemFields[k] {
			envelope[k] = v
		} else {
			payload[k] = v
		}
	}

	data, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("sealing record %q in %q: %w", doc.ID(), b.name, err)
	}

	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, b.recipient)
	if err != nil {
		return nil, fmt.Errorf("sealing record %q in %q: %w", doc.ID(), b.name, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("sealing record %q in %q: %w", doc.ID(), b.name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("sealing record %q in %q: %w", doc.ID(), b.name, err)
	}

	envelope[payloadField] = base64.StdEncoding.EncodeToString(sealed.Bytes())
	return envelope, nil
}

func (b *EncryptedBackend) unseal(envelope access.Record) (access.Record, error) {
	doc := make(access.Record)
	for k, v := range envelope {
		if k != payloadField {
			doc[k] = v
		}
	}

	encoded, _ := envelope[payloadField].(string)
	if encoded == "" {
		return doc, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("unsealing record %q in %q: %w", doc.ID(), b.name, err)
	}

	r, err := age.Decrypt(bytes.NewReader(sealed), b.identity)
	if err != nil {
		return nil, fmt.Errorf("unsealing record %q in %q: %w", doc.ID(), b.name, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unsealing record %q in %q: %w", doc.ID(), b.name, err)
	}

	payload, err := decodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("unsealing record %q in %q: %w", doc.ID(), b.name, err)
	}
	for k, v := range payload {
		doc[k] = v
	}
	return doc, nil
}

func encodePayload(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}

func decodePayload(data []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
