package access

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is a schemaless document plus the system fields the access layer
// maintains. Payload fields are application-defined.
type Record map[string]any

// System field names on the wire.
const (
	FieldID         = "_id"
	FieldInsertedAt = "insertedAt"
	FieldModifiedAt = "modifiedAt"
	FieldDeleted    = "_deleted"
	FieldSignature  = "_signature"
)

// timestampLayout is the ISO-8601 format used for insertedAt/modifiedAt,
// millisecond precision, always UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t for the insertedAt/modifiedAt system fields.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ID returns the record identifier, or "" if the record has not been
// inserted yet.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Deleted reports whether the record carries the soft-delete marker.
func (r Record) Deleted() bool {
	deleted, _ := r[FieldDeleted].(bool)
	return deleted
}

// Clone returns a shallow copy. Mutating system fields on the copy does not
// affect the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SigningPayload returns the canonical byte representation of the record used
// for signing and verification: JSON with sorted keys, signature field
// excluded.
func (r Record) SigningPayload() ([]byte, error) {
	body := make(map[string]any, len(r))
	for k, v := range r {
		if k == FieldSignature {
			continue
		}
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding record for signing: %w", err)
	}
	return data, nil
}
