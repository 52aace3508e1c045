package access

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so record timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts record identifier generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDv7Generator produces time-ordered UUIDs, so record identifiers sort in
// insertion order.
type UUIDv7Generator struct{}

func (UUIDv7Generator) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4
		// rather than surfacing an error on every insert.
		return uuid.New().String()
	}
	return id.String()
}
