package fact

import (
	"strings"

	"github.com/google/uuid"
)

// UUIDPrefix marks soil-assigned identifiers. Entities owned by external
// systems use their own prefixes; the prefix lets mixed references be told
// apart without a lookup.
const UUIDPrefix = "soil-"

// IDGenerator produces Item and Relation identifiers.
// The store takes one by injection so tests can run deterministically.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers under the
// soil prefix.
//
// UUIDv7 embeds a timestamp in the most significant bits, keeping the
// primary key index append-friendly and identifiers roughly sortable by
// creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a fresh prefixed UUIDv7.
//
// Format: "soil-01912e8c-...-..." (41 characters)
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID() string {
	return UUIDPrefix + uuid.Must(uuid.NewV7()).String()
}

// IsSoilID reports whether s carries the soil identifier prefix.
func IsSoilID(s string) bool {
	return strings.HasPrefix(s, UUIDPrefix)
}
