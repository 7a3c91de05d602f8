package fact

import "time"

// Fidelity is the completeness level of a stored fact.
//
// Fidelity degrades monotonically over a supersession chain
// (full → summary → stub → tombstone) except that a new full Item may
// explicitly supersede a degraded one.
type Fidelity string

const (
	FidelityFull      Fidelity = "full"
	FidelitySummary   Fidelity = "summary"
	FidelityStub      Fidelity = "stub"
	FidelityTombstone Fidelity = "tombstone"
)

// ValidFidelities defines allowed fidelity values.
var ValidFidelities = map[Fidelity]bool{
	FidelityFull:      true,
	FidelitySummary:   true,
	FidelityStub:      true,
	FidelityTombstone: true,
}

// Valid reports whether f is a known fidelity level.
func (f Fidelity) Valid() bool {
	return ValidFidelities[f]
}

// Rank orders fidelity levels for degradation checks:
// full=3, summary=2, stub=1, tombstone=0.
// Unknown values rank below tombstone.
func (f Fidelity) Rank() int {
	switch f {
	case FidelityFull:
		return 3
	case FidelitySummary:
		return 2
	case FidelityStub:
		return 1
	case FidelityTombstone:
		return 0
	default:
		return -1
	}
}

// Item types with registered payload schemas. The set is extensible:
// unknown types are accepted with free-form payloads.
const (
	TypeNote        = "Note"
	TypeMessage     = "Message"
	TypeEmail       = "Email"
	TypeToolCall    = "ToolCall"
	TypeEntityDelta = "EntityDelta"
	TypeSystemEvent = "SystemEvent"
)

// Item represents an immutable recorded fact.
//
// Once inserted, a row is never updated except to set
// SupersededBy/SupersededAt exactly once. All other fields are write-once.
type Item struct {
	UUID          string         `json:"uuid"`
	Type          string         `json:"type"`
	RealizedAt    time.Time      `json:"realized_at"`             // System clock, strictly monotonic per writer
	CanonicalAt   *time.Time     `json:"canonical_at,omitempty"`  // Source-supplied, may precede RealizedAt, may be absent
	IntegrityHash string         `json:"integrity_hash"`          // Content digest, see ItemIntegrityHash
	Fidelity      Fidelity       `json:"fidelity"`
	SupersededBy  string         `json:"superseded_by,omitempty"` // Set exactly once, never overwritten
	SupersededAt  *time.Time     `json:"superseded_at,omitempty"`
	DedupKey      string         `json:"dedup_key,omitempty"`     // Type-specific, distinct from the integrity hash
	Data          map[string]any `json:"data"`
	Metadata      map[string]any `json:"metadata,omitempty"` // Provider-specific, excluded from the integrity hash
}

// Live reports whether the Item has not been superseded.
func (it Item) Live() bool {
	return it.SupersededBy == ""
}
