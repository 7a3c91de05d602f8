package fact

// Kind classifies a System Relation edge.
type Kind string

const (
	KindTriggers    Kind = "triggers"
	KindCites       Kind = "cites"
	KindDerivesFrom Kind = "derives_from"
	KindContains    Kind = "contains"
	KindRepliesTo   Kind = "replies_to"
	KindContinues   Kind = "continues"
	KindSupersedes  Kind = "supersedes"
)

// ValidKinds defines the closed set of relation kinds for this deployment.
var ValidKinds = map[Kind]bool{
	KindTriggers:    true,
	KindCites:       true,
	KindDerivesFrom: true,
	KindContains:    true,
	KindRepliesTo:   true,
	KindContinues:   true,
	KindSupersedes:  true,
}

// Valid reports whether k is a known relation kind.
func (k Kind) Valid() bool {
	return ValidKinds[k]
}

// NodeType tags a relation endpoint as a soil Item or an external Entity.
type NodeType string

const (
	NodeItem   NodeType = "item"
	NodeEntity NodeType = "entity"
)

// ValidNodeTypes defines allowed endpoint tags.
var ValidNodeTypes = map[NodeType]bool{
	NodeItem:   true,
	NodeEntity: true,
}

// Valid reports whether n is a known node type.
func (n NodeType) Valid() bool {
	return ValidNodeTypes[n]
}

// Direction selects which incident edges of a node to read.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing" // node is the source
	DirectionIncoming Direction = "incoming" // node is the target
	DirectionBoth     Direction = "both"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming || d == DirectionBoth
}

// Evidence records the provenance of an asserted relation.
//
// Conventional values: Source "system_inferred" or "system", Method names
// the derivation (e.g. "rfc_5322_in_reply_to"), Confidence is
// "high" / "medium" / "low" / "certain".
type Evidence struct {
	Source     string `json:"source"`
	Method     string `json:"method"`
	Confidence string `json:"confidence"`
}

// Relation represents an immutable typed directed edge between
// Items and/or Entities.
//
// No two relations share the same (kind, source, target) triple: a relation
// is either present or absent, never duplicated. Re-asserting an identical
// triple is a no-op, not an error.
type Relation struct {
	UUID       string         `json:"uuid"`
	Kind       Kind           `json:"kind"`
	Source     string         `json:"source"`
	SourceType NodeType       `json:"source_type"`
	Target     string         `json:"target"`
	TargetType NodeType       `json:"target_type"`
	CreatedAt  Day            `json:"created_at"` // Day granularity: relation provenance is less time-sensitive
	Evidence   *Evidence      `json:"evidence,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
