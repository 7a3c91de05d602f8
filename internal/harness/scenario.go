package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one storage scenario: a sequence of operations against a
// fresh store, followed by assertions over the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Steps are executed in order against a fresh store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single store operation. Which fields apply depends on Op.
type Step struct {
	// Op selects the operation: create, supersede, tombstone, relate.
	Op string `yaml:"op"`

	// Expect names the outcome this step should produce. Empty means "ok".
	Expect string `yaml:"expect,omitempty"`

	// Handle binds the created item (create) or the tombstone
	// (tombstone, optional) for later steps and assertions.
	Handle string `yaml:"handle,omitempty"`

	// create fields.
	Type        string         `yaml:"type,omitempty"`
	CanonicalAt string         `yaml:"canonical_at,omitempty"` // RFC 3339
	Fidelity    string         `yaml:"fidelity,omitempty"`
	Data        map[string]any `yaml:"data,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
	DedupKey    string         `yaml:"dedup_key,omitempty"`
	DedupByHash bool           `yaml:"dedup_by_hash,omitempty"`

	// supersede fields.
	Old string `yaml:"old,omitempty"`
	New string `yaml:"new,omitempty"`

	// tombstone fields.
	Item   string `yaml:"item,omitempty"`
	Reason string `yaml:"reason,omitempty"`

	// relate fields. Source and target types default to item.
	Kind       string        `yaml:"kind,omitempty"`
	Source     string        `yaml:"source,omitempty"`
	SourceType string        `yaml:"source_type,omitempty"`
	Target     string        `yaml:"target,omitempty"`
	TargetType string        `yaml:"target_type,omitempty"`
	Evidence   *EvidenceSpec `yaml:"evidence,omitempty"`
}

// EvidenceSpec carries relation evidence through YAML.
type EvidenceSpec struct {
	Source     string `yaml:"source"`
	Method     string `yaml:"method"`
	Confidence string `yaml:"confidence"`
}

// Assertion validates final store state. Which fields apply depends on Type.
type Assertion struct {
	// Type selects the assertion: live, chain, live_items, relations,
	// stats, integrity_clean, indexes_clean.
	Type string `yaml:"type"`

	// live and chain anchor.
	Item string `yaml:"item,omitempty"`

	// Want is the handle ResolveLive should land on (live).
	Want string `yaml:"want,omitempty"`

	// WantChain is the expected chain, oldest first (chain).
	WantChain []string `yaml:"want_chain,omitempty"`

	// live_items fields. WantItems is the expected live view in scan
	// order; an empty or absent list means no live items.
	ItemType  string   `yaml:"item_type,omitempty"`
	WantItems []string `yaml:"want_items"`

	// relations fields. WantSources and WantTargets compare the edge
	// endpoints in order; WantCount compares the edge count.
	Node        string   `yaml:"node,omitempty"`
	Kind        string   `yaml:"kind,omitempty"`
	Direction   string   `yaml:"direction,omitempty"`
	WantCount   *int     `yaml:"want_count,omitempty"`
	WantSources []string `yaml:"want_sources,omitempty"`
	WantTargets []string `yaml:"want_targets,omitempty"`

	// stats fields. Only the counts given are compared.
	Items        *int64 `yaml:"items,omitempty"`
	LiveItems    *int64 `yaml:"live_items,omitempty"`
	Relations    *int64 `yaml:"relations,omitempty"`
	DedupEntries *int64 `yaml:"dedup_entries,omitempty"`
}

// Step operation constants.
const (
	OpCreate    = "create"
	OpSupersede = "supersede"
	OpTombstone = "tombstone"
	OpRelate    = "relate"
)

// Step outcome constants.
const (
	OutcomeOK         = "ok"
	OutcomeDuplicate  = "duplicate"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeConflict   = "conflict"
	OutcomeSelf       = "self_supersession"
	OutcomeRegression = "fidelity_regression"
	OutcomeExisting   = "existing"
	OutcomeError      = "error"
)

// Assertion type constants.
const (
	AssertLive           = "live"
	AssertChain          = "chain"
	AssertLiveItems      = "live_items"
	AssertRelations      = "relations"
	AssertStats          = "stats"
	AssertIntegrityClean = "integrity_clean"
	AssertIndexesClean   = "indexes_clean"
)

var validOutcomes = map[string]bool{
	OutcomeOK:         true,
	OutcomeDuplicate:  true,
	OutcomeInvalid:    true,
	OutcomeNotFound:   true,
	OutcomeConflict:   true,
	OutcomeSelf:       true,
	OutcomeRegression: true,
	OutcomeExisting:   true,
	OutcomeError:      true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as load errors, not silently ignored steps.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates a single step based on its operation.
func validateStep(index int, st *Step) error {
	if st.Expect != "" && !validOutcomes[st.Expect] {
		return fmt.Errorf("steps[%d]: unknown expect %q", index, st.Expect)
	}

	switch st.Op {
	case OpCreate:
		if st.Handle == "" {
			return fmt.Errorf("steps[%d]: handle is required for create", index)
		}
		if st.Type == "" {
			return fmt.Errorf("steps[%d]: type is required for create", index)
		}
		if st.CanonicalAt != "" {
			if _, err := time.Parse(time.RFC3339, st.CanonicalAt); err != nil {
				return fmt.Errorf("steps[%d]: canonical_at must be RFC 3339: %w", index, err)
			}
		}
	case OpSupersede:
		if st.Old == "" || st.New == "" {
			return fmt.Errorf("steps[%d]: old and new are required for supersede", index)
		}
	case OpTombstone:
		if st.Item == "" {
			return fmt.Errorf("steps[%d]: item is required for tombstone", index)
		}
	case OpRelate:
		if st.Kind == "" {
			return fmt.Errorf("steps[%d]: kind is required for relate", index)
		}
		if st.Source == "" || st.Target == "" {
			return fmt.Errorf("steps[%d]: source and target are required for relate", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertLive:
		if a.Item == "" || a.Want == "" {
			return fmt.Errorf("assertions[%d]: item and want are required for live", index)
		}
	case AssertChain:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for chain", index)
		}
		if len(a.WantChain) == 0 {
			return fmt.Errorf("assertions[%d]: want_chain is required for chain", index)
		}
	case AssertLiveItems:
		if a.ItemType == "" {
			return fmt.Errorf("assertions[%d]: item_type is required for live_items", index)
		}
	case AssertRelations:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for relations", index)
		}
		if a.WantCount == nil && len(a.WantSources) == 0 && len(a.WantTargets) == 0 {
			return fmt.Errorf("assertions[%d]: relations needs want_count, want_sources, or want_targets", index)
		}
	case AssertStats:
		if a.Items == nil && a.LiveItems == nil && a.Relations == nil && a.DedupEntries == nil {
			return fmt.Errorf("assertions[%d]: stats needs at least one count to compare", index)
		}
	case AssertIntegrityClean, AssertIndexesClean:
		// no fields
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
