package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/memogarden/soil/internal/fact"
)

// TraceSnapshot is the golden form of a scenario run: the trace plus the
// final handle bindings, serialized as canonical JSON so byte comparison
// is meaningful.
type TraceSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Trace        []TraceEvent      `json:"trace"`
	Bindings     map[string]string `json:"bindings,omitempty"`
}

// toCanonicalMap converts the snapshot for fact.MarshalCanonical, which
// only accepts maps, slices, and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"op":      ev.Op,
			"refs":    ev.Refs,
			"outcome": ev.Outcome,
		}
		if ev.UUID != "" {
			m["uuid"] = ev.UUID
		}
		events[i] = m
	}

	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         events,
	}
	if len(s.Bindings) > 0 {
		bindings := make(map[string]any, len(s.Bindings))
		for handle, uuid := range s.Bindings {
			bindings[handle] = uuid
		}
		out["bindings"] = bindings
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against testdata/golden/{scenario.Name}.golden. Regenerate goldens
// with:
//
//	go test ./internal/harness -update
//
// The returned result still carries the pass/fail state of the
// scenario's own expectations and assertions; callers should check it.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
		Bindings:     result.Bindings,
	}
	if err := AssertGolden(t, scenario.Name, &snapshot); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a snapshot against its golden file.
func AssertGolden(t *testing.T, name string, snapshot *TraceSnapshot) error {
	t.Helper()

	data, err := fact.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
