package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/log"
	"github.com/memogarden/soil/internal/schema"
	"github.com/memogarden/soil/internal/store"
	"github.com/memogarden/soil/internal/testutil"
)

// scenarioEpoch anchors the deterministic clock. Every scenario starts
// here and advances one second per tick, so realized_at values and the
// relation day stamps are identical across runs.
var scenarioEpoch = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// runner holds the per-scenario execution state.
type runner struct {
	store    *store.Store
	bindings map[string]string
}

// Run executes a scenario against a fresh in-memory store and returns
// the result. Steps whose outcome differs from their expect clause and
// assertions that do not hold mark the result failed; the run itself
// only errors on malformed scenarios or store-level infrastructure
// failures.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewFixedClock(scenarioEpoch, time.Second)),
		store.WithIDGenerator(testutil.NewSequenceGenerator("")),
		store.WithLogger(log.NewNop()),
	)
	if err != nil {
		return nil, fmt.Errorf("harness: open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	result := NewResult()
	r := &runner{store: st, bindings: map[string]string{}}

	for i, step := range scenario.Steps {
		if err := r.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("harness: step %d (%s): %w", i+1, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, st, r.bindings, scenario.Assertions) {
		result.AddError(msg)
	}

	result.Bindings = r.bindings
	return result, nil
}

// executeStep runs one step, records its trace event, and checks the
// expect clause. Store-level rejections become outcomes, not errors;
// only scenario defects abort the run.
func (r *runner) executeStep(ctx context.Context, seq int, step Step, result *Result) error {
	switch step.Op {
	case OpCreate:
		in := store.NewItem{
			Type:        step.Type,
			Fidelity:    fact.Fidelity(step.Fidelity),
			Data:        step.Data,
			Metadata:    step.Metadata,
			DedupKey:    step.DedupKey,
			DedupByHash: step.DedupByHash,
		}
		if step.CanonicalAt != "" {
			t, err := time.Parse(time.RFC3339, step.CanonicalAt)
			if err != nil {
				return fmt.Errorf("bad canonical_at %q: %w", step.CanonicalAt, err)
			}
			in.CanonicalAt = &t
		}

		item, err := r.store.CreateItem(ctx, in)
		ev := TraceEvent{Seq: seq, Op: step.Op, Refs: []string{step.Handle}, Outcome: classify(err)}
		if err == nil {
			ev.UUID = item.UUID
			r.bindings[step.Handle] = item.UUID
		}
		r.record(result, step, ev, err)

	case OpSupersede:
		err := r.store.Supersede(ctx, r.resolve(step.Old), r.resolve(step.New))
		ev := TraceEvent{Seq: seq, Op: step.Op, Refs: []string{step.Old, step.New}, Outcome: classify(err)}
		r.record(result, step, ev, err)

	case OpTombstone:
		tomb, err := r.store.TombstoneItem(ctx, r.resolve(step.Item), step.Reason)
		ev := TraceEvent{Seq: seq, Op: step.Op, Refs: []string{step.Item}, Outcome: classify(err)}
		if err == nil {
			ev.UUID = tomb.UUID
			if step.Handle != "" {
				r.bindings[step.Handle] = tomb.UUID
			}
		}
		r.record(result, step, ev, err)

	case OpRelate:
		in := store.NewRelation{
			Kind:       fact.Kind(step.Kind),
			Source:     r.resolve(step.Source),
			SourceType: nodeTypeOrDefault(step.SourceType),
			Target:     r.resolve(step.Target),
			TargetType: nodeTypeOrDefault(step.TargetType),
			Metadata:   step.Metadata,
		}
		if step.Evidence != nil {
			in.Evidence = &fact.Evidence{
				Source:     step.Evidence.Source,
				Method:     step.Evidence.Method,
				Confidence: step.Evidence.Confidence,
			}
		}

		rel, inserted, err := r.store.AddRelation(ctx, in)
		outcome := classify(err)
		if err == nil && !inserted {
			outcome = OutcomeExisting
		}
		ev := TraceEvent{Seq: seq, Op: step.Op, Refs: []string{step.Source, step.Target}, Outcome: outcome}
		if err == nil {
			ev.UUID = rel.UUID
		}
		r.record(result, step, ev, err)

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// record appends the trace event and checks the step's expect clause.
func (r *runner) record(result *Result, step Step, ev TraceEvent, err error) {
	result.Trace = append(result.Trace, ev)

	want := step.Expect
	if want == "" {
		want = OutcomeOK
	}
	if ev.Outcome == want {
		return
	}
	if err != nil {
		result.AddError(fmt.Sprintf("step %d (%s): outcome %s, want %s: %v", ev.Seq, ev.Op, ev.Outcome, want, err))
	} else {
		result.AddError(fmt.Sprintf("step %d (%s): outcome %s, want %s", ev.Seq, ev.Op, ev.Outcome, want))
	}
}

// resolve maps a handle to its bound UUID. Unbound references pass
// through verbatim so scenarios can address entities and deliberately
// missing items.
func (r *runner) resolve(ref string) string {
	if uuid, ok := r.bindings[ref]; ok {
		return uuid
	}
	return ref
}

func nodeTypeOrDefault(s string) fact.NodeType {
	if s == "" {
		return fact.NodeItem
	}
	return fact.NodeType(s)
}

// classify maps a store error to a step outcome.
func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case store.IsDuplicateItem(err):
		return OutcomeDuplicate
	case schema.IsValidationError(err):
		return OutcomeInvalid
	case store.IsNotFound(err):
		return OutcomeNotFound
	case store.IsAlreadySuperseded(err):
		return OutcomeConflict
	case store.IsSelfSupersession(err):
		return OutcomeSelf
	case store.IsFidelityRegression(err):
		return OutcomeRegression
	default:
		return OutcomeError
	}
}
