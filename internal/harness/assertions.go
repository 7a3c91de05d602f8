package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/store"
)

// AssertionError is returned when an assertion fails. Expected and
// Actual speak in scenario handles wherever a binding exists, so
// failures read like the YAML that produced them.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  expected: %s\n  actual:   %s", e.Type, e.Expected, e.Actual)
}

// binder resolves scenario handles to UUIDs and back.
type binder struct {
	forward map[string]string
	reverse map[string]string
}

func newBinder(bindings map[string]string) *binder {
	reverse := make(map[string]string, len(bindings))
	for handle, uuid := range bindings {
		reverse[uuid] = handle
	}
	return &binder{forward: bindings, reverse: reverse}
}

// resolve maps a handle to its UUID; unbound references pass through.
func (b *binder) resolve(ref string) string {
	if uuid, ok := b.forward[ref]; ok {
		return uuid
	}
	return ref
}

func (b *binder) resolveAll(refs []string) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = b.resolve(ref)
	}
	return out
}

// describe maps a UUID back to its handle for failure messages.
func (b *binder) describe(uuid string) string {
	if handle, ok := b.reverse[uuid]; ok {
		return handle
	}
	return uuid
}

func (b *binder) describeAll(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, uuid := range uuids {
		out[i] = b.describe(uuid)
	}
	return out
}

// EvaluateAssertions checks every assertion against the final store
// state and returns one message per failure. An empty slice means all
// assertions held.
func EvaluateAssertions(ctx context.Context, st *store.Store, bindings map[string]string, assertions []Assertion) []string {
	b := newBinder(bindings)
	msgs := []string{}

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertLive:
			err = assertLive(ctx, st, b, a)
		case AssertChain:
			err = assertChain(ctx, st, b, a)
		case AssertLiveItems:
			err = assertLiveItems(ctx, st, b, a)
		case AssertRelations:
			err = assertRelations(ctx, st, b, a)
		case AssertStats:
			err = assertStats(ctx, st, a)
		case AssertIntegrityClean:
			err = assertIntegrityClean(ctx, st, a)
		case AssertIndexesClean:
			err = assertIndexesClean(ctx, st, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

// assertLive checks that ResolveLive lands on the wanted item.
func assertLive(ctx context.Context, st *store.Store, b *binder, a Assertion) error {
	got, err := st.ResolveLive(ctx, b.resolve(a.Item))
	if err != nil {
		return &AssertionError{
			Type:     AssertLive,
			Expected: fmt.Sprintf("%s resolves to %s", a.Item, a.Want),
			Actual:   fmt.Sprintf("resolve failed: %v", err),
		}
	}
	if got != b.resolve(a.Want) {
		return &AssertionError{
			Type:     AssertLive,
			Expected: fmt.Sprintf("%s resolves to %s", a.Item, a.Want),
			Actual:   fmt.Sprintf("resolved to %s", b.describe(got)),
		}
	}
	return nil
}

// assertChain compares the full supersession chain, oldest first.
func assertChain(ctx context.Context, st *store.Store, b *binder, a Assertion) error {
	items, err := st.Chain(ctx, b.resolve(a.Item))
	if err != nil {
		return &AssertionError{
			Type:     AssertChain,
			Expected: fmt.Sprintf("chain of %s is [%s]", a.Item, strings.Join(a.WantChain, ", ")),
			Actual:   fmt.Sprintf("chain walk failed: %v", err),
		}
	}

	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.UUID
	}
	if !equalStrings(got, b.resolveAll(a.WantChain)) {
		return &AssertionError{
			Type:     AssertChain,
			Expected: fmt.Sprintf("chain of %s is [%s]", a.Item, strings.Join(a.WantChain, ", ")),
			Actual:   fmt.Sprintf("[%s]", strings.Join(b.describeAll(got), ", ")),
		}
	}
	return nil
}

// assertLiveItems compares the live view of a type, in scan order.
// Per-record failures count as assertion failures: a scenario with
// silently skipped records is not a passing scenario.
func assertLiveItems(ctx context.Context, st *store.Store, b *binder, a Assertion) error {
	items, skipped, err := st.LiveItemsByType(ctx, a.ItemType)
	if err != nil {
		return &AssertionError{
			Type:     AssertLiveItems,
			Expected: fmt.Sprintf("live %s items are [%s]", a.ItemType, strings.Join(a.WantItems, ", ")),
			Actual:   fmt.Sprintf("scan failed: %v", err),
		}
	}
	if len(skipped) > 0 {
		return &AssertionError{
			Type:     AssertLiveItems,
			Expected: fmt.Sprintf("live %s items are [%s]", a.ItemType, strings.Join(a.WantItems, ", ")),
			Actual:   fmt.Sprintf("%d records skipped, first: %v", len(skipped), skipped[0].Err),
		}
	}

	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.UUID
	}
	if !equalStrings(got, b.resolveAll(a.WantItems)) {
		return &AssertionError{
			Type:     AssertLiveItems,
			Expected: fmt.Sprintf("live %s items are [%s]", a.ItemType, strings.Join(a.WantItems, ", ")),
			Actual:   fmt.Sprintf("[%s]", strings.Join(b.describeAll(got), ", ")),
		}
	}
	return nil
}

// assertRelations compares the incident edges of a node.
func assertRelations(ctx context.Context, st *store.Store, b *binder, a Assertion) error {
	rels, skipped, err := st.GetRelations(ctx, b.resolve(a.Node), store.RelationQuery{
		Kind:      fact.Kind(a.Kind),
		Direction: fact.Direction(a.Direction),
	})
	if err != nil {
		return &AssertionError{
			Type:     AssertRelations,
			Expected: fmt.Sprintf("edges of %s", a.Node),
			Actual:   fmt.Sprintf("scan failed: %v", err),
		}
	}
	if len(skipped) > 0 {
		return &AssertionError{
			Type:     AssertRelations,
			Expected: fmt.Sprintf("edges of %s", a.Node),
			Actual:   fmt.Sprintf("%d records skipped, first: %v", len(skipped), skipped[0].Err),
		}
	}

	if a.WantCount != nil && len(rels) != *a.WantCount {
		return &AssertionError{
			Type:     AssertRelations,
			Expected: fmt.Sprintf("%d edges of %s", *a.WantCount, a.Node),
			Actual:   fmt.Sprintf("%d edges", len(rels)),
		}
	}

	if len(a.WantSources) > 0 {
		got := make([]string, len(rels))
		for i, rel := range rels {
			got[i] = rel.Source
		}
		if !equalStrings(got, b.resolveAll(a.WantSources)) {
			return &AssertionError{
				Type:     AssertRelations,
				Expected: fmt.Sprintf("edge sources of %s are [%s]", a.Node, strings.Join(a.WantSources, ", ")),
				Actual:   fmt.Sprintf("[%s]", strings.Join(b.describeAll(got), ", ")),
			}
		}
	}

	if len(a.WantTargets) > 0 {
		got := make([]string, len(rels))
		for i, rel := range rels {
			got[i] = rel.Target
		}
		if !equalStrings(got, b.resolveAll(a.WantTargets)) {
			return &AssertionError{
				Type:     AssertRelations,
				Expected: fmt.Sprintf("edge targets of %s are [%s]", a.Node, strings.Join(a.WantTargets, ", ")),
				Actual:   fmt.Sprintf("[%s]", strings.Join(b.describeAll(got), ", ")),
			}
		}
	}
	return nil
}

// assertStats compares the counts the assertion names.
func assertStats(ctx context.Context, st *store.Store, a Assertion) error {
	stats, err := st.Stats(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertStats,
			Expected: "store counts",
			Actual:   fmt.Sprintf("stats failed: %v", err),
		}
	}

	check := func(name string, want *int64, got int64) error {
		if want != nil && got != *want {
			return &AssertionError{
				Type:     AssertStats,
				Expected: fmt.Sprintf("%s = %d", name, *want),
				Actual:   fmt.Sprintf("%s = %d", name, got),
			}
		}
		return nil
	}

	if err := check("items", a.Items, stats.Items); err != nil {
		return err
	}
	if err := check("live_items", a.LiveItems, stats.LiveItems); err != nil {
		return err
	}
	if err := check("relations", a.Relations, stats.Relations); err != nil {
		return err
	}
	return check("dedup_entries", a.DedupEntries, stats.DedupEntries)
}

// assertIntegrityClean checks that no stored digest disagrees with its
// recomputed value.
func assertIntegrityClean(ctx context.Context, st *store.Store, a Assertion) error {
	findings, err := st.VerifyIntegrity(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertIntegrityClean,
			Expected: "no integrity findings",
			Actual:   fmt.Sprintf("verification failed: %v", err),
		}
	}
	if len(findings) > 0 {
		return &AssertionError{
			Type:     AssertIntegrityClean,
			Expected: "no integrity findings",
			Actual:   fmt.Sprintf("%d findings, first: %v", len(findings), findings[0].Error()),
		}
	}
	return nil
}

// assertIndexesClean checks that derived structures agree with the
// source tables.
func assertIndexesClean(ctx context.Context, st *store.Store, a Assertion) error {
	findings, err := st.CheckIndexes(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertIndexesClean,
			Expected: "no index findings",
			Actual:   fmt.Sprintf("check failed: %v", err),
		}
	}
	if len(findings) > 0 {
		return &AssertionError{
			Type:     AssertIndexesClean,
			Expected: "no index findings",
			Actual:   fmt.Sprintf("%d findings, first: %v", len(findings), findings[0].Error()),
		}
	}
	return nil
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
