package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/log"
	"github.com/memogarden/soil/internal/store"
	"github.com/memogarden/soil/internal/testutil"
)

func intPtr(n int) *int       { return &n }
func int64Ptr(n int64) *int64 { return &n }

// newAssertionStore builds a store with one superseded note chain, one
// deduplicated email, and one cites edge, and returns the handle
// bindings a scenario run would have produced.
func newAssertionStore(t *testing.T) (*store.Store, map[string]string) {
	t.Helper()

	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewFixedClock(scenarioEpoch, time.Second)),
		store.WithIDGenerator(testutil.NewSequenceGenerator("")),
		store.WithLogger(log.NewNop()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	a, err := st.CreateItem(ctx, store.NewItem{Type: "Note", Data: map[string]any{"content": "v1"}})
	require.NoError(t, err)
	b, err := st.CreateItem(ctx, store.NewItem{Type: "Note", Data: map[string]any{"content": "v2"}})
	require.NoError(t, err)
	require.NoError(t, st.Supersede(ctx, a.UUID, b.UUID))
	email, err := st.CreateItem(ctx, store.NewItem{
		Type:     "Email",
		Data:     map[string]any{"rfc_message_id": "<k@example.com>"},
		DedupKey: "<k@example.com>",
	})
	require.NoError(t, err)
	_, _, err = st.AddRelation(ctx, store.NewRelation{
		Kind:       fact.KindCites,
		Source:     b.UUID,
		SourceType: fact.NodeItem,
		Target:     email.UUID,
		TargetType: fact.NodeItem,
	})
	require.NoError(t, err)

	return st, map[string]string{"a": a.UUID, "b": b.UUID, "email": email.UUID}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: AssertLive, Item: "a", Want: "b"},
		{Type: AssertChain, Item: "b", WantChain: []string{"a", "b"}},
		{Type: AssertLiveItems, ItemType: "Note", WantItems: []string{"b"}},
		{Type: AssertLiveItems, ItemType: "Email", WantItems: []string{"email"}},
		{Type: AssertRelations, Node: "b", Kind: "cites", Direction: "outgoing",
			WantCount: intPtr(1), WantTargets: []string{"email"}},
		{Type: AssertStats, Items: int64Ptr(3), LiveItems: int64Ptr(2),
			Relations: int64Ptr(2), DedupEntries: int64Ptr(1)},
		{Type: AssertIntegrityClean},
		{Type: AssertIndexesClean},
	})
	assert.Empty(t, msgs)
}

func TestEvaluateAssertions_LiveMismatch(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: AssertLive, Item: "a", Want: "a"},
	})
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "assertions[0]")
	assert.Contains(t, msgs[0], "assertion failed: live")
	assert.Contains(t, msgs[0], "a resolves to a")
	assert.Contains(t, msgs[0], "resolved to b")
}

func TestEvaluateAssertions_LiveResolveFailure(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: AssertLive, Item: "ghost", Want: "b"},
	})
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "resolve failed")
}

func TestEvaluateAssertions_ChainMismatch(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: AssertChain, Item: "a", WantChain: []string{"b"}},
	})
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "assertion failed: chain")
	assert.Contains(t, msgs[0], "[a, b]")
}

func TestEvaluateAssertions_LiveItemsMismatch(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: AssertLiveItems, ItemType: "Note", WantItems: []string{"a"}},
	})
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "assertion failed: live_items")
	assert.Contains(t, msgs[0], "[b]")
}

func TestEvaluateAssertions_RelationsMismatch(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: AssertRelations, Node: "b", Kind: "cites", Direction: "outgoing", WantCount: intPtr(2)},
		{Type: AssertRelations, Node: "b", Kind: "cites", Direction: "outgoing", WantTargets: []string{"a"}},
	})
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "2 edges")
	assert.Contains(t, msgs[0], "1 edges")
	assert.Contains(t, msgs[1], "edge targets")
	assert.Contains(t, msgs[1], "[email]")
}

func TestEvaluateAssertions_StatsMismatch(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: AssertStats, Items: int64Ptr(99)},
	})
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "items = 99")
	assert.Contains(t, msgs[0], "items = 3")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	st, bindings := newAssertionStore(t)

	msgs := EvaluateAssertions(context.Background(), st, bindings, []Assertion{
		{Type: "eventually_consistent"},
	})
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], `unknown assertion type "eventually_consistent"`)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: "live", Expected: "a resolves to b", Actual: "resolved to c"}

	msg := err.Error()
	assert.Contains(t, msg, "assertion failed: live")
	assert.Contains(t, msg, "expected: a resolves to b")
	assert.Contains(t, msg, "actual:   resolved to c")
}

func TestBinder_RoundTrip(t *testing.T) {
	b := newBinder(map[string]string{"a": "soil-test-000001"})

	assert.Equal(t, "soil-test-000001", b.resolve("a"))
	assert.Equal(t, "entity-alice", b.resolve("entity-alice"))
	assert.Equal(t, "a", b.describe("soil-test-000001"))
	assert.Equal(t, "soil-test-999999", b.describe("soil-test-999999"))
}
