package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/memogarden/soil/internal/fact"
)

func TestGetItem_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetItem(context.Background(), "soil-test-999999")
	if !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestGetItem_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	canonical := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	item := mustCreate(t, s, NewItem{
		Type:        fact.TypeEmail,
		CanonicalAt: &canonical,
		Data:        map[string]any{"rfc_message_id": "<msg-1@example.com>", "title": "Quarterly sync"},
		Metadata:    map[string]any{"provider": "gmail"},
		DedupKey:    "<msg-1@example.com>",
	})

	got, err := s.GetItem(context.Background(), item.UUID)
	if err != nil {
		t.Fatalf("GetItem() failed: %v", err)
	}

	if got.UUID != item.UUID {
		t.Errorf("uuid = %q, want %q", got.UUID, item.UUID)
	}
	if got.Type != fact.TypeEmail {
		t.Errorf("type = %q, want %q", got.Type, fact.TypeEmail)
	}
	if !got.RealizedAt.Equal(item.RealizedAt) {
		t.Errorf("realized_at = %v, want %v", got.RealizedAt, item.RealizedAt)
	}
	if got.CanonicalAt == nil || !got.CanonicalAt.Equal(canonical) {
		t.Errorf("canonical_at = %v, want %v", got.CanonicalAt, canonical)
	}
	if got.IntegrityHash != item.IntegrityHash {
		t.Errorf("integrity_hash = %q, want %q", got.IntegrityHash, item.IntegrityHash)
	}
	if got.Fidelity != fact.FidelityFull {
		t.Errorf("fidelity = %q, want %q", got.Fidelity, fact.FidelityFull)
	}
	if got.SupersededBy != "" || got.SupersededAt != nil {
		t.Errorf("fresh item carries supersession: by=%q at=%v", got.SupersededBy, got.SupersededAt)
	}
	if got.DedupKey != "<msg-1@example.com>" {
		t.Errorf("dedup_key = %q, want %q", got.DedupKey, "<msg-1@example.com>")
	}
	if got.Data["title"] != "Quarterly sync" {
		t.Errorf("data title = %v, want %q", got.Data["title"], "Quarterly sync")
	}
	if got.Metadata["provider"] != "gmail" {
		t.Errorf("metadata provider = %v, want %q", got.Metadata["provider"], "gmail")
	}
}

func TestListItems_Empty(t *testing.T) {
	s := newTestStore(t)

	items, skipped, err := s.ListItems(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if items == nil {
		t.Error("items = nil, want empty slice")
	}
	if skipped == nil {
		t.Error("skipped = nil, want empty slice")
	}
	if len(items) != 0 || len(skipped) != 0 {
		t.Errorf("items = %d, skipped = %d, want 0/0", len(items), len(skipped))
	}
}

func TestListItems_OrderedByRealizedAt(t *testing.T) {
	s := newTestStore(t)

	a := createNote(t, s, "first")
	b := createNote(t, s, "second")
	c := createNote(t, s, "third")

	items, _, err := s.ListItems(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	want := []string{a.UUID, b.UUID, c.UUID}
	for i, it := range items {
		if it.UUID != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, it.UUID, want[i])
		}
	}
}

func TestListItems_FilterByType(t *testing.T) {
	s := newTestStore(t)

	a := createNote(t, s, "a note")
	createEmail(t, s, "<msg-1@example.com>")
	b := createNote(t, s, "another note")

	items, _, err := s.ListItems(context.Background(), ListFilter{Type: fact.TypeNote})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].UUID != a.UUID || items[1].UUID != b.UUID {
		t.Errorf("items = [%q, %q], want [%q, %q]", items[0].UUID, items[1].UUID, a.UUID, b.UUID)
	}
}

func TestListItems_FilterByFidelity(t *testing.T) {
	s := newTestStore(t)

	createNote(t, s, "full note")
	stub := mustCreate(t, s, NewItem{
		Type:     fact.TypeNote,
		Fidelity: fact.FidelityStub,
		Data:     map[string]any{"content": "stub note"},
	})

	items, _, err := s.ListItems(context.Background(), ListFilter{Fidelity: fact.FidelityStub})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 1 || items[0].UUID != stub.UUID {
		t.Errorf("items = %v, want only %q", items, stub.UUID)
	}
}

func TestListItems_RealizedWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createNote(t, s, "t0") // testStart
	b := createNote(t, s, "t1") // +1s
	c := createNote(t, s, "t2") // +2s

	t1 := testStart.Add(time.Second)
	t2 := testStart.Add(2 * time.Second)

	// After is inclusive
	items, _, err := s.ListItems(ctx, ListFilter{RealizedAfter: &t1})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 || items[0].UUID != b.UUID || items[1].UUID != c.UUID {
		t.Errorf("after t1: got %d items, want [b, c]", len(items))
	}

	// Before is exclusive
	items, _, err = s.ListItems(ctx, ListFilter{RealizedBefore: &t1})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 1 || items[0].UUID != a.UUID {
		t.Errorf("before t1: got %d items, want [a]", len(items))
	}

	// Half-open window
	items, _, err = s.ListItems(ctx, ListFilter{RealizedAfter: &t1, RealizedBefore: &t2})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 1 || items[0].UUID != b.UUID {
		t.Errorf("window [t1, t2): got %d items, want [b]", len(items))
	}
}

func TestListItems_CanonicalWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	// No canonical_at: never matches a canonical window
	createNote(t, s, "uncanonical")
	b := mustCreate(t, s, NewItem{Type: fact.TypeNote, CanonicalAt: &jan, Data: map[string]any{"content": "january"}})
	c := mustCreate(t, s, NewItem{Type: fact.TypeNote, CanonicalAt: &mar, Data: map[string]any{"content": "march"}})

	items, _, err := s.ListItems(ctx, ListFilter{CanonicalAfter: &feb})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 1 || items[0].UUID != c.UUID {
		t.Errorf("canonical after feb: got %d items, want [march item]", len(items))
	}

	items, _, err = s.ListItems(ctx, ListFilter{CanonicalBefore: &feb})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 1 || items[0].UUID != b.UUID {
		t.Errorf("canonical before feb: got %d items, want [january item]", len(items))
	}
}

func TestListItems_LimitOffset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var created []fact.Item
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		created = append(created, createNote(t, s, content))
	}

	items, _, err := s.ListItems(ctx, ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 || items[0].UUID != created[0].UUID || items[1].UUID != created[1].UUID {
		t.Errorf("limit 2: got %d items, want first two", len(items))
	}

	items, _, err = s.ListItems(ctx, ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 || items[0].UUID != created[2].UUID || items[1].UUID != created[3].UUID {
		t.Errorf("limit 2 offset 2: got %d items, want third and fourth", len(items))
	}

	// Offset without limit
	items, _, err = s.ListItems(ctx, ListFilter{Offset: 3})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 || items[0].UUID != created[3].UUID {
		t.Errorf("offset 3: got %d items, want last two", len(items))
	}
}

func TestListItems_IncludesSuperseded(t *testing.T) {
	s := newTestStore(t)

	a := createNote(t, s, "v1")
	b := createNote(t, s, "v2")
	mustSupersede(t, s, a.UUID, b.UUID)

	items, _, err := s.ListItems(context.Background(), ListFilter{Type: fact.TypeNote})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (superseded rows are kept)", len(items))
	}
	if items[0].SupersededBy != b.UUID {
		t.Errorf("superseded_by = %q, want %q", items[0].SupersededBy, b.UUID)
	}
}

func TestListItems_ReportsCorruptRows(t *testing.T) {
	s := newTestStore(t)

	a := createNote(t, s, "sound")
	b := createNote(t, s, "doomed")
	c := createNote(t, s, "also sound")

	// Corrupt the middle row's payload behind the store's back
	if _, err := s.db.Exec("UPDATE items SET data = 'not-json' WHERE uuid = ?", b.UUID); err != nil {
		t.Fatalf("corrupting row failed: %v", err)
	}

	items, skipped, err := s.ListItems(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 || items[0].UUID != a.UUID || items[1].UUID != c.UUID {
		t.Errorf("items = %d, want the two sound rows", len(items))
	}
	if len(skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(skipped))
	}
	if skipped[0].UUID != b.UUID {
		t.Errorf("skipped uuid = %q, want %q", skipped[0].UUID, b.UUID)
	}
	if skipped[0].Err == nil {
		t.Error("skipped record carries no error")
	}
}

// Relation read tests

func TestGetRelations_Directions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createNote(t, s, "a")
	b := createNote(t, s, "b")
	c := createNote(t, s, "c")

	// a -> b (replies_to), c -> a (cites)
	if _, _, err := s.AddRelation(ctx, NewRelation{
		Kind: fact.KindRepliesTo, Source: a.UUID, SourceType: fact.NodeItem, Target: b.UUID, TargetType: fact.NodeItem,
	}); err != nil {
		t.Fatalf("AddRelation() failed: %v", err)
	}
	if _, _, err := s.AddRelation(ctx, NewRelation{
		Kind: fact.KindCites, Source: c.UUID, SourceType: fact.NodeItem, Target: a.UUID, TargetType: fact.NodeItem,
	}); err != nil {
		t.Fatalf("AddRelation() failed: %v", err)
	}

	both, _, err := s.GetRelations(ctx, a.UUID, RelationQuery{})
	if err != nil {
		t.Fatalf("GetRelations() failed: %v", err)
	}
	if len(both) != 2 {
		t.Errorf("both directions: %d edges, want 2", len(both))
	}

	out, _, err := s.GetRelations(ctx, a.UUID, RelationQuery{Direction: fact.DirectionOutgoing})
	if err != nil {
		t.Fatalf("GetRelations() failed: %v", err)
	}
	if len(out) != 1 || out[0].Kind != fact.KindRepliesTo {
		t.Errorf("outgoing: got %d edges, want the replies_to edge", len(out))
	}

	in, _, err := s.GetRelations(ctx, a.UUID, RelationQuery{Direction: fact.DirectionIncoming})
	if err != nil {
		t.Fatalf("GetRelations() failed: %v", err)
	}
	if len(in) != 1 || in[0].Kind != fact.KindCites {
		t.Errorf("incoming: got %d edges, want the cites edge", len(in))
	}
}

func TestGetRelations_KindFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createNote(t, s, "a")
	b := createNote(t, s, "b")

	for _, kind := range []fact.Kind{fact.KindCites, fact.KindContinues} {
		if _, _, err := s.AddRelation(ctx, NewRelation{
			Kind: kind, Source: a.UUID, SourceType: fact.NodeItem, Target: b.UUID, TargetType: fact.NodeItem,
		}); err != nil {
			t.Fatalf("AddRelation(%s) failed: %v", kind, err)
		}
	}

	rels, _, err := s.GetRelations(ctx, a.UUID, RelationQuery{Kind: fact.KindContinues})
	if err != nil {
		t.Fatalf("GetRelations() failed: %v", err)
	}
	if len(rels) != 1 || rels[0].Kind != fact.KindContinues {
		t.Errorf("kind filter: got %d edges, want the continues edge", len(rels))
	}
}

func TestGetRelations_InvalidQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.GetRelations(ctx, "soil-test-000001", RelationQuery{Direction: "sideways"}); err == nil {
		t.Error("expected error for unknown direction, got nil")
	}
	if _, _, err := s.GetRelations(ctx, "soil-test-000001", RelationQuery{Kind: "friends_with"}); err == nil {
		t.Error("expected error for unknown kind, got nil")
	}
}

func TestGetRelations_OrderedByCreatedAt(t *testing.T) {
	s := newTestStore(t)

	x := createNote(t, s, "x")
	y := createNote(t, s, "y")

	// Insert out of order to exercise the ORDER BY
	if _, err := s.db.Exec(`
		INSERT INTO relations (uuid, kind, source, source_type, target, target_type, created_at)
		VALUES ('rel-late', 'cites', ?, 'item', ?, 'item', 200)
	`, x.UUID, y.UUID); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO relations (uuid, kind, source, source_type, target, target_type, created_at)
		VALUES ('rel-early', 'replies_to', ?, 'item', ?, 'item', 100)
	`, x.UUID, y.UUID); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rels, _, err := s.GetRelations(context.Background(), x.UUID, RelationQuery{})
	if err != nil {
		t.Fatalf("GetRelations() failed: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("relations = %d, want 2", len(rels))
	}
	if rels[0].UUID != "rel-early" || rels[1].UUID != "rel-late" {
		t.Errorf("order = [%q, %q], want [rel-early, rel-late]", rels[0].UUID, rels[1].UUID)
	}
}

// Filter compilation tests

func TestListFilter_CompileParameterizes(t *testing.T) {
	query, params := ListFilter{Type: "Note", Fidelity: fact.FidelityFull, Limit: 10, Offset: 5}.compile()

	if strings.Contains(query, "Note") || strings.Contains(query, "full") {
		t.Errorf("filter values interpolated into SQL: %q", query)
	}
	if got, want := strings.Count(query, "?"), len(params); got != want {
		t.Errorf("placeholders = %d, params = %d", got, want)
	}
	if !strings.Contains(query, "ORDER BY realized_at ASC, uuid COLLATE BINARY ASC") {
		t.Errorf("query lacks deterministic ordering: %q", query)
	}
}

func TestListFilter_CompileZeroValue(t *testing.T) {
	query, params := ListFilter{}.compile()

	if strings.Contains(query, "WHERE") {
		t.Errorf("zero filter produced WHERE clause: %q", query)
	}
	if strings.Contains(query, "LIMIT") {
		t.Errorf("zero filter produced LIMIT clause: %q", query)
	}
	if len(params) != 0 {
		t.Errorf("zero filter produced %d params", len(params))
	}
}

func TestListFilter_CompileOffsetWithoutLimit(t *testing.T) {
	query, _ := ListFilter{Offset: 3}.compile()

	// SQLite requires LIMIT before OFFSET; -1 means unlimited
	if !strings.Contains(query, "LIMIT -1 OFFSET ?") {
		t.Errorf("offset-only filter compiled to %q", query)
	}
}
