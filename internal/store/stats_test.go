package store

import (
	"context"
	"testing"

	"github.com/memogarden/soil/internal/fact"
)

func TestStats_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}

	if st.SchemaVersion != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", st.SchemaVersion, currentSchemaVersion)
	}
	if st.Items != 0 || st.LiveItems != 0 || st.Relations != 0 || st.DedupEntries != 0 {
		t.Errorf("counts = %+v, want all zero", st)
	}
	if st.ItemsByType == nil || len(st.ItemsByType) != 0 {
		t.Errorf("items by type = %v, want empty map", st.ItemsByType)
	}
	if st.RelationsByKind == nil || len(st.RelationsByKind) != 0 {
		t.Errorf("relations by kind = %v, want empty map", st.RelationsByKind)
	}
}

func TestStats_Counts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createNote(t, s, "v1")
	b := createNote(t, s, "v2")
	mustSupersede(t, s, a.UUID, b.UUID)
	email := createEmail(t, s, "<msg-1@example.com>")
	if _, err := s.TombstoneItem(ctx, email.UUID, "spam"); err != nil {
		t.Fatalf("TombstoneItem() failed: %v", err)
	}
	addReply(t, s, b.UUID, a.UUID)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}

	// a, b, email, email's tombstone
	if st.Items != 4 {
		t.Errorf("items = %d, want 4", st.Items)
	}
	// b and the tombstone carry no supersession pointer
	if st.LiveItems != 2 {
		t.Errorf("live items = %d, want 2", st.LiveItems)
	}
	if got := st.ItemsByType[fact.TypeNote]; got != 2 {
		t.Errorf("notes = %d, want 2", got)
	}
	if got := st.ItemsByType[fact.TypeEmail]; got != 2 {
		t.Errorf("emails = %d, want 2 including the tombstone", got)
	}
	if got := st.ItemsByFidelity[string(fact.FidelityFull)]; got != 3 {
		t.Errorf("full items = %d, want 3", got)
	}
	if got := st.ItemsByFidelity[string(fact.FidelityTombstone)]; got != 1 {
		t.Errorf("tombstones = %d, want 1", got)
	}

	// supersede mirror, tombstone mirror, one reply
	if st.Relations != 3 {
		t.Errorf("relations = %d, want 3", st.Relations)
	}
	if got := st.RelationsByKind[string(fact.KindSupersedes)]; got != 2 {
		t.Errorf("supersedes edges = %d, want 2", got)
	}
	if got := st.RelationsByKind[string(fact.KindRepliesTo)]; got != 1 {
		t.Errorf("replies_to edges = %d, want 1", got)
	}

	if st.DedupEntries != 1 {
		t.Errorf("dedup entries = %d, want 1", st.DedupEntries)
	}
}
