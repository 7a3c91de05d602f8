package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/testutil"
)

// testStart anchors the fixed test clock. Every tick advances one second.
var testStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// newTestStore creates a store with a fixed clock and sequential IDs so
// rows come out identical on every run. Options given by the caller are
// applied after the deterministic defaults and may override them.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soil.db")
	base := []Option{
		WithClock(testutil.NewFixedClock(testStart, time.Second)),
		WithIDGenerator(testutil.NewSequenceGenerator("")),
	}
	s, err := Open(path, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustCreate appends an item and fails the test on error.
func mustCreate(t *testing.T, s *Store, in NewItem) fact.Item {
	t.Helper()
	item, err := s.CreateItem(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return item
}

// createNote appends a minimal Note item.
func createNote(t *testing.T, s *Store, content string) fact.Item {
	t.Helper()
	return mustCreate(t, s, NewItem{
		Type: fact.TypeNote,
		Data: map[string]any{"content": content},
	})
}

// createEmail appends an Email item keyed by its message-id.
func createEmail(t *testing.T, s *Store, messageID string) fact.Item {
	t.Helper()
	return mustCreate(t, s, NewItem{
		Type:     fact.TypeEmail,
		Data:     map[string]any{"rfc_message_id": messageID},
		DedupKey: messageID,
	})
}

// mustSupersede marks old as replaced by new and fails the test on error.
func mustSupersede(t *testing.T, s *Store, oldUUID, newUUID string) {
	t.Helper()
	if err := s.Supersede(context.Background(), oldUUID, newUUID); err != nil {
		t.Fatalf("Supersede(%s, %s) failed: %v", oldUUID, newUUID, err)
	}
}

// corruptPointer rewrites an item's supersession pointer behind the
// store's back, foreign keys off, to simulate on-disk corruption.
func corruptPointer(t *testing.T, s *Store, uuid, target string) {
	t.Helper()
	if _, err := s.db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		t.Fatalf("disabling foreign keys failed: %v", err)
	}
	if _, err := s.db.Exec(
		"UPDATE items SET superseded_by = ?, superseded_at = ? WHERE uuid = ?",
		target, testStart.Add(time.Hour).UnixNano(), uuid,
	); err != nil {
		t.Fatalf("corrupting pointer failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("re-enabling foreign keys failed: %v", err)
	}
}

// fakeEntityChecker recognizes a fixed set of entity identifiers.
type fakeEntityChecker struct {
	known map[string]bool
}

func (f fakeEntityChecker) EntityExists(_ context.Context, id string) (bool, error) {
	return f.known[id], nil
}
