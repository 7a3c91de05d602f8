package cli

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memogarden/soil/internal/log"
	"github.com/memogarden/soil/internal/store"
	"github.com/memogarden/soil/internal/testutil"
)

// seedEpoch predates any test run so CLI writes with the system clock
// stay monotonic over seeded rows.
var seedEpoch = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// newTestDB returns a database path inside a per-test temp directory.
// The file does not exist until seeded or initialized.
func newTestDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "soil.db")
}

// seedStore opens the database with a deterministic clock and ID
// sequence (soil-test-000001, ...) and hands it to seed for populating.
func seedStore(t *testing.T, path string, seed func(ctx context.Context, st *store.Store)) {
	t.Helper()

	st, err := store.Open(path,
		store.WithClock(testutil.NewFixedClock(seedEpoch, time.Second)),
		store.WithIDGenerator(testutil.NewSequenceGenerator("")),
		store.WithLogger(log.NewNop()),
	)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	seed(context.Background(), st)
}

// tamperDB opens the database file and hands the raw connection to fn,
// for tests that corrupt state behind the store's back. The store keeps
// a single connection, so a PRAGMA issued by fn holds for its later
// statements.
func tamperDB(t *testing.T, path string, fn func(db *sql.DB)) {
	t.Helper()

	st, err := store.Open(path, store.WithLogger(log.NewNop()))
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	fn(st.DB())
}

// runCLI executes the root command with the given arguments and returns
// captured stdout, stderr and the command error.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seedNote creates one full note and returns its UUID.
func seedNote(ctx context.Context, t *testing.T, st *store.Store, content string) string {
	t.Helper()

	item, err := st.CreateItem(ctx, store.NewItem{
		Type: "Note",
		Data: map[string]any{"content": content},
	})
	require.NoError(t, err)
	return item.UUID
}
