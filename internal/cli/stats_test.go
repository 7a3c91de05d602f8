package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memogarden/soil/internal/store"
)

func TestStats_Text(t *testing.T) {
	path := newTestDB(t)
	seedMixedItems(t, path)

	out, _, err := runCLI(t, "stats", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version:")
	assert.Contains(t, out, "items:          3 (3 live)")
	assert.Contains(t, out, "items by type")
	assert.Contains(t, out, "Note")
	assert.Contains(t, out, "Email")
	assert.Contains(t, out, "dedup entries:  0")
}

func TestStats_JSON(t *testing.T) {
	path := newTestDB(t)
	seedStore(t, path, func(ctx context.Context, st *store.Store) {
		old := seedNote(ctx, t, st, "v1")
		head := seedNote(ctx, t, st, "v2")
		require.NoError(t, st.Supersede(ctx, old, head))
		_, err := st.CreateItem(ctx, store.NewItem{
			Type:     "Email",
			Data:     map[string]any{"rfc_message_id": "<hi@example.com>"},
			DedupKey: "<hi@example.com>",
		})
		require.NoError(t, err)
	})

	out, _, err := runCLI(t, "stats", "--db", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   store.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	st := resp.Data
	assert.Equal(t, int64(3), st.Items)
	assert.Equal(t, int64(2), st.LiveItems)
	assert.Equal(t, int64(2), st.ItemsByType["Note"])
	assert.Equal(t, int64(1), st.ItemsByType["Email"])
	assert.Equal(t, int64(1), st.Relations, "supersede writes its mirror edge")
	assert.Equal(t, int64(1), st.RelationsByKind["supersedes"])
	assert.Equal(t, int64(1), st.DedupEntries)
}

func TestStats_EmptyDatabase(t *testing.T) {
	path := newTestDB(t)
	seedStore(t, path, func(ctx context.Context, st *store.Store) {})

	out, _, err := runCLI(t, "stats", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "items:          0 (0 live)")
	assert.Contains(t, out, "(none)")
}
