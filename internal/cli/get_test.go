package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/store"
)

func TestGet_Text(t *testing.T) {
	path := newTestDB(t)
	var uuid string
	seedStore(t, path, func(ctx context.Context, st *store.Store) {
		uuid = seedNote(ctx, t, st, "remember the milk")
	})

	out, _, err := runCLI(t, "get", uuid, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "uuid:          "+uuid)
	assert.Contains(t, out, "type:          Note")
	assert.Contains(t, out, "fidelity:      full")
	assert.Contains(t, out, "remember the milk")
}

func TestGet_JSON(t *testing.T) {
	path := newTestDB(t)
	var uuid string
	seedStore(t, path, func(ctx context.Context, st *store.Store) {
		uuid = seedNote(ctx, t, st, "json roundtrip")
	})

	out, _, err := runCLI(t, "get", uuid, "--db", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   fact.Item `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uuid, resp.Data.UUID)
	assert.Equal(t, "Note", resp.Data.Type)
	assert.Equal(t, "json roundtrip", resp.Data.Data["content"])
}

func TestGet_NotFound(t *testing.T) {
	path := newTestDB(t)
	seedStore(t, path, func(ctx context.Context, st *store.Store) {})

	out, _, err := runCLI(t, "get", "soil-test-999999", "--db", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
	assert.Contains(t, out, "soil-test-999999")
}

func TestGet_MissingDatabase(t *testing.T) {
	path := newTestDB(t) // never created

	out, _, err := runCLI(t, "get", "soil-test-000001", "--db", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database not found")
	assert.Contains(t, out, "soil init")
}

func TestGet_ReturnsSupersededItems(t *testing.T) {
	path := newTestDB(t)
	var old string
	seedStore(t, path, func(ctx context.Context, st *store.Store) {
		old = seedNote(ctx, t, st, "v1")
		head := seedNote(ctx, t, st, "v2")
		require.NoError(t, st.Supersede(ctx, old, head))
	})

	out, _, err := runCLI(t, "get", old, "--db", path)
	require.NoError(t, err, "superseded items stay addressable")
	assert.Contains(t, out, "superseded_by: soil-test-000002")
}
