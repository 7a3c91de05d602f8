package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memogarden/soil/internal/store"
)

func TestTombstone_AppendsTombstone(t *testing.T) {
	path := newTestDB(t)
	var uuid string
	seedStore(t, path, func(ctx context.Context, st *store.Store) {
		uuid = seedNote(ctx, t, st, "obsolete")
	})

	out, _, err := runCLI(t, "tombstone", uuid, "--db", path, "--reason", "imported twice")
	require.NoError(t, err)
	assert.Contains(t, out, "Tombstoned "+uuid)

	// The item now resolves to its tombstone.
	resolved, _, err := runCLI(t, "resolve", uuid, "--db", path)
	require.NoError(t, err)
	tombUUID := strings.TrimSpace(resolved)
	assert.NotEqual(t, uuid, tombUUID)
	assert.Contains(t, out, tombUUID)

	// And the tombstone payload records the reason.
	got, _, err := runCLI(t, "get", tombUUID, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, got, "fidelity:      tombstone")
	assert.Contains(t, got, "imported twice")
}

func TestTombstone_JSON(t *testing.T) {
	path := newTestDB(t)
	var uuid string
	seedStore(t, path, func(ctx context.Context, st *store.Store) {
		uuid = seedNote(ctx, t, st, "gone soon")
	})

	out, _, err := runCLI(t, "tombstone", uuid, "--db", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   TombstoneResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, uuid, resp.Data.UUID)
	assert.NotEmpty(t, resp.Data.Tombstone)
	assert.NotEqual(t, uuid, resp.Data.Tombstone)
}

func TestTombstone_NotFound(t *testing.T) {
	path := newTestDB(t)
	seedStore(t, path, func(ctx context.Context, st *store.Store) {})

	out, _, err := runCLI(t, "tombstone", "soil-test-999999", "--db", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestTombstone_RefusesSupersededItem(t *testing.T) {
	path := newTestDB(t)
	old, _ := seedChain(t, path)

	out, _, err := runCLI(t, "tombstone", old, "--db", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}
