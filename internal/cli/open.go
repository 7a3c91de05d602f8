package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/memogarden/soil/internal/log"
	"github.com/memogarden/soil/internal/store"
)

// cliLogger builds the logger handed to the store. Warnings (skipped
// records, chain problems) always reach stderr; lifecycle and operation
// logs only in verbose mode.
func cliLogger(opts *RootOptions) log.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level}).With("component", "store")
}

// openExisting opens the database for commands that read or append.
// Opening a path that does not exist would silently create an empty
// database, so anything except init refuses and points at init instead.
func openExisting(opts *RootOptions) (*store.Store, error) {
	if opts.DB != ":memory:" {
		if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("database not found: %s (run 'soil init' first)", opts.DB))
		}
	}

	st, err := store.Open(opts.DB, store.WithLogger(cliLogger(opts)))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening database %s", opts.DB), err)
	}
	return st, nil
}

// openCreating opens the database for init, creating the parent
// directory and the file as needed.
func openCreating(opts *RootOptions) (*store.Store, error) {
	if opts.DB != ":memory:" {
		if dir := filepath.Dir(opts.DB); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, WrapExitError(ExitCommandError, fmt.Sprintf("creating directory %s", dir), err)
			}
		}
	}

	st, err := store.Open(opts.DB, store.WithLogger(cliLogger(opts)))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening database %s", opts.DB), err)
	}
	return st, nil
}
