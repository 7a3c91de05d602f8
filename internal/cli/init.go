package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// InitResult holds the outcome of database initialization.
type InitResult struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schema_version"`
	Created       bool   `json:"created"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the database file and apply schema migrations.

Running init on an existing database applies any pending migrations and
is otherwise a no-op.

Examples:
  soil init
  soil init --db ./facts.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}

	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	existed := false
	if opts.DB != ":memory:" {
		if _, err := os.Stat(opts.DB); err == nil {
			existed = true
		}
	}

	st, err := openCreating(opts)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	version, err := st.SchemaVersion(cmd.Context())
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "reading schema version", err)
	}

	result := InitResult{Path: opts.DB, SchemaVersion: version, Created: !existed}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	if result.Created {
		fmt.Fprintf(formatter.Writer, "Initialized database at %s (schema version %d)\n", result.Path, result.SchemaVersion)
	} else {
		fmt.Fprintf(formatter.Writer, "Database at %s is up to date (schema version %d)\n", result.Path, result.SchemaVersion)
	}
	return nil
}
