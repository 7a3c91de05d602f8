package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memogarden/soil/internal/store"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <uuid>",
		Short: "Fetch a single item",
		Long: `Fetch one item by UUID, superseded or not.

Exit codes:
  0 - Item found
  1 - Item not found
  2 - Command error (database not found, etc.)

Examples:
  soil get soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f
  soil get soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runGet(opts *RootOptions, uuid string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	item, err := st.GetItem(cmd.Context(), uuid)
	if err != nil {
		if store.IsNotFound(err) {
			formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("item %s not found", uuid))
		}
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "get item", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(item)
	}
	writeItemText(formatter.Writer, item)
	return nil
}
