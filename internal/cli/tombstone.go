package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memogarden/soil/internal/store"
)

// TombstoneOptions holds flags for the tombstone command.
type TombstoneOptions struct {
	*RootOptions
	Reason string
}

// TombstoneResult holds the outcome of a logical deletion.
type TombstoneResult struct {
	UUID      string `json:"uuid"`      // the item that was tombstoned
	Tombstone string `json:"tombstone"` // the appended tombstone successor
}

// NewTombstoneCommand creates the tombstone command.
func NewTombstoneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TombstoneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tombstone <uuid>",
		Short: "Logically delete an item",
		Long: `Append a tombstone successor to an item. The item row stays in the
database; the live view stops showing it.

Already superseded items are refused: tombstone the live head instead
(soil resolve <uuid> finds it).

Exit codes:
  0 - Tombstone appended
  1 - Item not found or already superseded
  2 - Command error

Examples:
  soil tombstone soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f
  soil tombstone soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f --reason "imported twice"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTombstone(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason recorded in the tombstone payload")

	return cmd
}

func runTombstone(opts *TombstoneOptions, uuid string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts.RootOptions)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	tomb, err := st.TombstoneItem(cmd.Context(), uuid, opts.Reason)
	if err != nil {
		switch {
		case store.IsNotFound(err):
			formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("item %s not found", uuid))
		case store.IsAlreadySuperseded(err):
			formatter.Error(ErrCodeRejected, err.Error(), nil)
			return WrapExitError(ExitFailure, "tombstone refused", err)
		default:
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "tombstone", err)
		}
	}

	result := TombstoneResult{UUID: uuid, Tombstone: tomb.UUID}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	fmt.Fprintf(formatter.Writer, "Tombstoned %s (tombstone %s)\n", result.UUID, result.Tombstone)
	return nil
}
