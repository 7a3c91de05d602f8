package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// LiveOptions holds flags for the live command.
type LiveOptions struct {
	*RootOptions
	Type string
}

// NewLiveCommand creates the live command.
func NewLiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "live",
		Short: "List live heads for a type",
		Long: `List the live view of a type: every supersession chain contributes
its head once, tombstoned heads are omitted.

Broken chains (cycles, dangling pointers) are reported on stderr and
skipped.

Examples:
  soil live --type Note
  soil live --type Email --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "item type to list (required)")
	cmd.MarkFlagRequired("type")

	return cmd
}

func runLive(opts *LiveOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts.RootOptions)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	items, skipped, err := st.LiveItemsByType(cmd.Context(), opts.Type)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "live items", err)
	}

	result := ListResult{Items: items}
	for _, rec := range skipped {
		result.Skipped = append(result.Skipped, rec.UUID)
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}

	for _, item := range items {
		writeItemLine(formatter.Writer, item)
	}
	fmt.Fprintf(formatter.Writer, "%d live item(s) of type %s\n", len(items), opts.Type)
	reportSkipped(formatter, skipped)
	return nil
}
