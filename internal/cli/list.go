package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Type     string
	Fidelity string
	Limit    int
	Offset   int
}

// ListResult holds the listed items plus any rows skipped as undecodable.
type ListResult struct {
	Items   []fact.Item `json:"items"`
	Skipped []string    `json:"skipped,omitempty"` // UUIDs of undecodable rows
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in insertion order",
		Long: `List items, superseded ones included, ordered by realized_at.

Undecodable rows are skipped and reported on stderr, never aborting
the listing.

Examples:
  soil list
  soil list --type Email --limit 20
  soil list --fidelity tombstone`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "filter by item type")
	cmd.Flags().StringVar(&opts.Fidelity, "fidelity", "", "filter by fidelity (full|summary|stub|tombstone)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum items to return (0 = no limit)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "items to skip before returning")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Fidelity != "" && !fact.Fidelity(opts.Fidelity).Valid() {
		msg := fmt.Sprintf("unknown fidelity %q", opts.Fidelity)
		formatter.Error(ErrCodeBadInput, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, err := openExisting(opts.RootOptions)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	items, skipped, err := st.ListItems(cmd.Context(), store.ListFilter{
		Type:     opts.Type,
		Fidelity: fact.Fidelity(opts.Fidelity),
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "list items", err)
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
	fmt.Fprintf(formatter.Writer, "%d item(s)\n", len(items))
	reportSkipped(formatter, skipped)
	return nil
}

// reportSkipped warns about rows a bulk scan could not decode or
// resolve. Goes to stderr so piped stdout stays clean.
func reportSkipped(f *OutputFormatter, skipped []store.RecordError) {
	if len(skipped) == 0 {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, "warning: %d record(s) skipped\n", len(skipped))
	for _, rec := range skipped {
		fmt.Fprintf(w, "  %v\n", rec)
	}
}
