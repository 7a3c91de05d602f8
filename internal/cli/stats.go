package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long: `Show item counts by type and fidelity, relation counts by kind,
and the size of the deduplication index.

Examples:
  soil stats
  soil stats --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}

	return cmd
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	stats, err := st.Stats(cmd.Context())
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "stats", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(stats)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "schema version: %d\n", stats.SchemaVersion)
	fmt.Fprintf(w, "items:          %d (%d live)\n", stats.Items, stats.LiveItems)
	writeCountMap(w, "items by type", stats.ItemsByType)
	writeCountMap(w, "items by fidelity", stats.ItemsByFidelity)
	fmt.Fprintf(w, "relations:      %d\n", stats.Relations)
	writeCountMap(w, "relations by kind", stats.RelationsByKind)
	fmt.Fprintf(w, "dedup entries:  %d\n", stats.DedupEntries)
	return nil
}
