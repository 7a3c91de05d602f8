package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RebuildResult holds the outcome of an index rebuild.
type RebuildResult struct {
	DedupEntries int64  `json:"dedup_entries"`
	Duration     string `json:"duration"`
}

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild derived indexes from the items table",
		Long: `Drop and reconstruct every derived structure from the items and
relations tables. Safe to run at any time; the source-of-truth tables
are never written.

Examples:
  soil rebuild`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(rootOpts, cmd)
		},
	}

	return cmd
}

func runRebuild(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	ctx := cmd.Context()

	start := time.Now()
	if err := st.RebuildIndexes(ctx); err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "rebuild indexes", err)
	}
	elapsed := time.Since(start)

	stats, err := st.Stats(ctx)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "stats after rebuild", err)
	}

	result := RebuildResult{
		DedupEntries: stats.DedupEntries,
		Duration:     elapsed.Round(time.Millisecond).String(),
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	fmt.Fprintf(formatter.Writer, "Rebuilt derived indexes in %s (%d dedup entries)\n",
		result.Duration, result.DedupEntries)
	return nil
}
