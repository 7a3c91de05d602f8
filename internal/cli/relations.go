package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/store"
)

// RelationsOptions holds flags for the relations command.
type RelationsOptions struct {
	*RootOptions
	Kind      string
	Direction string
}

// RelationsResult holds the edges incident to a node.
type RelationsResult struct {
	Node      string          `json:"node"`
	Relations []fact.Relation `json:"relations"`
	Skipped   []string        `json:"skipped,omitempty"`
}

// NewRelationsCommand creates the relations command.
func NewRelationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relations <uuid>",
		Short: "List edges incident to a node",
		Long: `List the relations touching a node, ordered by creation day.

The node may be an item UUID or an entity identifier. Edges with
undecodable evidence are reported on stderr and skipped.

Examples:
  soil relations soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f
  soil relations soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f --kind replies_to
  soil relations entity-alice --direction incoming`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by relation kind")
	cmd.Flags().StringVar(&opts.Direction, "direction", "both", "edge direction (outgoing|incoming|both)")

	return cmd
}

func runRelations(opts *RelationsOptions, node string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Kind != "" && !fact.Kind(opts.Kind).Valid() {
		msg := fmt.Sprintf("unknown relation kind %q", opts.Kind)
		formatter.Error(ErrCodeBadInput, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if !fact.Direction(opts.Direction).Valid() {
		msg := fmt.Sprintf("unknown direction %q", opts.Direction)
		formatter.Error(ErrCodeBadInput, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, err := openExisting(opts.RootOptions)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	rels, skipped, err := st.GetRelations(cmd.Context(), node, store.RelationQuery{
		Kind:      fact.Kind(opts.Kind),
		Direction: fact.Direction(opts.Direction),
	})
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "get relations", err)
	}

	result := RelationsResult{Node: node, Relations: rels}
	for _, rec := range skipped {
		result.Skipped = append(result.Skipped, rec.UUID)
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}

	for _, rel := range rels {
		writeRelationLine(formatter.Writer, rel)
	}
	fmt.Fprintf(formatter.Writer, "%d relation(s)\n", len(rels))
	reportSkipped(formatter, skipped)
	return nil
}
