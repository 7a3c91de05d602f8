package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memogarden/soil/internal/fact"
	"github.com/memogarden/soil/internal/store"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Chain bool
}

// ResolveResult holds a resolved live pointer.
type ResolveResult struct {
	UUID string `json:"uuid"`
	Live string `json:"live"`
}

// ChainResult holds a full supersession chain, oldest first.
type ChainResult struct {
	UUID  string      `json:"uuid"`
	Chain []fact.Item `json:"chain"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <uuid>",
		Short: "Follow supersession to the live item",
		Long: `Follow superseded_by pointers from the given item to the live head.

With --chain the whole chain is printed oldest first, the merged-in
lineage of the head included.

Exit codes:
  0 - Resolved
  1 - Item not found or chain broken (cycle, dangling pointer, too deep)
  2 - Command error

Examples:
  soil resolve soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f
  soil resolve soil-0190f6a2-7b44-7cc1-9f6e-3a1b2c3d4e5f --chain`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Chain, "chain", false, "print the full supersession chain")

	return cmd
}

func runResolve(opts *ResolveOptions, uuid string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts.RootOptions)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	if opts.Chain {
		return resolveChain(opts, st, uuid, formatter, cmd)
	}

	live, err := st.ResolveLive(cmd.Context(), uuid)
	if err != nil {
		return reportResolveError(formatter, uuid, err)
	}

	if opts.Format == "json" {
		return formatter.JSON(ResolveResult{UUID: uuid, Live: live})
	}
	fmt.Fprintln(formatter.Writer, live)
	return nil
}

func resolveChain(opts *ResolveOptions, st *store.Store, uuid string, formatter *OutputFormatter, cmd *cobra.Command) error {
	chain, err := st.Chain(cmd.Context(), uuid)
	if err != nil {
		return reportResolveError(formatter, uuid, err)
	}

	if opts.Format == "json" {
		return formatter.JSON(ChainResult{UUID: uuid, Chain: chain})
	}
	for i, item := range chain {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		writeItemText(formatter.Writer, item)
	}
	fmt.Fprintf(formatter.Writer, "%d item(s) in chain\n", len(chain))
	return nil
}

// reportResolveError maps chain-walk failures to their error codes.
// Cycles and dangling pointers are store corruption, not bad input.
func reportResolveError(formatter *OutputFormatter, uuid string, err error) error {
	switch {
	case store.IsNotFound(err):
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("item %s not found", uuid))
	case store.IsSupersessionCycle(err), store.IsDanglingSupersession(err), store.IsChainTooDeep(err):
		formatter.Error(ErrCodeCorruption, err.Error(), nil)
		return WrapExitError(ExitFailure, "broken supersession chain", err)
	default:
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "resolve", err)
	}
}
