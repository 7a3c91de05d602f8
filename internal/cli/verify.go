package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// VerifyFinding is one defect reported by the verify command.
type VerifyFinding struct {
	Check   string `json:"check"`   // "integrity" or "index"
	Subject string `json:"subject"` // item UUID or index name
	Detail  string `json:"detail"`
}

// VerifyResult holds the outcome of a full verification pass.
type VerifyResult struct {
	Clean    bool            `json:"clean"`
	Findings []VerifyFinding `json:"findings"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check integrity hashes and derived indexes",
		Long: `Recompute every live item's integrity hash against its stored value
and cross-check the derived structures (dedup index, mirrored
supersedes edges) against the source-of-truth tables.

Exit codes:
  0 - No findings
  1 - Findings reported
  2 - Command error

'soil rebuild' repairs index findings. Integrity findings mean the
payload or the stored hash changed outside the API and need manual
investigation.

Examples:
  soil verify
  soil verify --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExisting(opts)
	if err != nil {
		formatter.Error(ErrCodeOpenFailed, err.Error(), nil)
		return err
	}
	defer st.Close()

	ctx := cmd.Context()

	mismatches, err := st.VerifyIntegrity(ctx)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "integrity scan", err)
	}
	inconsistencies, err := st.CheckIndexes(ctx)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "index check", err)
	}

	result := VerifyResult{Findings: []VerifyFinding{}}
	for _, m := range mismatches {
		result.Findings = append(result.Findings, VerifyFinding{
			Check:   "integrity",
			Subject: m.UUID,
			Detail:  m.Error(),
		})
	}
	for _, inc := range inconsistencies {
		result.Findings = append(result.Findings, VerifyFinding{
			Check:   "index",
			Subject: inc.Index,
			Detail:  inc.Detail,
		})
	}
	result.Clean = len(result.Findings) == 0

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Clean {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeCorruption,
				Message: fmt.Sprintf("%d finding(s)", len(result.Findings)),
			}
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		if !result.Clean {
			return NewExitError(ExitFailure, fmt.Sprintf("%d finding(s)", len(result.Findings)))
		}
		return nil
	}

	w := formatter.Writer
	if result.Clean {
		fmt.Fprintln(w, "✓ No findings")
		return nil
	}
	for _, f := range result.Findings {
		fmt.Fprintf(w, "✗ [%s] %s: %s\n", f.Check, f.Subject, f.Detail)
	}
	fmt.Fprintf(w, "%d finding(s)\n", len(result.Findings))
	return NewExitError(ExitFailure, fmt.Sprintf("%d finding(s)", len(result.Findings)))
}
