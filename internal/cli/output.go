package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/memogarden/soil/internal/fact"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (item not found, verification findings, etc.)
	ExitCommandError = 2 // Command error (invalid flags, database not found, etc.)
)

// Error codes used in JSON error responses.
const (
	ErrCodeOpenFailed = "E001" // database could not be opened
	ErrCodeNotFound   = "E002" // item or relation not found
	ErrCodeBadInput   = "E003" // invalid flag or argument value
	ErrCodeStore      = "E004" // store operation failed
	ErrCodeCorruption = "E005" // integrity or index findings
	ErrCodeRejected   = "E006" // write rejected (duplicate, already superseded, ...)
)

// ExitError represents an error with a specific exit code.
// Commands report the failure through their OutputFormatter first and
// return an ExitError so main exits with the right code without printing
// the message twice.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess (0) for nil and ExitFailure (1) if the error is
// not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsExitError reports whether err carries an explicit exit code, meaning
// the command already printed its own diagnostics.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for diagnostic output (defaults to Writer)
	Verbose   bool
}

// newFormatter builds the formatter for a command invocation, wiring
// stdout and stderr from the cobra command.
func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response envelope for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E002", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// JSON emits data inside the success envelope, indented for readability.
func (f *OutputFormatter) JSON(data interface{}) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status: "ok",
		Data:   data,
	})
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Goes to ErrWriter so JSON output on stdout stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// writeItemText renders one item in the multi-line text format shared by
// get and resolve --chain.
func writeItemText(w io.Writer, item fact.Item) {
	fmt.Fprintf(w, "uuid:          %s\n", item.UUID)
	fmt.Fprintf(w, "type:          %s\n", item.Type)
	fmt.Fprintf(w, "fidelity:      %s\n", item.Fidelity)
	fmt.Fprintf(w, "realized_at:   %s\n", item.RealizedAt.Format(time.RFC3339Nano))
	if item.CanonicalAt != nil {
		fmt.Fprintf(w, "canonical_at:  %s\n", item.CanonicalAt.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(w, "integrity:     %s\n", item.IntegrityHash)
	if item.DedupKey != "" {
		fmt.Fprintf(w, "dedup_key:     %s\n", item.DedupKey)
	}
	if item.SupersededBy != "" {
		fmt.Fprintf(w, "superseded_by: %s\n", item.SupersededBy)
		if item.SupersededAt != nil {
			fmt.Fprintf(w, "superseded_at: %s\n", item.SupersededAt.Format(time.RFC3339Nano))
		}
	}
	fmt.Fprintf(w, "data:          %s\n", compactJSON(item.Data))
	if len(item.Metadata) > 0 {
		fmt.Fprintf(w, "metadata:      %s\n", compactJSON(item.Metadata))
	}
}

// writeItemLine renders one item as a single listing row.
func writeItemLine(w io.Writer, item fact.Item) {
	live := "live"
	if !item.Live() {
		live = "superseded"
	}
	fmt.Fprintf(w, "%s  %-12s %-10s %-10s %s\n",
		item.UUID, item.Type, item.Fidelity, live,
		item.RealizedAt.Format(time.RFC3339))
}

// writeRelationLine renders one relation as a single listing row.
func writeRelationLine(w io.Writer, rel fact.Relation) {
	line := fmt.Sprintf("%s  %-13s %s -> %s", rel.UUID, rel.Kind, rel.Source, rel.Target)
	if rel.Evidence != nil {
		line += fmt.Sprintf("  [%s/%s/%s]", rel.Evidence.Source, rel.Evidence.Method, rel.Evidence.Confidence)
	}
	fmt.Fprintln(w, line)
}

// writeCountMap renders a count map with keys sorted for stable output.
func writeCountMap(w io.Writer, label string, counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "%s:\n", label)
	if len(keys) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, k := range keys {
		fmt.Fprintf(w, "  %-14s %d\n", k, counts[k])
	}
}

// compactJSON renders a decoded payload as one-line JSON for text output.
// Encoding a payload that round-tripped through the store cannot fail.
func compactJSON(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
