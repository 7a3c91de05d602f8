// Package schema validates Item data payloads against per-type CUE
// definitions.
//
// Types with a definition in payloads.cue get their shape checked at create
// time; unknown types pass unvalidated (payloads are free-form by design
// unless a schema is registered). Definitions are closed, so unexpected
// fields are rejected - provider extras belong in metadata.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/memogarden/soil/internal/fact"
)

//go:embed payloads.cue
var payloadsCUE string

// payloadDefs maps Item types to their CUE definition paths.
var payloadDefs = map[string]string{
	fact.TypeEmail:       "#Email",
	fact.TypeNote:        "#Note",
	fact.TypeMessage:     "#Message",
	fact.TypeToolCall:    "#ToolCall",
	fact.TypeEntityDelta: "#EntityDelta",
	fact.TypeSystemEvent: "#SystemEvent",
}

// Validator checks data payloads against the embedded type definitions.
// Safe for concurrent use after construction.
type Validator struct {
	ctx  *cue.Context
	defs map[string]cue.Value
}

// NewValidator compiles the embedded payload definitions.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	root := ctx.CompileString(payloadsCUE, cue.Filename("payloads.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile payload definitions: %w", err)
	}

	defs := make(map[string]cue.Value, len(payloadDefs))
	for itemType, path := range payloadDefs {
		def := root.LookupPath(cue.ParsePath(path))
		if !def.Exists() {
			return nil, fmt.Errorf("payload definition %s missing for type %s", path, itemType)
		}
		defs[itemType] = def
	}

	return &Validator{ctx: ctx, defs: defs}, nil
}

// HasSchema reports whether itemType has a registered payload definition.
func (v *Validator) HasSchema(itemType string) bool {
	_, ok := v.defs[itemType]
	return ok
}

// Validate checks data against the definition registered for itemType.
// Unknown types pass. Returns a *ValidationError describing the first
// offending field on mismatch.
func (v *Validator) Validate(itemType string, data map[string]any) error {
	def, ok := v.defs[itemType]
	if !ok {
		return nil
	}
	if data == nil {
		data = map[string]any{}
	}

	// JSON is a subset of CUE, so the canonical serialization doubles as a
	// CUE expression. This also rejects floats/nulls before CUE sees them.
	encoded, err := fact.MarshalCanonical(data)
	if err != nil {
		return &ValidationError{
			ItemType: itemType,
			Message:  err.Error(),
		}
	}

	dataVal := v.ctx.CompileBytes(encoded, cue.Filename(itemType+".json"))
	if err := dataVal.Err(); err != nil {
		return newValidationError(itemType, err)
	}

	unified := def.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return newValidationError(itemType, err)
	}

	return nil
}

// ValidationError reports a payload that does not match its type's schema.
type ValidationError struct {
	ItemType string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("payload for %s: field %s: %s", e.ItemType, e.Field, e.Message)
	}
	return fmt.Sprintf("payload for %s: %s", e.ItemType, e.Message)
}

// IsValidationError reports whether err is a payload validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// newValidationError extracts the field path from a CUE error.
func newValidationError(itemType string, err error) *ValidationError {
	ve := &ValidationError{ItemType: itemType, Message: err.Error()}

	errs := cueerrors.Errors(err)
	if len(errs) > 0 {
		first := errs[0]
		ve.Message = first.Error()
		if path := first.Path(); len(path) > 0 {
			ve.Field = strings.Join(path, ".")
		}
	}

	return ve
}

// NormalizeMessageID normalizes an RFC 5322 Message-ID for storage and
// dedup lookup: surrounding whitespace is trimmed and the result always
// carries angle brackets. Empty input stays empty.
func NormalizeMessageID(messageID string) string {
	stripped := strings.TrimSpace(messageID)
	if strings.HasPrefix(stripped, "<") && strings.HasSuffix(stripped, ">") && len(stripped) >= 2 {
		stripped = stripped[1 : len(stripped)-1]
	}
	if stripped == "" {
		return ""
	}
	return "<" + stripped + ">"
}
