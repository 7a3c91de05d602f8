package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/memogarden/soil/internal/fact"
)

// NotFoundError reports a UUID with no corresponding item row.
type NotFoundError struct {
	UUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item not found: %s", e.UUID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// DuplicateItemError reports a create rejected by deduplication.
// Key is the dedup key (or the integrity hash for hash dedup); Existing
// is the UUID already holding it.
type DuplicateItemError struct {
	ItemType string
	Key      string
	Existing string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("duplicate %s item for key %q: already stored as %s", e.ItemType, e.Key, e.Existing)
}

// IsDuplicateItem reports whether err is a DuplicateItemError.
func IsDuplicateItem(err error) bool {
	var e *DuplicateItemError
	return errors.As(err, &e)
}

// AlreadySupersededError reports an attempt to re-point an item that is
// already superseded by a different successor. The pointer is set exactly
// once; repeating the same successor is a no-op, not this error.
type AlreadySupersededError struct {
	UUID      string
	Existing  string
	Attempted string
}

func (e *AlreadySupersededError) Error() string {
	return fmt.Sprintf("item %s already superseded by %s (attempted %s)", e.UUID, e.Existing, e.Attempted)
}

// IsAlreadySuperseded reports whether err is an AlreadySupersededError.
func IsAlreadySuperseded(err error) bool {
	var e *AlreadySupersededError
	return errors.As(err, &e)
}

// SelfSupersessionError reports an item offered as its own successor.
type SelfSupersessionError struct {
	UUID string
}

func (e *SelfSupersessionError) Error() string {
	return fmt.Sprintf("item %s cannot supersede itself", e.UUID)
}

// IsSelfSupersession reports whether err is a SelfSupersessionError.
func IsSelfSupersession(err error) bool {
	var e *SelfSupersessionError
	return errors.As(err, &e)
}

// FidelityRegressionError reports a successor whose fidelity is higher
// than the item it replaces. Fidelity may only fall along a chain, with
// one exception: a full successor may replace a degraded item.
type FidelityRegressionError struct {
	UUID string
	From fact.Fidelity
	To   fact.Fidelity
}

func (e *FidelityRegressionError) Error() string {
	return fmt.Sprintf("item %s: fidelity may not rise from %s to %s", e.UUID, e.From, e.To)
}

// IsFidelityRegression reports whether err is a FidelityRegressionError.
func IsFidelityRegression(err error) bool {
	var e *FidelityRegressionError
	return errors.As(err, &e)
}

// SupersessionCycleError reports a supersession chain that revisits a
// UUID. Chain holds the walked UUIDs ending with the repeated one.
type SupersessionCycleError struct {
	Start string
	Chain []string
}

func (e *SupersessionCycleError) Error() string {
	return fmt.Sprintf("supersession cycle from %s: %s", e.Start, strings.Join(e.Chain, " -> "))
}

// IsSupersessionCycle reports whether err is a SupersessionCycleError.
func IsSupersessionCycle(err error) bool {
	var e *SupersessionCycleError
	return errors.As(err, &e)
}

// DanglingSupersessionError reports a superseded_by pointer whose target
// row does not exist.
type DanglingSupersessionError struct {
	From    string
	Missing string
}

func (e *DanglingSupersessionError) Error() string {
	return fmt.Sprintf("item %s superseded by %s which does not exist", e.From, e.Missing)
}

// IsDanglingSupersession reports whether err is a DanglingSupersessionError.
func IsDanglingSupersession(err error) bool {
	var e *DanglingSupersessionError
	return errors.As(err, &e)
}

// ChainTooDeepError reports a supersession walk that exceeded the
// configured depth limit before reaching a live item.
type ChainTooDeepError struct {
	Start string
	Depth int
	Limit int
}

func (e *ChainTooDeepError) Error() string {
	return fmt.Sprintf("supersession chain from %s exceeds depth limit %d", e.Start, e.Limit)
}

// IsChainTooDeep reports whether err is a ChainTooDeepError.
func IsChainTooDeep(err error) bool {
	var e *ChainTooDeepError
	return errors.As(err, &e)
}

// IntegrityMismatchError reports an item whose stored integrity hash no
// longer matches its content. Computed is empty when the stored payload
// could not be decoded at all.
type IntegrityMismatchError struct {
	UUID     string
	Stored   string
	Computed string
}

func (e IntegrityMismatchError) Error() string {
	if e.Computed == "" {
		return fmt.Sprintf("integrity mismatch for %s: stored %s, payload undecodable", e.UUID, e.Stored)
	}
	return fmt.Sprintf("integrity mismatch for %s: stored %s, computed %s", e.UUID, e.Stored, e.Computed)
}

// IndexInconsistencyError reports a derived structure that disagrees with
// the source-of-truth tables. RebuildIndexes is the recovery path.
type IndexInconsistencyError struct {
	Index  string
	Detail string
}

func (e IndexInconsistencyError) Error() string {
	return fmt.Sprintf("index %s inconsistent: %s", e.Index, e.Detail)
}

// RecordError pairs a row that could not be read or resolved with the
// reason. Bulk scans report these and continue; they never abort a scan.
type RecordError struct {
	UUID string
	Err  error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.UUID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }
