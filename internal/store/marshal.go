package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/memogarden/soil/internal/fact"
)

// marshalData converts an item payload to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical content stores identically.
func marshalData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	encoded, err := fact.MarshalCanonical(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(encoded), nil
}

// marshalMetadata converts metadata to canonical JSON TEXT.
// Empty metadata is stored as NULL rather than "{}" so absence survives
// round-trips.
func marshalMetadata(meta map[string]any) (*string, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	encoded, err := fact.MarshalCanonical(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	s := string(encoded)
	return &s, nil
}

// marshalEvidence converts relation evidence to canonical JSON TEXT, or
// NULL when absent. Empty fields are omitted, not nulled.
func marshalEvidence(ev *fact.Evidence) (*string, error) {
	if ev == nil {
		return nil, nil
	}
	m := map[string]any{}
	if ev.Source != "" {
		m["source"] = ev.Source
	}
	if ev.Method != "" {
		m["method"] = ev.Method
	}
	if ev.Confidence != "" {
		m["confidence"] = ev.Confidence
	}
	encoded, err := fact.MarshalCanonical(m)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	s := string(encoded)
	return &s, nil
}

// unmarshalData parses canonical JSON TEXT to an item payload.
// Large integers survive via json.Number to avoid float64 precision loss
// for values > 2^53.
func unmarshalData(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	obj, err := fact.UnmarshalPayload([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return obj, nil
}

// unmarshalMetadata parses nullable JSON TEXT to metadata.
// NULL and empty map back to nil.
func unmarshalMetadata(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" || s.String == "{}" {
		return nil, nil
	}
	obj, err := fact.UnmarshalPayload([]byte(s.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return obj, nil
}

// unmarshalEvidence parses nullable JSON TEXT to relation evidence.
func unmarshalEvidence(s sql.NullString) (*fact.Evidence, error) {
	if !s.Valid || s.String == "" || s.String == "{}" {
		return nil, nil
	}
	obj, err := fact.UnmarshalPayload([]byte(s.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	ev := &fact.Evidence{}
	if v, ok := obj["source"].(string); ok {
		ev.Source = v
	}
	if v, ok := obj["method"].(string); ok {
		ev.Method = v
	}
	if v, ok := obj["confidence"].(string); ok {
		ev.Confidence = v
	}
	return ev, nil
}

// nanosToTime converts a stored unix-nanosecond column to UTC time.
func nanosToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// nanosOrNull converts an optional time to a nullable unix-nanosecond
// parameter.
func nanosOrNull(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UnixNano()
	return &n
}

// nullableString converts "" to NULL for write-once optional columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
