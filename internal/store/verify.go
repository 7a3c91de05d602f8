package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/memogarden/soil/internal/fact"
)

// VerifyIntegrity recomputes the integrity hash of every non-tombstone
// item from its stored content and compares with the stored digest.
// Mismatches signal corruption; they are reported per-record and never
// auto-corrected. Tombstones are skipped: their payload describes a
// deletion, not source content.
func (s *Store) VerifyIntegrity(ctx context.Context) ([]IntegrityMismatchError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, item_type, canonical_at, integrity_hash, data
		FROM items
		WHERE fidelity <> 'tombstone'
		ORDER BY realized_at ASC, uuid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("verify integrity: %w", err)
	}
	defer rows.Close()

	findings := []IntegrityMismatchError{}
	for rows.Next() {
		var (
			uuid        string
			itemType    string
			canonicalAt sql.NullInt64
			stored      string
			data        string
		)
		if err := rows.Scan(&uuid, &itemType, &canonicalAt, &stored, &data); err != nil {
			return nil, fmt.Errorf("verify integrity: scan: %w", err)
		}

		payload, err := unmarshalData(data)
		if err != nil {
			s.logger.Warn("undecodable payload during verify", "uuid", uuid, "error", err)
			findings = append(findings, IntegrityMismatchError{UUID: uuid, Stored: stored})
			continue
		}

		var canonical *time.Time
		if canonicalAt.Valid {
			t := nanosToTime(canonicalAt.Int64)
			canonical = &t
		}

		computed, err := fact.ItemIntegrityHash(itemType, canonical, payload)
		if err != nil {
			findings = append(findings, IntegrityMismatchError{UUID: uuid, Stored: stored})
			continue
		}
		if computed != stored {
			findings = append(findings, IntegrityMismatchError{UUID: uuid, Stored: stored, Computed: computed})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("verify integrity: iterate: %w", err)
	}

	return findings, nil
}
