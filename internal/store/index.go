package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Everything in this file manages derived state: structures rebuildable
// from the items and relations tables without loss. The source-of-truth
// schema (schema.sql) knows nothing about them.

// managedIndexes lists every secondary index the store maintains. One
// definition shared by Open (incremental creation) and RebuildIndexes so
// the two paths can never diverge. Constraint indexes (primary keys, the
// relation identity triple) are not managed here; they belong to the
// source schema.
var managedIndexes = []struct {
	name string
	ddl  string
}{
	{"idx_items_type", "CREATE INDEX IF NOT EXISTS idx_items_type ON items(item_type)"},
	{"idx_items_realized_at", "CREATE INDEX IF NOT EXISTS idx_items_realized_at ON items(realized_at)"},
	{"idx_items_canonical_at", "CREATE INDEX IF NOT EXISTS idx_items_canonical_at ON items(canonical_at)"},
	{"idx_items_fidelity", "CREATE INDEX IF NOT EXISTS idx_items_fidelity ON items(fidelity)"},
	{"idx_items_superseded_by", "CREATE INDEX IF NOT EXISTS idx_items_superseded_by ON items(superseded_by)"},
	{"idx_items_type_hash", "CREATE INDEX IF NOT EXISTS idx_items_type_hash ON items(item_type, integrity_hash)"},
	{"idx_relations_source", "CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source)"},
	{"idx_relations_target", "CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target)"},
	{"idx_relations_kind", "CREATE INDEX IF NOT EXISTS idx_relations_kind ON relations(kind)"},
}

// dedup_index maps (item_type, dedup_key) to the item that claimed it.
// Derived from items.dedup_key; repopulated wholesale on rebuild.
const dedupIndexDDL = `
	CREATE TABLE IF NOT EXISTS dedup_index (
		item_type TEXT NOT NULL,
		dedup_key TEXT NOT NULL,
		item_uuid TEXT NOT NULL REFERENCES items(uuid),
		PRIMARY KEY (item_type, dedup_key)
	)
`

// rebuildBatchSize bounds one dedup repopulation statement. Context
// cancellation is honored between batches.
const rebuildBatchSize = 500

// ensureIndexes creates the dedup index table and all secondary indexes
// if missing. Called at Open; idempotent.
func ensureIndexes(db *sql.DB) error {
	if _, err := db.Exec(dedupIndexDDL); err != nil {
		return fmt.Errorf("create dedup_index: %w", err)
	}
	for _, idx := range managedIndexes {
		if _, err := db.Exec(idx.ddl); err != nil {
			return fmt.Errorf("create %s: %w", idx.name, err)
		}
	}
	return nil
}

// RebuildIndexes drops and recreates every derived structure from the
// source-of-truth tables. Produces exactly the state incremental
// maintenance would have produced for the same rows.
//
// Each step commits on its own and the whole operation restarts cleanly,
// so interrupting a rebuild never loses source data; re-running it
// repairs whatever the interruption left behind.
func (s *Store) RebuildIndexes(ctx context.Context) error {
	s.logger.Info("rebuilding derived indexes")

	for _, idx := range managedIndexes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, "DROP INDEX IF EXISTS "+idx.name); err != nil {
			return fmt.Errorf("rebuild: drop %s: %w", idx.name, err)
		}
		if _, err := s.db.ExecContext(ctx, idx.ddl); err != nil {
			return fmt.Errorf("rebuild: create %s: %w", idx.name, err)
		}
	}

	if err := s.rebuildDedupIndex(ctx); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	s.logger.Info("derived indexes rebuilt")
	return nil
}

// rebuildDedupIndex truncates dedup_index and repopulates it from
// items.dedup_key in batches, checking ctx between batches.
//
// Repopulation uses plain INSERT: two items of one type claiming the
// same key would violate the write-path invariant, and the resulting
// constraint error surfaces that corruption instead of hiding it.
func (s *Store) rebuildDedupIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM dedup_index"); err != nil {
		return fmt.Errorf("truncate dedup_index: %w", err)
	}

	for offset := 0; ; offset += rebuildBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := s.db.ExecContext(ctx, `
			INSERT INTO dedup_index (item_type, dedup_key, item_uuid)
			SELECT item_type, dedup_key, uuid
			FROM items
			WHERE dedup_key IS NOT NULL
			ORDER BY realized_at ASC, uuid COLLATE BINARY ASC
			LIMIT ? OFFSET ?
		`, rebuildBatchSize, offset)
		if err != nil {
			return fmt.Errorf("repopulate dedup_index: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("repopulate dedup_index: rows affected: %w", err)
		}
		if n < rebuildBatchSize {
			return nil
		}
	}
}

// CheckIndexes verifies the derived structures and the supersession
// mirror against the source tables. Findings are reported, never
// repaired; RebuildIndexes is the prescribed recovery.
func (s *Store) CheckIndexes(ctx context.Context) ([]IndexInconsistencyError, error) {
	findings := []IndexInconsistencyError{}

	// Every dedup_index entry must point at an item still claiming the key.
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.item_type, d.dedup_key, d.item_uuid
		FROM dedup_index d
		LEFT JOIN items i
			ON d.item_uuid = i.uuid
			AND d.item_type = i.item_type
			AND d.dedup_key = i.dedup_key
		WHERE i.uuid IS NULL
		ORDER BY d.item_type ASC, d.dedup_key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("check dedup_index: %w", err)
	}
	findings, err = collectFindings(rows, findings, "dedup_index", func(cols []string) string {
		return fmt.Sprintf("entry (%s, %s) -> %s has no matching item", cols[0], cols[1], cols[2])
	})
	if err != nil {
		return nil, err
	}

	// Every claimed dedup key must be indexed.
	rows, err = s.db.QueryContext(ctx, `
		SELECT i.uuid, i.item_type, i.dedup_key
		FROM items i
		LEFT JOIN dedup_index d
			ON d.item_uuid = i.uuid
			AND d.item_type = i.item_type
			AND d.dedup_key = i.dedup_key
		WHERE i.dedup_key IS NOT NULL AND d.item_uuid IS NULL
		ORDER BY i.realized_at ASC, i.uuid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("check items dedup keys: %w", err)
	}
	findings, err = collectFindings(rows, findings, "dedup_index", func(cols []string) string {
		return fmt.Sprintf("item %s key (%s, %s) is not indexed", cols[0], cols[1], cols[2])
	})
	if err != nil {
		return nil, err
	}

	// Every supersession pointer must have its mirrored edge.
	rows, err = s.db.QueryContext(ctx, `
		SELECT i.uuid, i.superseded_by
		FROM items i
		LEFT JOIN relations r
			ON r.kind = 'supersedes'
			AND r.source = i.superseded_by
			AND r.target = i.uuid
		WHERE i.superseded_by IS NOT NULL AND r.uuid IS NULL
		ORDER BY i.realized_at ASC, i.uuid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("check supersession mirror: %w", err)
	}
	findings, err = collectFindings(rows, findings, "supersedes_edges", func(cols []string) string {
		return fmt.Sprintf("item %s superseded by %s has no mirrored edge", cols[0], cols[1])
	})
	if err != nil {
		return nil, err
	}

	// Every supersedes edge must mirror a pointer.
	rows, err = s.db.QueryContext(ctx, `
		SELECT r.uuid, r.source, r.target
		FROM relations r
		LEFT JOIN items i
			ON i.uuid = r.target
			AND i.superseded_by = r.source
		WHERE r.kind = 'supersedes' AND i.uuid IS NULL
		ORDER BY r.created_at ASC, r.uuid COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("check supersedes edges: %w", err)
	}
	findings, err = collectFindings(rows, findings, "supersedes_edges", func(cols []string) string {
		return fmt.Sprintf("edge %s (%s supersedes %s) has no matching pointer", cols[0], cols[1], cols[2])
	})
	if err != nil {
		return nil, err
	}

	return findings, nil
}

// collectFindings drains a check query into IndexInconsistencyError
// values. Each query selects two or three text columns describing the
// offending row.
func collectFindings(rows *sql.Rows, findings []IndexInconsistencyError, index string, detail func([]string) string) ([]IndexInconsistencyError, error) {
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("check %s: columns: %w", index, err)
	}

	for rows.Next() {
		cols := make([]string, len(colNames))
		dest := make([]any, len(cols))
		for i := range cols {
			dest[i] = &cols[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("check %s: scan: %w", index, err)
		}
		findings = append(findings, IndexInconsistencyError{Index: index, Detail: detail(cols)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("check %s: iterate: %w", index, err)
	}
	return findings, nil
}
