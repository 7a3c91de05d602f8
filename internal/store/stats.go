package store

import (
	"context"
	"fmt"
)

// Stats summarizes store contents for operator tooling.
type Stats struct {
	SchemaVersion   int              `json:"schema_version"`
	Items           int64            `json:"items"`
	LiveItems       int64            `json:"live_items"`
	ItemsByType     map[string]int64 `json:"items_by_type"`
	ItemsByFidelity map[string]int64 `json:"items_by_fidelity"`
	Relations       int64            `json:"relations"`
	RelationsByKind map[string]int64 `json:"relations_by_kind"`
	DedupEntries    int64            `json:"dedup_entries"`
}

// Stats counts items and relations by their classifying columns.
// Read-only; safe concurrently with the writer.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	st.SchemaVersion = version

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items").Scan(&st.Items); err != nil {
		return Stats{}, fmt.Errorf("stats: count items: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE superseded_by IS NULL").Scan(&st.LiveItems); err != nil {
		return Stats{}, fmt.Errorf("stats: count live items: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM relations").Scan(&st.Relations); err != nil {
		return Stats{}, fmt.Errorf("stats: count relations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM dedup_index").Scan(&st.DedupEntries); err != nil {
		return Stats{}, fmt.Errorf("stats: count dedup entries: %w", err)
	}

	st.ItemsByType, err = s.countBy(ctx, "SELECT item_type, COUNT(*) FROM items GROUP BY item_type ORDER BY item_type")
	if err != nil {
		return Stats{}, fmt.Errorf("stats: items by type: %w", err)
	}
	st.ItemsByFidelity, err = s.countBy(ctx, "SELECT fidelity, COUNT(*) FROM items GROUP BY fidelity ORDER BY fidelity")
	if err != nil {
		return Stats{}, fmt.Errorf("stats: items by fidelity: %w", err)
	}
	st.RelationsByKind, err = s.countBy(ctx, "SELECT kind, COUNT(*) FROM relations GROUP BY kind ORDER BY kind")
	if err != nil {
		return Stats{}, fmt.Errorf("stats: relations by kind: %w", err)
	}

	return st, nil
}

// countBy runs a (label, count) GROUP BY query into a map.
func (s *Store) countBy(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
