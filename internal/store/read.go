package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/memogarden/soil/internal/fact"
)

const itemColumns = "uuid, item_type, realized_at, canonical_at, integrity_hash, fidelity, superseded_by, superseded_at, dedup_key, data, metadata"

const relationColumns = "uuid, kind, source, source_type, target, target_type, created_at, evidence, metadata"

// GetItem retrieves a single item by UUID.
// Returns NotFoundError if no row exists.
func (s *Store) GetItem(ctx context.Context, uuid string) (fact.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE uuid = ?
	`, uuid)

	raw, err := scanItemRowRaw(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fact.Item{}, &NotFoundError{UUID: uuid}
	}
	if err != nil {
		return fact.Item{}, fmt.Errorf("get item: %w", err)
	}

	item, err := raw.decode()
	if err != nil {
		return fact.Item{}, fmt.Errorf("get item %s: %w", uuid, err)
	}
	return item, nil
}

// ListFilter narrows ListItems. The zero value lists everything.
// The time windows are half-open: After bounds are inclusive, Before
// bounds exclusive. Canonical bounds only match items that carry a
// canonical_at.
type ListFilter struct {
	Type     string
	Fidelity fact.Fidelity

	RealizedAfter   *time.Time
	RealizedBefore  *time.Time
	CanonicalAfter  *time.Time
	CanonicalBefore *time.Time

	Limit  int
	Offset int
}

// compile produces the parameterized SELECT for the filter.
// Every query carries ORDER BY realized_at ASC, uuid ASC COLLATE BINARY
// so scans are deterministic and restartable. Values are always
// parameterized, never interpolated.
func (f ListFilter) compile() (string, []any) {
	var conds []string
	var params []any

	if f.Type != "" {
		conds = append(conds, "item_type = ?")
		params = append(params, f.Type)
	}
	if f.Fidelity != "" {
		conds = append(conds, "fidelity = ?")
		params = append(params, string(f.Fidelity))
	}
	if f.RealizedAfter != nil {
		conds = append(conds, "realized_at >= ?")
		params = append(params, f.RealizedAfter.UnixNano())
	}
	if f.RealizedBefore != nil {
		conds = append(conds, "realized_at < ?")
		params = append(params, f.RealizedBefore.UnixNano())
	}
	if f.CanonicalAfter != nil {
		conds = append(conds, "canonical_at IS NOT NULL AND canonical_at >= ?")
		params = append(params, f.CanonicalAfter.UnixNano())
	}
	if f.CanonicalBefore != nil {
		conds = append(conds, "canonical_at IS NOT NULL AND canonical_at < ?")
		params = append(params, f.CanonicalBefore.UnixNano())
	}

	query := "SELECT " + itemColumns + " FROM items"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY realized_at ASC, uuid COLLATE BINARY ASC"

	// SQLite accepts OFFSET only after LIMIT; -1 means unlimited
	if f.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			params = append(params, f.Offset)
		}
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		params = append(params, f.Offset)
	}

	return query, params
}

// ListItems returns items matching the filter, superseded rows included,
// in realized_at order with UUID as tie-break.
//
// A row whose stored payload cannot be decoded is reported in the second
// return value and skipped; the scan continues. Returns empty slices
// (not nil) when nothing matches.
func (s *Store) ListItems(ctx context.Context, filter ListFilter) ([]fact.Item, []RecordError, error) {
	query, params := filter.compile()

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []fact.Item{}
	skipped := []RecordError{}
	for rows.Next() {
		raw, err := scanItemRaw(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("list items: %w", err)
		}
		item, err := raw.decode()
		if err != nil {
			s.logger.Warn("skipping undecodable item", "uuid", raw.uuid, "error", err)
			skipped = append(skipped, RecordError{UUID: raw.uuid, Err: err})
			continue
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("list items: iterate: %w", err)
	}

	return items, skipped, nil
}

// RelationQuery narrows GetRelations. The zero value returns every edge
// incident to the node, both directions, any kind.
type RelationQuery struct {
	Kind      fact.Kind
	Direction fact.Direction
}

// GetRelations returns relations incident to a node, ordered by
// created_at ascending with UUID as tie-break. Edges with undecodable
// evidence or metadata are reported in the second return value and
// skipped.
func (s *Store) GetRelations(ctx context.Context, node string, q RelationQuery) ([]fact.Relation, []RecordError, error) {
	dir := q.Direction
	if dir == "" {
		dir = fact.DirectionBoth
	}
	if !dir.Valid() {
		return nil, nil, fmt.Errorf("get relations: unknown direction %q", q.Direction)
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, nil, fmt.Errorf("get relations: unknown kind %q", q.Kind)
	}

	var conds []string
	var params []any
	switch dir {
	case fact.DirectionOutgoing:
		conds = append(conds, "source = ?")
		params = append(params, node)
	case fact.DirectionIncoming:
		conds = append(conds, "target = ?")
		params = append(params, node)
	case fact.DirectionBoth:
		conds = append(conds, "(source = ? OR target = ?)")
		params = append(params, node, node)
	}
	if q.Kind != "" {
		conds = append(conds, "kind = ?")
		params = append(params, string(q.Kind))
	}

	query := "SELECT " + relationColumns + " FROM relations WHERE " +
		strings.Join(conds, " AND ") +
		" ORDER BY created_at ASC, uuid COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, nil, fmt.Errorf("get relations: %w", err)
	}
	defer rows.Close()

	rels := []fact.Relation{}
	skipped := []RecordError{}
	for rows.Next() {
		raw, err := scanRelationRaw(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("get relations: %w", err)
		}
		rel, err := raw.decode()
		if err != nil {
			s.logger.Warn("skipping undecodable relation", "uuid", raw.uuid, "error", err)
			skipped = append(skipped, RecordError{UUID: raw.uuid, Err: err})
			continue
		}
		rels = append(rels, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("get relations: iterate: %w", err)
	}

	return rels, skipped, nil
}

// itemRow holds one items row before JSON decoding. Splitting the SQL
// scan from the decode lets bulk reads skip corrupt payloads per-record
// instead of aborting.
type itemRow struct {
	uuid          string
	itemType      string
	realizedAt    int64
	canonicalAt   sql.NullInt64
	integrityHash string
	fidelity      string
	supersededBy  sql.NullString
	supersededAt  sql.NullInt64
	dedupKey      sql.NullString
	data          string
	metadata      sql.NullString
}

// scanItemRaw scans the current row of a multi-row query.
func scanItemRaw(rows *sql.Rows) (itemRow, error) {
	var r itemRow
	if err := rows.Scan(
		&r.uuid, &r.itemType, &r.realizedAt, &r.canonicalAt, &r.integrityHash,
		&r.fidelity, &r.supersededBy, &r.supersededAt, &r.dedupKey, &r.data, &r.metadata,
	); err != nil {
		return itemRow{}, fmt.Errorf("scan item: %w", err)
	}
	return r, nil
}

// scanItemRowRaw scans a single-row query. sql.ErrNoRows passes through
// untouched so callers can map it to NotFoundError.
func scanItemRowRaw(row *sql.Row) (itemRow, error) {
	var r itemRow
	if err := row.Scan(
		&r.uuid, &r.itemType, &r.realizedAt, &r.canonicalAt, &r.integrityHash,
		&r.fidelity, &r.supersededBy, &r.supersededAt, &r.dedupKey, &r.data, &r.metadata,
	); err != nil {
		return itemRow{}, err
	}
	return r, nil
}

// decode turns a scanned row into a fact.Item.
func (r itemRow) decode() (fact.Item, error) {
	data, err := unmarshalData(r.data)
	if err != nil {
		return fact.Item{}, err
	}
	meta, err := unmarshalMetadata(r.metadata)
	if err != nil {
		return fact.Item{}, err
	}

	item := fact.Item{
		UUID:          r.uuid,
		Type:          r.itemType,
		RealizedAt:    nanosToTime(r.realizedAt),
		IntegrityHash: r.integrityHash,
		Fidelity:      fact.Fidelity(r.fidelity),
		Data:          data,
		Metadata:      meta,
	}
	if r.canonicalAt.Valid {
		t := nanosToTime(r.canonicalAt.Int64)
		item.CanonicalAt = &t
	}
	if r.supersededBy.Valid {
		item.SupersededBy = r.supersededBy.String
	}
	if r.supersededAt.Valid {
		t := nanosToTime(r.supersededAt.Int64)
		item.SupersededAt = &t
	}
	if r.dedupKey.Valid {
		item.DedupKey = r.dedupKey.String
	}
	return item, nil
}

// relationRow holds one relations row before JSON decoding.
type relationRow struct {
	uuid       string
	kind       string
	source     string
	sourceType string
	target     string
	targetType string
	createdAt  int64
	evidence   sql.NullString
	metadata   sql.NullString
}

// scanRelationRaw scans the current row of a multi-row query.
func scanRelationRaw(rows *sql.Rows) (relationRow, error) {
	var r relationRow
	if err := rows.Scan(
		&r.uuid, &r.kind, &r.source, &r.sourceType, &r.target, &r.targetType,
		&r.createdAt, &r.evidence, &r.metadata,
	); err != nil {
		return relationRow{}, fmt.Errorf("scan relation: %w", err)
	}
	return r, nil
}

// scanRelationRow scans and decodes a single-row query.
func scanRelationRow(row *sql.Row) (fact.Relation, error) {
	var r relationRow
	if err := row.Scan(
		&r.uuid, &r.kind, &r.source, &r.sourceType, &r.target, &r.targetType,
		&r.createdAt, &r.evidence, &r.metadata,
	); err != nil {
		return fact.Relation{}, err
	}
	return r.decode()
}

// decode turns a scanned row into a fact.Relation.
func (r relationRow) decode() (fact.Relation, error) {
	ev, err := unmarshalEvidence(r.evidence)
	if err != nil {
		return fact.Relation{}, err
	}
	meta, err := unmarshalMetadata(r.metadata)
	if err != nil {
		return fact.Relation{}, err
	}

	return fact.Relation{
		UUID:       r.uuid,
		Kind:       fact.Kind(r.kind),
		Source:     r.source,
		SourceType: fact.NodeType(r.sourceType),
		Target:     r.target,
		TargetType: fact.NodeType(r.targetType),
		CreatedAt:  fact.Day(r.createdAt),
		Evidence:   ev,
		Metadata:   meta,
	}, nil
}
