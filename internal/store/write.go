package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/memogarden/soil/internal/fact"
)

// EntityChecker reports whether an entity identifier is known to the
// surrounding system. Entities live outside the soil store, so relation
// endpoints tagged entity can only be verified through this hook.
type EntityChecker interface {
	EntityExists(ctx context.Context, id string) (bool, error)
}

// NewItem describes an item to create. The UUID, realized_at timestamp,
// and integrity hash are assigned by the store.
type NewItem struct {
	Type        string
	CanonicalAt *time.Time
	Fidelity    fact.Fidelity // defaults to full
	Data        map[string]any
	Metadata    map[string]any

	// DedupKey claims a type-scoped key (e.g. a normalized RFC 5322
	// message-id). Creation fails with DuplicateItemError if an item of
	// this type already holds the key. Keys are claimed forever: a
	// replacement item written to supersede a duplicate must omit it.
	DedupKey string

	// DedupByHash rejects creation when an item of the same type already
	// stores identical canonical content.
	DedupByHash bool
}

// CreateItem appends a new immutable item.
//
// realized_at comes from the store's monotonic clock, the integrity hash
// covers (type, canonical_at, data), and payloads of types with a
// registered schema are validated before anything is written. Tombstone
// payloads are exempt: they describe the deletion, not the content.
//
// The item row and its dedup index row are written in one transaction.
func (s *Store) CreateItem(ctx context.Context, in NewItem) (fact.Item, error) {
	if in.Type == "" {
		return fact.Item{}, fmt.Errorf("create item: type is required")
	}
	fidelity := in.Fidelity
	if fidelity == "" {
		fidelity = fact.FidelityFull
	}
	if !fidelity.Valid() {
		return fact.Item{}, fmt.Errorf("create item: unknown fidelity %q", fidelity)
	}

	if fidelity != fact.FidelityTombstone {
		if err := s.validator.Validate(in.Type, in.Data); err != nil {
			return fact.Item{}, fmt.Errorf("create item: %w", err)
		}
	}

	hash, err := fact.ItemIntegrityHash(in.Type, in.CanonicalAt, in.Data)
	if err != nil {
		return fact.Item{}, fmt.Errorf("create item: %w", err)
	}

	dataJSON, err := marshalData(in.Data)
	if err != nil {
		return fact.Item{}, fmt.Errorf("create item: %w", err)
	}
	metaJSON, err := marshalMetadata(in.Metadata)
	if err != nil {
		return fact.Item{}, fmt.Errorf("create item: %w", err)
	}

	item := fact.Item{
		UUID:          s.ids.NewID(),
		Type:          in.Type,
		RealizedAt:    nanosToTime(s.clock.Next()),
		IntegrityHash: hash,
		Fidelity:      fidelity,
		DedupKey:      in.DedupKey,
		Data:          in.Data,
		Metadata:      in.Metadata,
	}
	if item.Data == nil {
		item.Data = map[string]any{}
	}
	if in.CanonicalAt != nil {
		t := in.CanonicalAt.UTC()
		item.CanonicalAt = &t
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fact.Item{}, fmt.Errorf("create item: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if in.DedupByHash {
		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT uuid FROM items
			WHERE item_type = ? AND integrity_hash = ?
			ORDER BY realized_at ASC, uuid COLLATE BINARY ASC
			LIMIT 1
		`, in.Type, hash).Scan(&existing)
		switch {
		case err == nil:
			return fact.Item{}, &DuplicateItemError{ItemType: in.Type, Key: hash, Existing: existing}
		case !errors.Is(err, sql.ErrNoRows):
			return fact.Item{}, fmt.Errorf("create item: probe content hash: %w", err)
		}
	}

	if in.DedupKey != "" {
		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT item_uuid FROM dedup_index
			WHERE item_type = ? AND dedup_key = ?
		`, in.Type, in.DedupKey).Scan(&existing)
		switch {
		case err == nil:
			return fact.Item{}, &DuplicateItemError{ItemType: in.Type, Key: in.DedupKey, Existing: existing}
		case !errors.Is(err, sql.ErrNoRows):
			return fact.Item{}, fmt.Errorf("create item: probe dedup key: %w", err)
		}
	}

	if err := insertItem(ctx, tx, item, dataJSON, metaJSON); err != nil {
		return fact.Item{}, fmt.Errorf("create item: %w", err)
	}

	if in.DedupKey != "" {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dedup_index (item_type, dedup_key, item_uuid)
			VALUES (?, ?, ?)
		`, in.Type, in.DedupKey, item.UUID)
		if err != nil {
			return fact.Item{}, fmt.Errorf("create item: index dedup key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fact.Item{}, fmt.Errorf("create item: commit: %w", err)
	}

	s.logger.Debug("item created",
		"uuid", item.UUID, "type", item.Type, "fidelity", string(item.Fidelity))
	return item, nil
}

// Supersede marks old as replaced by new. The superseded_by pointer is
// the source of truth and is set exactly once; the mirrored supersedes
// edge (source = successor, target = superseded) is written in the same
// transaction so pointer and edge can never disagree.
//
// Repeating the call with the same successor is a no-op. Any other
// successor fails with AlreadySupersededError. A successor whose fidelity
// is higher than the current item's fails with FidelityRegressionError
// unless it is full: re-realizing degraded content at full fidelity is
// the one permitted upgrade.
func (s *Store) Supersede(ctx context.Context, oldUUID, newUUID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("supersede: begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldFidelity string
	var oldBy sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT fidelity, superseded_by FROM items WHERE uuid = ?
	`, oldUUID).Scan(&oldFidelity, &oldBy)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{UUID: oldUUID}
	}
	if err != nil {
		return fmt.Errorf("supersede: load %s: %w", oldUUID, err)
	}

	if oldUUID == newUUID {
		return &SelfSupersessionError{UUID: oldUUID}
	}

	var newFidelity string
	err = tx.QueryRowContext(ctx, `
		SELECT fidelity FROM items WHERE uuid = ?
	`, newUUID).Scan(&newFidelity)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{UUID: newUUID}
	}
	if err != nil {
		return fmt.Errorf("supersede: load %s: %w", newUUID, err)
	}

	if oldBy.Valid {
		if oldBy.String == newUUID {
			return nil // idempotent repeat
		}
		return &AlreadySupersededError{UUID: oldUUID, Existing: oldBy.String, Attempted: newUUID}
	}

	from, to := fact.Fidelity(oldFidelity), fact.Fidelity(newFidelity)
	if to != fact.FidelityFull && to.Rank() > from.Rank() {
		return &FidelityRegressionError{UUID: oldUUID, From: from, To: to}
	}

	supersededAt := s.clock.Next()
	if err := setSupersededBy(ctx, tx, oldUUID, newUUID, supersededAt); err != nil {
		return err
	}

	edge := fact.Relation{
		UUID:       s.ids.NewID(),
		Kind:       fact.KindSupersedes,
		Source:     newUUID,
		SourceType: fact.NodeItem,
		Target:     oldUUID,
		TargetType: fact.NodeItem,
		CreatedAt:  fact.DayOf(nanosToTime(supersededAt)),
		Evidence:   &fact.Evidence{Source: "system", Method: "supersession", Confidence: "certain"},
	}
	if _, _, err := insertRelation(ctx, tx, edge); err != nil {
		return fmt.Errorf("supersede: mirror edge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("supersede: commit: %w", err)
	}

	s.logger.Debug("item superseded", "old", oldUUID, "new", newUUID)
	return nil
}

// TombstoneItem logically deletes an item: it creates a tombstone-fidelity
// successor of the same type and supersedes the target with it, all in one
// transaction. The tombstone payload records what was deleted and why.
// This is the only deletion mechanism; the original row remains.
func (s *Store) TombstoneItem(ctx context.Context, uuid, reason string) (fact.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fact.Item{}, fmt.Errorf("tombstone item: begin tx: %w", err)
	}
	defer tx.Rollback()

	var itemType string
	var by sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT item_type, superseded_by FROM items WHERE uuid = ?
	`, uuid).Scan(&itemType, &by)
	if errors.Is(err, sql.ErrNoRows) {
		return fact.Item{}, &NotFoundError{UUID: uuid}
	}
	if err != nil {
		return fact.Item{}, fmt.Errorf("tombstone item: load %s: %w", uuid, err)
	}

	tomb := fact.Item{
		UUID:     s.ids.NewID(),
		Type:     itemType,
		Fidelity: fact.FidelityTombstone,
		Data:     map[string]any{"tombstone_of": uuid},
	}
	if reason != "" {
		tomb.Data["reason"] = reason
	}

	if by.Valid {
		return fact.Item{}, &AlreadySupersededError{UUID: uuid, Existing: by.String, Attempted: tomb.UUID}
	}

	tomb.RealizedAt = nanosToTime(s.clock.Next())
	tomb.IntegrityHash, err = fact.ItemIntegrityHash(tomb.Type, nil, tomb.Data)
	if err != nil {
		return fact.Item{}, fmt.Errorf("tombstone item: %w", err)
	}

	dataJSON, err := marshalData(tomb.Data)
	if err != nil {
		return fact.Item{}, fmt.Errorf("tombstone item: %w", err)
	}
	if err := insertItem(ctx, tx, tomb, dataJSON, nil); err != nil {
		return fact.Item{}, fmt.Errorf("tombstone item: %w", err)
	}

	supersededAt := s.clock.Next()
	if err := setSupersededBy(ctx, tx, uuid, tomb.UUID, supersededAt); err != nil {
		return fact.Item{}, err
	}

	edge := fact.Relation{
		UUID:       s.ids.NewID(),
		Kind:       fact.KindSupersedes,
		Source:     tomb.UUID,
		SourceType: fact.NodeItem,
		Target:     uuid,
		TargetType: fact.NodeItem,
		CreatedAt:  fact.DayOf(nanosToTime(supersededAt)),
		Evidence:   &fact.Evidence{Source: "system", Method: "tombstone", Confidence: "certain"},
	}
	if _, _, err := insertRelation(ctx, tx, edge); err != nil {
		return fact.Item{}, fmt.Errorf("tombstone item: mirror edge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fact.Item{}, fmt.Errorf("tombstone item: commit: %w", err)
	}

	s.logger.Debug("item tombstoned", "uuid", uuid, "tombstone", tomb.UUID)
	return tomb, nil
}

// NewRelation describes an edge to assert. The UUID and created_at day
// are assigned by the store.
type NewRelation struct {
	Kind       fact.Kind
	Source     string
	SourceType fact.NodeType
	Target     string
	TargetType fact.NodeType
	Evidence   *fact.Evidence
	Metadata   map[string]any
}

// AddRelation asserts an edge. Asserting a (kind, source, target) triple
// that already exists returns the stored relation with inserted=false;
// nothing is written and no error is raised.
//
// The supersedes kind is reserved: Supersede writes that edge as the
// mirror of the pointer it sets, and no other call site may.
func (s *Store) AddRelation(ctx context.Context, in NewRelation) (fact.Relation, bool, error) {
	if !in.Kind.Valid() {
		return fact.Relation{}, false, fmt.Errorf("add relation: unknown kind %q", in.Kind)
	}
	if in.Kind == fact.KindSupersedes {
		return fact.Relation{}, false, fmt.Errorf("add relation: kind %q is written only by Supersede", fact.KindSupersedes)
	}
	if !in.SourceType.Valid() {
		return fact.Relation{}, false, fmt.Errorf("add relation: unknown source type %q", in.SourceType)
	}
	if !in.TargetType.Valid() {
		return fact.Relation{}, false, fmt.Errorf("add relation: unknown target type %q", in.TargetType)
	}
	if in.Source == "" || in.Target == "" {
		return fact.Relation{}, false, fmt.Errorf("add relation: source and target are required")
	}

	rel := fact.Relation{
		UUID:       s.ids.NewID(),
		Kind:       in.Kind,
		Source:     in.Source,
		SourceType: in.SourceType,
		Target:     in.Target,
		TargetType: in.TargetType,
		CreatedAt:  fact.DayOf(nanosToTime(s.clock.Next())),
		Evidence:   in.Evidence,
		Metadata:   in.Metadata,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fact.Relation{}, false, fmt.Errorf("add relation: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkEndpoint(ctx, tx, in.Source, in.SourceType); err != nil {
		return fact.Relation{}, false, fmt.Errorf("add relation: source: %w", err)
	}
	if err := s.checkEndpoint(ctx, tx, in.Target, in.TargetType); err != nil {
		return fact.Relation{}, false, fmt.Errorf("add relation: target: %w", err)
	}

	stored, inserted, err := insertRelation(ctx, tx, rel)
	if err != nil {
		return fact.Relation{}, false, fmt.Errorf("add relation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fact.Relation{}, false, fmt.Errorf("add relation: commit: %w", err)
	}

	if inserted {
		s.logger.Debug("relation asserted",
			"uuid", stored.UUID, "kind", string(stored.Kind),
			"source", stored.Source, "target", stored.Target)
	}
	return stored, inserted, nil
}

// checkEndpoint verifies a relation endpoint at write time. Item
// endpoints must exist in the items table; entity endpoints go through
// the configured EntityChecker, or pass when none is installed.
func (s *Store) checkEndpoint(ctx context.Context, tx *sql.Tx, id string, typ fact.NodeType) error {
	switch typ {
	case fact.NodeItem:
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE uuid = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{UUID: id}
		}
		if err != nil {
			return fmt.Errorf("check item endpoint: %w", err)
		}
		return nil
	case fact.NodeEntity:
		if s.entities == nil {
			return nil
		}
		ok, err := s.entities.EntityExists(ctx, id)
		if err != nil {
			return fmt.Errorf("check entity endpoint: %w", err)
		}
		if !ok {
			return fmt.Errorf("entity %s not recognized", id)
		}
		return nil
	default:
		return fmt.Errorf("unknown node type %q", typ)
	}
}

// insertItem writes one item row. Append-only: a UUID collision is a
// genuine error, never silently ignored.
func insertItem(ctx context.Context, tx *sql.Tx, item fact.Item, dataJSON string, metaJSON *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO items
		(uuid, item_type, realized_at, canonical_at, integrity_hash, fidelity, dedup_key, data, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.UUID,
		item.Type,
		item.RealizedAt.UnixNano(),
		nanosOrNull(item.CanonicalAt),
		item.IntegrityHash,
		string(item.Fidelity),
		nullableString(item.DedupKey),
		dataJSON,
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// setSupersededBy sets the pointer pair on a row that has none yet.
// The WHERE guard makes the write-once rule hold even against writers
// outside this process.
func setSupersededBy(ctx context.Context, tx *sql.Tx, oldUUID, newUUID string, supersededAt int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE items
		SET superseded_by = ?, superseded_at = ?
		WHERE uuid = ? AND superseded_by IS NULL
	`, newUUID, supersededAt, oldUUID)
	if err != nil {
		return fmt.Errorf("supersede: set pointer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("supersede: rows affected: %w", err)
	}
	if n == 0 {
		// Raced with another writer between the read and the update.
		var by sql.NullString
		if err := tx.QueryRowContext(ctx, `
			SELECT superseded_by FROM items WHERE uuid = ?
		`, oldUUID).Scan(&by); err == nil && by.Valid {
			return &AlreadySupersededError{UUID: oldUUID, Existing: by.String, Attempted: newUUID}
		}
		return &AlreadySupersededError{UUID: oldUUID, Attempted: newUUID}
	}
	return nil
}

// insertRelation writes a relation row using ON CONFLICT DO NOTHING on
// the identity triple. When the triple is already asserted, the stored
// relation is returned with inserted=false.
func insertRelation(ctx context.Context, tx *sql.Tx, rel fact.Relation) (fact.Relation, bool, error) {
	evJSON, err := marshalEvidence(rel.Evidence)
	if err != nil {
		return fact.Relation{}, false, err
	}
	metaJSON, err := marshalMetadata(rel.Metadata)
	if err != nil {
		return fact.Relation{}, false, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO relations
		(uuid, kind, source, source_type, target, target_type, created_at, evidence, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, source, target) DO NOTHING
	`,
		rel.UUID,
		string(rel.Kind),
		rel.Source,
		string(rel.SourceType),
		rel.Target,
		string(rel.TargetType),
		int64(rel.CreatedAt),
		evJSON,
		metaJSON,
	)
	if err != nil {
		return fact.Relation{}, false, fmt.Errorf("insert relation: %w", err)
	}

	// Check if a row was actually inserted
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fact.Relation{}, false, fmt.Errorf("insert relation: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return rel, true, nil
	}

	// Conflict - the triple already exists, fetch the stored relation
	row := tx.QueryRowContext(ctx, `
		SELECT `+relationColumns+`
		FROM relations
		WHERE kind = ? AND source = ? AND target = ?
	`, string(rel.Kind), rel.Source, rel.Target)
	stored, err := scanRelationRow(row)
	if err != nil {
		return fact.Relation{}, false, fmt.Errorf("insert relation: select existing: %w", err)
	}
	return stored, false, nil
}
