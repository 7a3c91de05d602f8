package store

import (
	"context"
	"fmt"

	"github.com/memogarden/soil/internal/fact"
)

// The query facade: read-only views that resolve supersession before
// returning anything, so callers always see current state. Safe to run
// concurrently with the writer; never writes.

// LiveItemsByType returns the current version of every item of the given
// type. Each scanned item is resolved through its supersession chain;
// chains converging on one live item are deduplicated, first touch wins,
// so the output keeps the realized_at order of the underlying scan.
//
// Items whose live version is a tombstone are logically deleted and
// omitted. Per-record failures (undecodable payloads, broken chains) are
// reported in the second return value and skipped.
func (s *Store) LiveItemsByType(ctx context.Context, itemType string) ([]fact.Item, []RecordError, error) {
	raw, skipped, err := s.ListItems(ctx, ListFilter{Type: itemType})
	if err != nil {
		return nil, nil, fmt.Errorf("live items: %w", err)
	}

	items := []fact.Item{}
	seen := map[string]bool{}
	for _, it := range raw {
		liveUUID, err := s.ResolveLive(ctx, it.UUID)
		if err != nil {
			s.logger.Warn("skipping unresolvable item", "uuid", it.UUID, "error", err)
			skipped = append(skipped, RecordError{UUID: it.UUID, Err: err})
			continue
		}
		if seen[liveUUID] {
			continue
		}
		seen[liveUUID] = true

		live := it
		if liveUUID != it.UUID {
			live, err = s.GetItem(ctx, liveUUID)
			if err != nil {
				skipped = append(skipped, RecordError{UUID: liveUUID, Err: err})
				continue
			}
		}
		if live.Fidelity == fact.FidelityTombstone {
			continue
		}
		items = append(items, live)
	}

	return items, skipped, nil
}

// Neighbor is one edge incident to the queried node, with the far
// endpoint resolved to its live item where the store can do so.
type Neighbor struct {
	Relation fact.Relation

	// Node is the far endpoint as stored on the edge.
	Node     string
	NodeType fact.NodeType

	// Resolved is the live item behind an item endpoint. Nil for entity
	// endpoints, which belong to an external system.
	Resolved *fact.Item
}

// NeighborhoodQuery narrows Neighborhood. The zero value returns every
// incident edge, both directions, tombstoned neighbors excluded.
type NeighborhoodQuery struct {
	Kind      fact.Kind
	Direction fact.Direction

	// IncludeTombstones keeps edges whose resolved endpoint is a
	// tombstone. They are dropped otherwise.
	IncludeTombstones bool
}

// Neighborhood returns the relations incident to a node with item
// endpoints resolved live. Entity endpoints pass through unresolved. An
// edge referencing an item the store cannot resolve (missing, cyclic,
// too deep) is reported in the second return value and skipped, never a
// scan failure.
func (s *Store) Neighborhood(ctx context.Context, node string, q NeighborhoodQuery) ([]Neighbor, []RecordError, error) {
	rels, skipped, err := s.GetRelations(ctx, node, RelationQuery{Kind: q.Kind, Direction: q.Direction})
	if err != nil {
		return nil, nil, fmt.Errorf("neighborhood: %w", err)
	}

	neighbors := []Neighbor{}
	for _, rel := range rels {
		far, farType := rel.Target, rel.TargetType
		if rel.Target == node && rel.Source != node {
			far, farType = rel.Source, rel.SourceType
		}

		n := Neighbor{Relation: rel, Node: far, NodeType: farType}
		if farType == fact.NodeItem {
			liveUUID, err := s.ResolveLive(ctx, far)
			if err != nil {
				s.logger.Warn("skipping unresolvable neighbor", "uuid", far, "error", err)
				skipped = append(skipped, RecordError{UUID: far, Err: err})
				continue
			}
			live, err := s.GetItem(ctx, liveUUID)
			if err != nil {
				skipped = append(skipped, RecordError{UUID: liveUUID, Err: err})
				continue
			}
			if live.Fidelity == fact.FidelityTombstone && !q.IncludeTombstones {
				continue
			}
			n.Resolved = &live
		}
		neighbors = append(neighbors, n)
	}

	return neighbors, skipped, nil
}
