package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/memogarden/soil/internal/fact"
)

// ResolveLive follows superseded_by pointers from uuid to the newest
// live item and returns its UUID. An item that was never superseded
// resolves to itself.
//
// A revisited UUID fails with SupersessionCycleError, a pointer to a
// missing row with DanglingSupersessionError, and a walk past the
// configured depth limit with ChainTooDeepError. The walk never loops
// and never silently truncates.
func (s *Store) ResolveLive(ctx context.Context, uuid string) (string, error) {
	current := uuid
	seen := map[string]bool{}
	var chain []string

	for depth := 0; ; depth++ {
		if depth > s.maxChainDepth {
			return "", &ChainTooDeepError{Start: uuid, Depth: depth, Limit: s.maxChainDepth}
		}
		if seen[current] {
			return "", &SupersessionCycleError{Start: uuid, Chain: append(chain, current)}
		}
		seen[current] = true
		chain = append(chain, current)

		var by sql.NullString
		err := s.db.QueryRowContext(ctx, `
			SELECT superseded_by FROM items WHERE uuid = ?
		`, current).Scan(&by)
		if errors.Is(err, sql.ErrNoRows) {
			if current == uuid {
				return "", &NotFoundError{UUID: uuid}
			}
			return "", &DanglingSupersessionError{From: chain[len(chain)-2], Missing: current}
		}
		if err != nil {
			return "", fmt.Errorf("resolve live: %w", err)
		}

		if !by.Valid {
			return current, nil
		}
		current = by.String
	}
}

// Chain returns the supersession chain containing uuid, oldest first,
// ending at the live item.
//
// The backward walk follows the superseded_by reverse index. Supersession
// can merge (two items replaced by one successor); when the walk reaches
// a merge point the backward extension stops there, so the result covers
// the unbranched lineage through uuid. Forward walking shares
// ResolveLive's cycle, dangling, and depth guards.
func (s *Store) Chain(ctx context.Context, uuid string) ([]fact.Item, error) {
	// The anchor must exist before any walking.
	if _, err := s.GetItem(ctx, uuid); err != nil {
		return nil, err
	}

	oldest := uuid
	seen := map[string]bool{uuid: true}
	for hops := 0; ; hops++ {
		if hops >= s.maxChainDepth {
			return nil, &ChainTooDeepError{Start: uuid, Depth: hops, Limit: s.maxChainDepth}
		}

		preds, err := s.predecessors(ctx, oldest)
		if err != nil {
			return nil, fmt.Errorf("chain: %w", err)
		}
		if len(preds) != 1 {
			break // 0: true head; >1: merge point, lineage is ambiguous
		}
		p := preds[0]
		if seen[p] {
			return nil, &SupersessionCycleError{Start: uuid, Chain: append(preds, oldest)}
		}
		seen[p] = true
		oldest = p
	}

	var items []fact.Item
	current := oldest
	walked := map[string]bool{}
	for depth := 0; ; depth++ {
		if depth > s.maxChainDepth {
			return nil, &ChainTooDeepError{Start: uuid, Depth: depth, Limit: s.maxChainDepth}
		}
		if walked[current] {
			chain := make([]string, 0, len(items)+1)
			for _, it := range items {
				chain = append(chain, it.UUID)
			}
			return nil, &SupersessionCycleError{Start: uuid, Chain: append(chain, current)}
		}
		walked[current] = true

		item, err := s.GetItem(ctx, current)
		if err != nil {
			if IsNotFound(err) && len(items) > 0 {
				return nil, &DanglingSupersessionError{
					From:    items[len(items)-1].UUID,
					Missing: current,
				}
			}
			return nil, err
		}
		items = append(items, item)

		if item.SupersededBy == "" {
			return items, nil
		}
		current = item.SupersededBy
	}
}

// predecessors returns the items directly superseded by uuid, in binary
// UUID order.
func (s *Store) predecessors(ctx context.Context, uuid string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid FROM items
		WHERE superseded_by = ?
		ORDER BY uuid COLLATE BINARY ASC
	`, uuid)
	if err != nil {
		return nil, fmt.Errorf("query predecessors: %w", err)
	}
	defer rows.Close()

	var preds []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan predecessor: %w", err)
		}
		preds = append(preds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predecessors: %w", err)
	}
	return preds, nil
}
