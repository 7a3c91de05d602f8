// Package store provides SQLite-backed durable storage for soil items
// and relations.
//
// The store implements an append-only fact log with:
//   - Items: immutable facts with content-addressed integrity hashes
//   - Relations: immutable typed edges between items and entities
//   - Supersession: the only permitted "update", recorded as a write-once
//     pointer plus a mirrored supersedes edge
//   - Derived indexes: dedup index and secondary SQL indexes, rebuildable
//     from the two source tables at any time
//
// # Write discipline
//
// Rows are inserted once and never changed, with a single exception: an
// item's superseded_by / superseded_at pair is set exactly once by
// Supersede (or TombstoneItem). Every multi-step write (create + dedup
// index row, supersede pointer + mirrored edge, tombstone create +
// supersede) runs in one transaction, so a crash leaves pre- or
// post-state, never partial state.
//
// # Read discipline
//
// Bulk reads order by realized_at ASC, uuid ASC COLLATE BINARY so scans
// are deterministic and restartable. A row whose stored payload cannot be
// decoded is reported as a RecordError and skipped; it never aborts the
// scan.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Integrity hashes are computed via internal/fact using RFC 8785
// canonical JSON and SHA-256 with domain separation.
package store
