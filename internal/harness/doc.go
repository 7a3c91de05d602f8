// Package harness executes storage scenarios against a real store and
// compares the resulting traces with golden snapshots.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario demonstrates"
//	steps:
//	  - op: create
//	    handle: draft
//	    type: Note
//	    data: { content: "v1" }
//	  - op: create
//	    handle: final
//	    type: Note
//	    data: { content: "v2" }
//	  - op: supersede
//	    old: draft
//	    new: final
//	assertions:
//	  - type: live
//	    item: draft
//	    want: final
//
// Steps refer to items by symbolic handles; the runner binds each handle
// to the store-assigned UUID when the step succeeds. A reference that
// never got bound is passed through verbatim, which is how scenarios
// address entity endpoints and deliberately missing items.
//
// # Operations
//
//   - create: append an item (type, data, metadata, canonical_at,
//     fidelity, dedup_key, dedup_by_hash)
//   - supersede: mark old as replaced by new
//   - tombstone: logically delete an item, optionally binding the
//     tombstone to a handle
//   - relate: assert a relation edge between two nodes
//
// Every step carries an optional expect field naming the outcome it
// should produce (default "ok"). Outcomes are classified from the
// store's typed errors: duplicate, invalid, not_found, conflict,
// self_supersession, fidelity_regression, and existing for an
// idempotent relation re-assert.
//
// # Assertion Types
//
//   - live: ResolveLive on an item lands on the wanted handle
//   - chain: the full supersession chain, oldest first
//   - live_items: the live view of a type, in scan order
//   - relations: incident edges of a node, by kind and direction
//   - stats: store-wide counts
//   - integrity_clean: integrity verification reports nothing
//   - indexes_clean: index consistency check reports nothing
//
// # Determinism
//
// Each scenario runs in a fresh in-memory database with a fixed clock
// and a sequential ID generator, so the same scenario always produces
// byte-identical traces. Golden files live in testdata/golden and are
// refreshed with:
//
//	go test ./internal/harness -update
package harness
