// Package fact defines the soil data model: immutable Items, System
// Relations, and the canonical serialization and hashing that give facts
// a stable content identity.
//
// This package contains types and pure functions only. All other internal
// packages import fact; fact imports nothing internal, so it remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types in payloads - use int64 for numbers
//   - Canonical JSON (RFC 8785) is the ONLY serialization used for hashing
//   - All JSON tags use snake_case
//   - Identifiers carry the "soil-" prefix and are never reused
package fact
