// Package store provides the SQLite-backed session journal.
//
// The journal is an append-only audit log:
//   - Sessions: one row per play-through (rule set name and hash)
//   - Evaluations: every text snapshot and restart, with the outcome hash
//   - Exports: every story export
//
// Sessions are never resumed from the journal; it exists for replay
// (re-running a session to prove evaluation is deterministic) and trace.
//
// # Patterns
//
// Logical ordering
//   - Every row carries seq from the session's logical counter
//   - All reads ORDER BY seq ASC, never by timestamp
//
// Idempotent writes
//   - PRIMARY KEY (session_id, seq) with ON CONFLICT DO NOTHING
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
