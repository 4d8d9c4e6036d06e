// Package store records evaluation traces.
//
// A trace is the ordered list of node evaluations and skips one engine run
// produced. Two runs over the same graph and input history produce the
// same trace, byte for byte, so traces double as golden files and as the
// reference for replay.
//
// Trace is an in-memory sink for tests and short runs. Store persists
// traces in SQLite:
//   - runs: one row per engine run
//   - evaluations: one row per node evaluation, outputs as canonical JSON
//   - skips: one row per absorbed runtime condition
//
// # Critical Patterns
//
// Logical Time:
//   - Rows are ordered by seq (evaluations) or insertion id (skips),
//     NEVER by timestamps
//   - All queries include an explicit ORDER BY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
