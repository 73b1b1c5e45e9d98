// Package store persists replay runs in SQLite.
//
// A run records the model it replayed (by fingerprint), the replay settings,
// one result row per distinct trace and the node and edge counts the batch
// produced. Runs are append-only.
//
// # Ordering
//
//   - Runs carry a logical seq assigned inside the writing transaction;
//     wall time is never used for ordering
//   - List queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//   - Trace results keep their batch index
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
