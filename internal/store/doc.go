// Package store implements the record persistence port over database/sql.
//
// Two drivers are supported:
//   - sqlite3 (github.com/mattn/go-sqlite3), the default
//   - pgx (github.com/jackc/pgx/v5/stdlib) for Postgres
//
// SQL text comes from internal/querysql; this package only executes it.
//
// # Sessions and transactions
//
// A Store is shared. A Session is one logical connection and implements
// query.Conn. Begin on a Session with an open transaction creates a
// savepoint, so callers that batch several record writes (SaveAll) can
// still let each record open and close its own scope.
//
// # Table fields
//
// Column lists are read from the live schema (PRAGMA table_info or
// information_schema) and kept in a bounded LRU keyed by table name.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Metrics
//
// WithMetrics attaches Prometheus collectors counting statements by
// operation and outcome, their latency, and rollbacks.
package store
