// Package sqlbridge provides a uniform access layer over multiple relational
// database engines: SQLite (single-file), MySQL, and PostgreSQL.
//
// Each engine adapter implements the same Database contract (execute a
// mutating statement, fetch one row, fetch all rows, run a scoped
// transaction) over a pooled or serialized connection, so application code
// is written once against the interface and the engine is chosen by
// configuration.
//
// This package holds the shared contract (Database, Tx, Record, ExecResult),
// the engine identity enum, the error taxonomy, and the placeholder rewrite
// rules. The engine adapters live in the sqlite, mysql and postgres
// subpackages; query-file loading in loader; schema migrations in migrate;
// config-driven construction in setup.
//
// Concurrency Model:
//   - Networked engines bound concurrent access with their native connection
//     pool, sized by configuration.
//   - SQLite file mode opens a dedicated connection per operation, admission
//     controlled by a per-instance gate.
//   - SQLite memory mode serializes all access over one persistent
//     connection.
//   - A scoped transaction owns one dedicated connection for its whole
//     lifetime; that connection is never visible to any other caller.
//
// Every I/O method accepts a context.Context. There is no internal timeout
// on connection acquisition; callers bound wait time with a context
// deadline.
package sqlbridge
