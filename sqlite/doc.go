// Package sqlite implements the sqlbridge Database contract over a
// single-file SQLite database.
//
// Two sub-modes trade durability for speed:
//
//   - File mode: no persistent connection. Each operation checks a dedicated
//     connection out of the pool, admission controlled by a per-instance
//     gate, and returns it when done. Concurrent writers across processes
//     are arbitrated by SQLite's own file locking plus the busy-timeout
//     pragma.
//   - Memory mode: exactly one physical connection for the adapter's whole
//     lifetime, guarded by a mutex. All access is serialized; the backing
//     engine does not support concurrent writers on one connection.
//
// Transactions check out one connection for their whole scope and therefore
// require file-backed storage: a fresh connection to an in-memory database
// opens a separate empty database. Begin returns ErrMemoryModeTransaction in
// memory mode.
package sqlite
