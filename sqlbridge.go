package sqlbridge

import (
	"context"
	"fmt"
)

// Engine identifies a supported database engine. The identity is carried by
// every adapter instance, is immutable after construction, and determines
// the native placeholder syntax and migration-table DDL dialect.
type Engine string

// Supported engines.
const (
	SQLite   Engine = "sqlite"
	MySQL    Engine = "mysql"
	Postgres Engine = "postgres"
)

// Valid reports whether e names a supported engine.
func (e Engine) Valid() bool {
	switch e {
	case SQLite, MySQL, Postgres:
		return true
	}
	return false
}

// Placeholder returns the engine's native parameter marker. For Postgres the
// markers are numbered ($1, $2, ...); callers rewriting queries for Postgres
// must use RewriteNumbered rather than literal substitution.
func (e Engine) Placeholder() string {
	switch e {
	case Postgres:
		return "$"
	default:
		return "?"
	}
}

// Numbered reports whether the engine requires strictly positional, numbered
// parameter markers on the wire.
func (e Engine) Numbered() bool {
	return e == Postgres
}

// Record is one result row: a mapping from column name to value. Column
// order is not preserved. Records are never mutated after creation.
type Record map[string]any

// ExecResult describes the outcome of a mutating statement.
type ExecResult struct {
	// LastInsertID is the identifier of the last inserted row, when the
	// engine reports one. PostgreSQL does not; it stays zero there.
	LastInsertID int64

	// RowsAffected is the number of rows the statement changed.
	RowsAffected int64
}

// Database is the uniform capability set implemented by every engine
// adapter. All methods are safe for concurrent use.
type Database interface {
	// Engine returns the adapter's engine identity.
	Engine() Engine

	// Exec runs one mutating statement and commits it.
	Exec(ctx context.Context, query string, args ...any) (ExecResult, error)

	// ExecNoCommit runs one mutating statement without committing. On an
	// engine with a persistent serialized connection (SQLite memory mode)
	// the work stays pending until Commit or Rollback. On pooled and
	// per-call engines the uncommitted work is discarded when the
	// connection is released; use Begin for multi-statement atomicity.
	ExecNoCommit(ctx context.Context, query string, args ...any) (ExecResult, error)

	// FetchOne returns the first matching row, or a nil Record when no row
	// matches. Zero matches is not an error.
	FetchOne(ctx context.Context, query string, args ...any) (Record, error)

	// FetchAll returns every matching row in database order. No matches
	// yields an empty, non-nil slice.
	FetchAll(ctx context.Context, query string, args ...any) ([]Record, error)

	// Commit commits work left pending by ExecNoCommit. It is a no-op for
	// engines whose Exec commits per call.
	Commit(ctx context.Context) error

	// Rollback discards work left pending by ExecNoCommit. It is a no-op
	// for engines whose Exec commits per call.
	Rollback(ctx context.Context) error

	// Begin checks out one dedicated connection and starts a scoped
	// transaction on it.
	Begin(ctx context.Context) (Tx, error)

	// Close releases all pooled and persistent resources. It is idempotent
	// and waits for in-flight operations to finish.
	Close() error
}

// Tx is a scoped transaction bound to one dedicated connection for its whole
// lifetime. It is not safe for concurrent use; a transaction belongs to one
// caller.
//
// Exec captures the result set of read statements (SELECT/WITH); FetchOne
// and FetchAll consume the captured set. Commit and Rollback are re-entrant:
// after either completes, a fresh transaction is started on the same
// connection so the scope remains usable for further statements.
//
// Close is terminal: it rolls back when err is non-nil, commits otherwise,
// and always returns the connection to its source, even when the final
// commit or rollback fails.
type Tx interface {
	// Exec runs one statement inside the transaction and returns the number
	// of rows affected. Read statements additionally capture their result
	// set for FetchOne/FetchAll.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// FetchOne returns the first row of the last read statement's captured
	// result set, or nil when there is none.
	FetchOne(ctx context.Context) (Record, error)

	// FetchAll returns the last read statement's captured result set, or an
	// empty slice when there is none.
	FetchAll(ctx context.Context) ([]Record, error)

	// Commit commits the current transaction and starts a fresh one on the
	// same connection.
	Commit(ctx context.Context) error

	// Rollback discards the current transaction and starts a fresh one on
	// the same connection.
	Rollback(ctx context.Context) error

	// Close finishes the scope: rollback when err is non-nil, commit
	// otherwise. The connection is released in both cases.
	Close(ctx context.Context, err error) error
}

// WithTx runs fn inside a scoped transaction. The transaction commits when
// fn returns nil and rolls back when fn returns an error or panics; the
// connection is released in every case.
func WithTx(ctx context.Context, db Database, fn func(Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Close(ctx, fmt.Errorf("panic: %v", p)) //nolint:errcheck // Re-panicking; original cause wins
			panic(p)
		}
		if cerr := tx.Close(ctx, err); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(tx)
}
