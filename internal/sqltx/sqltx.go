// Package sqltx implements the scoped-transaction contract over a dedicated
// database/sql connection. The SQLite and MySQL adapters both build their
// transactions on it; PostgreSQL has its own pgx-native implementation.
package sqltx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/internal/rowscan"
	"github.com/sqlbridge/sqlbridge/logging"
)

// Tx is a scoped transaction over one dedicated *sql.Conn. The connection is
// checked out for the transaction's whole lifetime and never visible to any
// other caller. Read statements capture their result set; FetchOne and
// FetchAll consume it.
type Tx struct {
	conn    *sql.Conn
	tx      *sql.Tx
	last    []sqlbridge.Record
	log     *logging.Logger
	release func()
	closed  bool
}

// Begin starts a transaction on conn. release runs exactly once when the
// transaction closes, after the final commit or rollback, regardless of
// outcome; it returns the connection to its source.
func Begin(ctx context.Context, conn *sql.Conn, log *logging.Logger, release func()) (*Tx, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		release()
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &Tx{conn: conn, tx: tx, log: log, release: release}, nil
}

// IsRead reports whether a statement produces a result set worth capturing.
func IsRead(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

// Exec runs one statement inside the transaction. Read statements capture
// their rows and return the captured count; writes clear the captured set
// and return the driver's rows-affected count.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if t.closed {
		return 0, sqlbridge.ErrClosed
	}

	t.log.Debug("tx exec", "query", query)

	if IsRead(query) {
		rows, err := t.tx.QueryContext(ctx, query, args...)
		if err != nil {
			return 0, sqlbridge.WrapQueryError(query, err)
		}
		defer rows.Close() //nolint:errcheck // Rows fully drained below
		records, err := rowscan.Records(rows)
		if err != nil {
			return 0, sqlbridge.WrapQueryError(query, err)
		}
		t.last = records
		return int64(len(records)), nil
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, sqlbridge.WrapQueryError(query, err)
	}
	t.last = nil
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil // Driver cannot report a count; the statement still ran
	}
	return affected, nil
}

// FetchOne returns the first row of the captured result set, or nil when
// nothing was captured.
func (t *Tx) FetchOne(_ context.Context) (sqlbridge.Record, error) {
	if len(t.last) == 0 {
		return nil, nil
	}
	return t.last[0], nil
}

// FetchAll returns the captured result set; empty when nothing was captured.
func (t *Tx) FetchAll(_ context.Context) ([]sqlbridge.Record, error) {
	if t.last == nil {
		return []sqlbridge.Record{}, nil
	}
	return t.last, nil
}

// Commit commits the current transaction and starts a fresh one on the same
// connection so the scope remains usable.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return sqlbridge.ErrClosed
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return t.restart(ctx)
}

// Rollback discards the current transaction and starts a fresh one on the
// same connection.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return sqlbridge.ErrClosed
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return t.restart(ctx)
}

// restart begins the replacement transaction after an explicit commit or
// rollback.
func (t *Tx) restart(ctx context.Context) error {
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		// The scope is unusable without a live transaction; release now
		// rather than strand the connection until Close.
		t.closed = true
		t.release()
		return fmt.Errorf("restarting transaction: %w", err)
	}
	t.tx = tx
	return nil
}

// Close finishes the scope: rollback when cause is non-nil, commit
// otherwise. The connection is released in both cases, and a commit or
// rollback failure is returned only after the release has run.
func (t *Tx) Close(_ context.Context, cause error) error {
	if t.closed {
		return nil
	}
	t.closed = true

	var ferr error
	if cause != nil {
		if err := t.tx.Rollback(); err != nil {
			ferr = fmt.Errorf("rolling back transaction: %w", err)
		}
	} else {
		if err := t.tx.Commit(); err != nil {
			ferr = fmt.Errorf("committing transaction: %w", err)
		}
	}

	t.release()
	return ferr
}
