package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/logging"
)

// Tx is a scoped transaction over one acquired pool connection. The
// connection is held for the transaction's whole lifetime and never visible
// to any other caller. Read statements (SELECT/WITH) capture their result
// set for FetchOne/FetchAll; writes clear it.
type Tx struct {
	conn   *pgxpool.Conn
	tx     pgx.Tx
	log    *logging.Logger
	last   []sqlbridge.Record
	closed bool
}

// isRead reports whether a statement produces a result set worth capturing.
func isRead(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

// Exec runs one statement inside the transaction, rewriting placeholders to
// numbered markers first. Read statements capture their rows and return the
// captured count; writes clear the captured set and return rows affected.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if t.closed {
		return 0, sqlbridge.ErrClosed
	}

	q := sqlbridge.RewriteNumbered(query)
	t.log.Debug("tx exec", "query", q)

	if isRead(q) {
		rows, err := t.tx.Query(ctx, q, args...)
		if err != nil {
			return 0, sqlbridge.WrapQueryError(q, err)
		}
		records, err := collectRecords(rows)
		if err != nil {
			return 0, sqlbridge.WrapQueryError(q, err)
		}
		t.last = records
		return int64(len(records)), nil
	}

	tag, err := t.tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, sqlbridge.WrapQueryError(q, err)
	}
	t.last = nil
	return tag.RowsAffected(), nil
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
	if err := t.tx.Commit(ctx); err != nil {
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
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return t.restart(ctx)
}

// restart begins the replacement transaction after an explicit commit or
// rollback.
func (t *Tx) restart(ctx context.Context) error {
	tx, err := t.conn.Begin(ctx)
	if err != nil {
		// Without a live transaction the scope is unusable; release now
		// rather than strand the connection until Close.
		t.closed = true
		t.conn.Release()
		return fmt.Errorf("restarting transaction: %w", err)
	}
	t.tx = tx
	return nil
}

// Close finishes the scope: rollback when cause is non-nil, commit
// otherwise. The connection is released in both cases, and a commit or
// rollback failure is returned only after the release has run.
func (t *Tx) Close(ctx context.Context, cause error) error {
	if t.closed {
		return nil
	}
	t.closed = true

	var ferr error
	if cause != nil {
		if err := t.tx.Rollback(ctx); err != nil {
			ferr = fmt.Errorf("rolling back transaction: %w", err)
		}
	} else {
		if err := t.tx.Commit(ctx); err != nil {
			ferr = fmt.Errorf("committing transaction: %w", err)
		}
	}

	t.conn.Release()
	return ferr
}
