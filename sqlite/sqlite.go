package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/internal/gate"
	"github.com/sqlbridge/sqlbridge/internal/rowscan"
	"github.com/sqlbridge/sqlbridge/internal/sqltx"
	"github.com/sqlbridge/sqlbridge/logging"
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// defaultBusyTimeout is the lock wait in seconds applied when the
	// configuration supplies none.
	defaultBusyTimeout = 5

	// msPerSecond converts seconds to milliseconds for the pragma string.
	msPerSecond = 1000
)

// Config contains SQLite adapter settings.
type Config struct {
	// Path is the filesystem path to the database file. The parent
	// directory is created if it doesn't exist. Ignored in memory mode.
	Path string

	// MemoryMode selects one in-memory database over a single persistent
	// serialized connection.
	MemoryMode bool

	// MaxParallelQueries caps concurrent per-call connections in file
	// mode. Default: 5.
	MaxParallelQueries int

	// BusyTimeout is the maximum time to wait for a database lock
	// (seconds). Prevents "database is locked" errors under contention.
	BusyTimeout int

	// Log enables query tracing at debug level.
	Log bool

	// Logger receives query traces and cleanup warnings. Nil falls back to
	// a discarding logger unless Log is set, in which case the default
	// logger is used.
	Logger *logging.Logger
}

// DB is the SQLite adapter. All methods are safe for concurrent use.
type DB struct {
	cfg  Config
	log  *logging.Logger
	gate *gate.Gate

	db *sqlx.DB

	// Memory mode state: one persistent connection, serialized by mu. A
	// pending transaction opened by ExecNoCommit lives here until Commit
	// or Rollback.
	mu      sync.Mutex
	conn    *sql.Conn
	pending *sql.Tx

	closed bool
}

// New stores the configuration without touching the filesystem. Call
// Connect before use, or use Open to do both in one step.
func New(cfg Config) *DB {
	log := cfg.Logger
	if log == nil {
		if cfg.Log {
			log = logging.Default()
		} else {
			log = logging.Discard()
		}
	}
	return &DB{
		cfg:  cfg,
		log:  log.With("engine", "sqlite"),
		gate: gate.New(cfg.MaxParallelQueries),
	}
}

// Open constructs the adapter and opens its connection source as one atomic
// unit, returning a fully ready handle.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db := New(cfg)
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Connect opens the connection source: the persistent serialized connection
// in memory mode, the file-backed pool otherwise. File mode creates the
// database directory if needed and verifies connectivity with a ping.
func (d *DB) Connect(ctx context.Context) error {
	target := ":memory:"
	if !d.cfg.MemoryMode {
		dir := filepath.Dir(d.cfg.Path)
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		target = d.cfg.Path
	}

	busy := d.cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		target,
		busy*msPerSecond,
	)

	db, err := sqlx.Open("sqlite3", connStr)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if d.cfg.MemoryMode {
		// The one and only physical connection. Capping the pool at a
		// single conn keeps the in-memory database alive for the
		// adapter's lifetime.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		conn, err := db.Conn(ctx)
		if err != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return fmt.Errorf("opening persistent connection: %w", err)
		}
		d.conn = conn
	} else {
		db.SetMaxOpenConns(d.gateSlots())
		if err := db.PingContext(ctx); err != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return fmt.Errorf("verifying database connection: %w", err)
		}
	}

	d.db = db
	return nil
}

// gateSlots returns the configured per-call connection cap.
func (d *DB) gateSlots() int {
	if d.cfg.MaxParallelQueries > 0 {
		return d.cfg.MaxParallelQueries
	}
	return gate.DefaultSlots
}

// Engine returns the adapter's engine identity.
func (d *DB) Engine() sqlbridge.Engine {
	return sqlbridge.SQLite
}

// Exec runs one mutating statement and commits it.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sqlbridge.ExecResult, error) {
	return d.exec(ctx, query, args, true)
}

// ExecNoCommit runs one mutating statement without committing. In memory
// mode the work stays pending on the persistent connection until Commit or
// Rollback; in file mode the uncommitted work is discarded when the
// per-call connection is released.
func (d *DB) ExecNoCommit(ctx context.Context, query string, args ...any) (sqlbridge.ExecResult, error) {
	return d.exec(ctx, query, args, false)
}

func (d *DB) exec(ctx context.Context, query string, args []any, commit bool) (sqlbridge.ExecResult, error) {
	if d.db == nil {
		return sqlbridge.ExecResult{}, sqlbridge.ErrNotConnected
	}
	d.log.Debug("exec", "query", query)

	if d.cfg.MemoryMode {
		return d.execMemory(ctx, query, args, commit)
	}
	return d.execFile(ctx, query, args, commit)
}

// execMemory runs a statement on the persistent serialized connection.
// With commit=false the statement joins (or opens) the pending transaction;
// with commit=true any pending transaction is committed along with it.
func (d *DB) execMemory(ctx context.Context, query string, args []any, commit bool) (sqlbridge.ExecResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !commit && d.pending == nil {
		tx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return sqlbridge.ExecResult{}, fmt.Errorf("starting deferred transaction: %w", err)
		}
		d.pending = tx
	}

	var (
		res sql.Result
		err error
	)
	if d.pending != nil {
		res, err = d.pending.ExecContext(ctx, query, args...)
	} else {
		res, err = d.conn.ExecContext(ctx, query, args...)
	}
	if err != nil {
		d.discardPending()
		return sqlbridge.ExecResult{}, sqlbridge.WrapQueryError(query, err)
	}

	if commit && d.pending != nil {
		if err := d.pending.Commit(); err != nil {
			d.pending = nil
			return sqlbridge.ExecResult{}, fmt.Errorf("committing: %w", err)
		}
		d.pending = nil
	}

	return execResult(res), nil
}

// execFile runs a statement on a fresh per-call connection behind the gate.
// commit=false executes inside a transaction that is rolled back before the
// connection is released, so uncommitted work never becomes visible.
func (d *DB) execFile(ctx context.Context, query string, args []any, commit bool) (sqlbridge.ExecResult, error) {
	if err := d.gate.Acquire(ctx); err != nil {
		return sqlbridge.ExecResult{}, fmt.Errorf("acquiring connection slot: %w", err)
	}
	defer d.gate.Release()

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return sqlbridge.ExecResult{}, fmt.Errorf("opening connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck // Connection returns to the pool

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return sqlbridge.ExecResult{}, fmt.Errorf("starting transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			d.log.Warn("rollback failed", "error", rerr)
		}
		return sqlbridge.ExecResult{}, sqlbridge.WrapQueryError(query, err)
	}

	if commit {
		if err := tx.Commit(); err != nil {
			return sqlbridge.ExecResult{}, fmt.Errorf("committing: %w", err)
		}
	} else {
		if err := tx.Rollback(); err != nil {
			d.log.Warn("rollback failed", "error", err)
		}
	}

	return execResult(res), nil
}

// FetchOne returns the first matching row, or nil when no row matches.
func (d *DB) FetchOne(ctx context.Context, query string, args ...any) (sqlbridge.Record, error) {
	records, err := d.fetch(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// FetchAll returns every matching row; an empty slice when none match.
func (d *DB) FetchAll(ctx context.Context, query string, args ...any) ([]sqlbridge.Record, error) {
	return d.fetch(ctx, query, args)
}

func (d *DB) fetch(ctx context.Context, query string, args []any) ([]sqlbridge.Record, error) {
	if d.db == nil {
		return nil, sqlbridge.ErrNotConnected
	}
	d.log.Debug("fetch", "query", query)

	if d.cfg.MemoryMode {
		d.mu.Lock()
		defer d.mu.Unlock()

		var (
			rows *sql.Rows
			err  error
		)
		if d.pending != nil {
			rows, err = d.pending.QueryContext(ctx, query, args...)
		} else {
			rows, err = d.conn.QueryContext(ctx, query, args...)
		}
		if err != nil {
			return nil, sqlbridge.WrapQueryError(query, err)
		}
		defer rows.Close() //nolint:errcheck // Rows fully drained below
		records, err := rowscan.Records(rows)
		if err != nil {
			return nil, sqlbridge.WrapQueryError(query, err)
		}
		return records, nil
	}

	if err := d.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquiring connection slot: %w", err)
	}
	defer d.gate.Release()

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck // Connection returns to the pool

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlbridge.WrapQueryError(query, err)
	}
	defer rows.Close() //nolint:errcheck // Rows fully drained below
	records, err := rowscan.Records(rows)
	if err != nil {
		return nil, sqlbridge.WrapQueryError(query, err)
	}
	return records, nil
}

// Commit commits work left pending by ExecNoCommit. File mode has no
// pending work to commit; the call is a no-op there.
func (d *DB) Commit(_ context.Context) error {
	if !d.cfg.MemoryMode {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	err := d.pending.Commit()
	d.pending = nil
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Rollback discards work left pending by ExecNoCommit. No-op in file mode.
func (d *DB) Rollback(_ context.Context) error {
	if !d.cfg.MemoryMode {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	err := d.pending.Rollback()
	d.pending = nil
	if err != nil {
		return fmt.Errorf("rolling back: %w", err)
	}
	return nil
}

// discardPending rolls back the pending transaction after a failed
// statement. Best effort: a rollback failure is logged, not re-raised.
func (d *DB) discardPending() {
	if d.pending == nil {
		return
	}
	if err := d.pending.Rollback(); err != nil {
		d.log.Warn("rollback failed", "error", err)
	}
	d.pending = nil
}

// Begin checks out one dedicated connection for a scoped transaction. The
// connection holds its gate slot for the transaction's whole lifetime.
// Memory mode refuses: a fresh connection to an in-memory database sees a
// separate empty database.
func (d *DB) Begin(ctx context.Context) (sqlbridge.Tx, error) {
	if d.db == nil {
		return nil, sqlbridge.ErrNotConnected
	}
	if d.cfg.MemoryMode {
		return nil, sqlbridge.ErrMemoryModeTransaction
	}

	if err := d.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquiring connection slot: %w", err)
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		d.gate.Release()
		return nil, fmt.Errorf("opening connection: %w", err)
	}

	release := func() {
		conn.Close() //nolint:errcheck // Connection returns to the pool
		d.gate.Release()
	}
	return sqltx.Begin(ctx, conn, d.log, release)
}

// Close releases the persistent connection and the pool. Idempotent.
func (d *DB) Close() error {
	if d.closed || d.db == nil {
		return nil
	}
	d.closed = true

	d.mu.Lock()
	d.discardPending()
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.log.Warn("closing persistent connection failed", "error", err)
		}
		d.conn = nil
	}
	d.mu.Unlock()

	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// execResult extracts last-insert-id and rows-affected, tolerating drivers
// that cannot report one of them.
func execResult(res sql.Result) sqlbridge.ExecResult {
	var out sqlbridge.ExecResult
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out
}
