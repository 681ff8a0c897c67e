package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/internal/rowscan"
	"github.com/sqlbridge/sqlbridge/internal/sqltx"
	"github.com/sqlbridge/sqlbridge/logging"
)

const (
	// errServerGone is the MySQL server error for a dropped connection
	// ("MySQL server has gone away").
	errServerGone = 2006

	// defaultPoolSize caps the native pool when none is configured.
	defaultPoolSize = 5

	// defaultRetryBudget is the number of lost-connection retries.
	defaultRetryBudget = 1
)

// Config contains MySQL adapter settings.
type Config struct {
	Host     string
	User     string
	Password string
	Database string

	// Port defaults to 3306.
	Port int

	// MaxParallelQueries sizes the native connection pool. Default: 5.
	MaxParallelQueries int

	// RetryBudget bounds automatic retries when the server connection is
	// lost mid-operation. Default: 1.
	RetryBudget int

	// KeepAliveInterval, when positive, pings the pool at this interval
	// from a background goroutine until Close.
	KeepAliveInterval time.Duration

	// Log enables query tracing at debug level.
	Log bool

	// Logger receives query traces and cleanup warnings.
	Logger *logging.Logger
}

// DB is the MySQL adapter. All methods are safe for concurrent use.
type DB struct {
	cfg  Config
	log  *logging.Logger
	db   *sqlx.DB
	stop chan struct{}
}

// New stores the configuration without connecting. Call Connect before use,
// or use Open to do both in one step.
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
		log:  log.With("engine", "mysql"),
		stop: make(chan struct{}),
	}
}

// Open constructs the adapter and opens its pool as one atomic unit,
// returning a fully ready handle.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db := New(cfg)
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// DSN returns the driver connection string built from the configuration.
func (d *DB) DSN() string {
	port := d.cfg.Port
	if port == 0 {
		port = 3306
	}
	mc := gomysql.NewConfig()
	mc.User = d.cfg.User
	mc.Passwd = d.cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", d.cfg.Host, port)
	mc.DBName = d.cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Connect opens the native connection pool and verifies connectivity.
func (d *DB) Connect(ctx context.Context) error {
	db, err := sqlx.Open("mysql", d.DSN())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	size := d.cfg.MaxParallelQueries
	if size <= 0 {
		size = defaultPoolSize
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("verifying database connection: %w", err)
	}

	d.db = db

	if d.cfg.KeepAliveInterval > 0 {
		go d.keepAlive()
	}
	return nil
}

// keepAlive pings the pool periodically so idle connections are replaced
// before the server drops them.
func (d *DB) keepAlive() {
	ticker := time.NewTicker(d.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			if err := d.db.Ping(); err != nil {
				d.log.Warn("keep-alive ping failed", "error", err)
			}
		}
	}
}

// Engine returns the adapter's engine identity.
func (d *DB) Engine() sqlbridge.Engine {
	return sqlbridge.MySQL
}

// retryable reports whether the driver lost the server connection, the one
// condition this engine retries on.
func retryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) {
		return true
	}
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errServerGone
}

// retryBudget returns the configured lost-connection retry count.
func (d *DB) retryBudget() int {
	if d.cfg.RetryBudget > 0 {
		return d.cfg.RetryBudget
	}
	if d.cfg.RetryBudget == 0 {
		return defaultRetryBudget
	}
	return 0
}

// bind resolves named parameters: a single map argument binds :name markers;
// anything else passes through positionally.
func (d *DB) bind(query string, args []any) (string, []any, error) {
	if len(args) == 1 {
		if named, ok := args[0].(map[string]any); ok {
			q, list, err := sqlx.Named(query, named)
			if err != nil {
				return "", nil, fmt.Errorf("binding named parameters: %w", err)
			}
			return d.db.Rebind(q), list, nil
		}
	}
	return query, args, nil
}

// Exec runs one mutating statement and commits it.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sqlbridge.ExecResult, error) {
	return d.exec(ctx, query, args, true)
}

// ExecNoCommit runs one mutating statement inside a transaction that is
// rolled back before the connection returns to the pool; the uncommitted
// work is discarded. Use Begin for multi-statement atomicity.
func (d *DB) ExecNoCommit(ctx context.Context, query string, args ...any) (sqlbridge.ExecResult, error) {
	return d.exec(ctx, query, args, false)
}

func (d *DB) exec(ctx context.Context, query string, args []any, commit bool) (sqlbridge.ExecResult, error) {
	if d.db == nil {
		return sqlbridge.ExecResult{}, sqlbridge.ErrNotConnected
	}

	q, list, err := d.bind(query, args)
	if err != nil {
		return sqlbridge.ExecResult{}, err
	}
	d.log.Debug("exec", "query", q)

	var res sqlbridge.ExecResult
	for attempt := 0; ; attempt++ {
		res, err = d.execOnce(ctx, q, list, commit)
		if err == nil || !retryable(err) || attempt >= d.retryBudget() {
			break
		}
		d.log.Warn("server connection lost, retrying", "attempt", attempt+1)
	}
	return res, err
}

// execOnce runs one statement on a pooled connection. The connection is
// released in a guaranteed cleanup path; on a native error a best-effort
// rollback runs first, its failure logged rather than re-raised.
func (d *DB) execOnce(ctx context.Context, query string, args []any, commit bool) (sqlbridge.ExecResult, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return sqlbridge.ExecResult{}, fmt.Errorf("acquiring connection: %w", err)
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

	var out sqlbridge.ExecResult
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out, nil
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

	q, list, err := d.bind(query, args)
	if err != nil {
		return nil, err
	}
	d.log.Debug("fetch", "query", q)

	var records []sqlbridge.Record
	for attempt := 0; ; attempt++ {
		records, err = d.fetchOnce(ctx, q, list)
		if err == nil || !retryable(err) || attempt >= d.retryBudget() {
			break
		}
		d.log.Warn("server connection lost, retrying", "attempt", attempt+1)
	}
	return records, err
}

func (d *DB) fetchOnce(ctx context.Context, query string, args []any) ([]sqlbridge.Record, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
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

// Commit is a no-op: Exec commits per call.
func (d *DB) Commit(_ context.Context) error { return nil }

// Rollback is a no-op: Exec commits per call.
func (d *DB) Rollback(_ context.Context) error { return nil }

// Begin checks one connection out of the pool for a scoped transaction.
func (d *DB) Begin(ctx context.Context) (sqlbridge.Tx, error) {
	if d.db == nil {
		return nil, sqlbridge.ErrNotConnected
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}

	release := func() {
		conn.Close() //nolint:errcheck // Connection returns to the pool
	}
	return sqltx.Begin(ctx, conn, d.log, release)
}

// Close stops the keep-alive pinger and drains the pool. Idempotent.
func (d *DB) Close() error {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
