package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/logging"
)

// defaultPoolSize caps the native pool when none is configured.
const defaultPoolSize = 5

// Config contains PostgreSQL adapter settings.
type Config struct {
	Host     string
	User     string
	Password string
	Database string

	// Port defaults to 5432.
	Port int

	// MaxPoolSize sizes the native connection pool. Default: 5.
	MaxPoolSize int

	// Log enables query tracing at debug level.
	Log bool

	// Logger receives query traces and cleanup warnings.
	Logger *logging.Logger
}

// DB is the PostgreSQL adapter. All methods are safe for concurrent use.
type DB struct {
	cfg  Config
	log  *logging.Logger
	pool *pgxpool.Pool
}

// New stores the configuration without connecting. Pool creation is itself
// an I/O operation, so construction is split: call Connect before use, or
// use Open to do both in one step.
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
		cfg: cfg,
		log: log.With("engine", "postgres"),
	}
}

// Open constructs the adapter and creates its pool as one atomic unit,
// returning a fully ready handle.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db := New(cfg)
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// ConnString returns the pool connection string built from the
// configuration.
func (d *DB) ConnString() string {
	port := d.cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.cfg.User, d.cfg.Password),
		Host:   fmt.Sprintf("%s:%d", d.cfg.Host, port),
		Path:   "/" + d.cfg.Database,
	}
	return u.String()
}

// Connect creates the native connection pool and verifies connectivity.
func (d *DB) Connect(ctx context.Context) error {
	pc, err := pgxpool.ParseConfig(d.ConnString())
	if err != nil {
		return fmt.Errorf("parsing connection config: %w", err)
	}

	size := d.cfg.MaxPoolSize
	if size <= 0 {
		size = defaultPoolSize
	}
	pc.MinConns = 1
	pc.MaxConns = int32(size)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("verifying database connection: %w", err)
	}

	d.pool = pool
	return nil
}

// Engine returns the adapter's engine identity.
func (d *DB) Engine() sqlbridge.Engine {
	return sqlbridge.Postgres
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
	if d.pool == nil {
		return sqlbridge.ExecResult{}, sqlbridge.ErrNotConnected
	}

	q := sqlbridge.RewriteNumbered(query)
	d.log.Debug("exec", "query", q)

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return sqlbridge.ExecResult{}, fmt.Errorf("starting transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		if rerr := tx.Rollback(ctx); rerr != nil {
			d.log.Warn("rollback failed", "error", rerr)
		}
		return sqlbridge.ExecResult{}, sqlbridge.WrapQueryError(q, err)
	}

	if commit {
		if err := tx.Commit(ctx); err != nil {
			return sqlbridge.ExecResult{}, fmt.Errorf("committing: %w", err)
		}
	} else {
		if err := tx.Rollback(ctx); err != nil {
			d.log.Warn("rollback failed", "error", err)
		}
	}

	// PostgreSQL has no last-insert-id; use RETURNING with FetchOne when
	// the generated key is needed.
	return sqlbridge.ExecResult{RowsAffected: tag.RowsAffected()}, nil
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

// fetch runs a read inside a transaction and rolls it back before the
// connection returns to the pool, closing the read transaction the pool
// would otherwise leave open.
func (d *DB) fetch(ctx context.Context, query string, args []any) ([]sqlbridge.Record, error) {
	if d.pool == nil {
		return nil, sqlbridge.ErrNotConnected
	}

	q := sqlbridge.RewriteNumbered(query)
	d.log.Debug("fetch", "query", q)

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !isTxDone(err) {
			d.log.Warn("rollback failed", "error", err)
		}
	}()

	rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return nil, sqlbridge.WrapQueryError(q, err)
	}

	records, err := collectRecords(rows)
	if err != nil {
		return nil, sqlbridge.WrapQueryError(q, err)
	}
	return records, nil
}

// isTxDone filters the benign "transaction already closed" rollback result.
func isTxDone(err error) bool {
	return err == pgx.ErrTxClosed
}

// collectRecords drains pgx rows into column-name-keyed records.
func collectRecords(rows pgx.Rows) ([]sqlbridge.Record, error) {
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	records := make([]sqlbridge.Record, 0, len(maps))
	for _, m := range maps {
		records = append(records, sqlbridge.Record(m))
	}
	return records, nil
}

// Commit is a no-op: Exec commits per call.
func (d *DB) Commit(_ context.Context) error { return nil }

// Rollback is a no-op: Exec commits per call.
func (d *DB) Rollback(_ context.Context) error { return nil }

// Begin acquires one pooled connection for a scoped transaction.
func (d *DB) Begin(ctx context.Context) (sqlbridge.Tx, error) {
	if d.pool == nil {
		return nil, sqlbridge.ErrNotConnected
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("starting transaction: %w", err)
	}

	return &Tx{conn: conn, tx: tx, log: d.log}, nil
}

// Close drains and closes the pool, waiting for in-flight operations.
// Idempotent.
func (d *DB) Close() error {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}
