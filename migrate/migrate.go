package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/logging"
)

// Migrator applies .sql migration files from a directory through a Database.
type Migrator struct {
	db  sqlbridge.Database
	dir string
	log *logging.Logger
}

// New creates a migrator and ensures the migrations tracking table exists.
// When autoRun is set, pending migrations are applied immediately.
func New(ctx context.Context, db sqlbridge.Database, dir string, autoRun bool, log *logging.Logger) (*Migrator, error) {
	if log == nil {
		log = logging.Discard()
	}
	m := &Migrator{
		db:  db,
		dir: dir,
		log: log.With("component", "migrate"),
	}

	if err := m.createTable(ctx); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	if autoRun {
		if err := m.Apply(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// createTable creates the tracking table with the engine's DDL dialect.
func (m *Migrator) createTable(ctx context.Context) error {
	var ddl string
	switch m.db.Engine() {
	case sqlbridge.SQLite:
		ddl = `CREATE TABLE IF NOT EXISTS migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`
	case sqlbridge.Postgres:
		ddl = `CREATE TABLE IF NOT EXISTS migrations (
			filename VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS migrations (
			filename VARCHAR(255) PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`
	}
	_, err := m.db.Exec(ctx, ddl)
	return err
}

// Apply runs every pending migration file in lexical order. The first
// failure aborts the run; already-applied files stand.
func (m *Migrator) Apply(ctx context.Context) error {
	files, err := m.files()
	if err != nil {
		return err
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}

	for _, file := range files {
		if applied[file] {
			continue
		}
		if err := m.applyOne(ctx, file); err != nil {
			return fmt.Errorf("applying migration %s: %w", file, err)
		}
		m.log.Info("migration applied", "file", file)
	}
	return nil
}

// applyOne runs one migration file's statements inside a scoped transaction
// and records the filename on success.
func (m *Migrator) applyOne(ctx context.Context, file string) error {
	data, err := os.ReadFile(filepath.Join(m.dir, file))
	if err != nil {
		return fmt.Errorf("reading migration file: %w", err)
	}

	err = sqlbridge.WithTx(ctx, m.db, func(tx sqlbridge.Tx) error {
		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	insert := "INSERT INTO migrations (filename) VALUES (?)"
	if m.db.Engine().Numbered() {
		insert = "INSERT INTO migrations (filename) VALUES ($1)"
	}
	if _, err := m.db.Exec(ctx, insert, file); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return nil
}

// Applied returns the set of filenames recorded as applied.
func (m *Migrator) Applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.FetchAll(ctx, "SELECT filename FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(rows))
	for _, row := range rows {
		if name, ok := row["filename"].(string); ok {
			applied[name] = true
		}
	}
	return applied, nil
}

// Pending returns the migration files not yet applied, in apply order.
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	files, err := m.files()
	if err != nil {
		return nil, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}

	pending := []string{}
	for _, file := range files {
		if !applied[file] {
			pending = append(pending, file)
		}
	}
	return pending, nil
}

// files returns the .sql filenames under the migration directory in lexical
// sort order, regardless of filesystem listing order.
func (m *Migrator) files() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading migration directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}
