// Package setup builds a ready-to-use sqlbridge system from configuration:
// the engine adapter, the query loader, and the migration runner, wired
// together the way the config file describes.
package setup

import (
	"context"
	"fmt"

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/config"
	"github.com/sqlbridge/sqlbridge/loader"
	"github.com/sqlbridge/sqlbridge/logging"
	"github.com/sqlbridge/sqlbridge/migrate"
	"github.com/sqlbridge/sqlbridge/mysql"
	"github.com/sqlbridge/sqlbridge/postgres"
	"github.com/sqlbridge/sqlbridge/sqlite"
)

// System bundles the constructed components. Loader and Migrator are nil
// when their config sections are absent.
type System struct {
	DB       sqlbridge.Database
	Loader   *loader.Loader
	Migrator *migrate.Migrator
}

// Close releases the database's resources.
func (s *System) Close() error {
	return s.DB.Close()
}

// Open constructs and connects the configured engine adapter, builds the
// query loader (running its startup sync when configured), and builds the
// migration runner (applying pending migrations when configured).
//
// Parameters:
//   - ctx: Context for connection establishment
//   - cfg: Validated configuration
//   - log: Logger shared by the components; nil uses the default
//
// Returns:
//   - *System: Ready handle set
//   - error: If any component fails to construct or connect
func Open(ctx context.Context, cfg *config.Config, log *logging.Logger) (*System, error) {
	if log == nil {
		log = logging.Default()
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	sys := &System{DB: db}

	if cfg.Loader.Dir != "" {
		sys.Loader = loader.New(cfg.Loader.Dir, db.Engine(), cfg.Placeholder)

		if cfg.Loader.SyncFrom != "" {
			result, err := sys.Loader.Sync(cfg.Loader.SyncFrom, string(db.Engine()), false)
			if err != nil {
				db.Close() //nolint:errcheck // Best effort cleanup on error path
				return nil, fmt.Errorf("syncing query files: %w", err)
			}
			log.Info("query files synced",
				"from", cfg.Loader.SyncFrom,
				"to", string(db.Engine()),
				"copied", len(result.Copied),
				"skipped", len(result.Skipped),
			)
		}
	}

	if cfg.Migration.Dir != "" {
		migrator, err := migrate.New(ctx, db, cfg.Migration.Dir, cfg.Migration.Auto, log)
		if err != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		sys.Migrator = migrator
	}

	return sys, nil
}

// openDatabase constructs and connects the engine named by the config.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (sqlbridge.Database, error) {
	dc := cfg.Database

	switch dc.Engine() {
	case sqlbridge.SQLite:
		db, err := sqlite.Open(ctx, sqlite.Config{
			Path:               dc.SQLite.Path,
			MemoryMode:         dc.SQLite.MemoryMode,
			MaxParallelQueries: dc.MaxParallelQueries,
			Log:                dc.Log,
			Logger:             log,
		})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return db, nil

	case sqlbridge.MySQL:
		db, err := mysql.Open(ctx, mysql.Config{
			Host:               dc.MySQL.Host,
			User:               dc.MySQL.User,
			Password:           dc.MySQL.Password,
			Database:           dc.MySQL.Database,
			Port:               dc.MySQL.Port,
			MaxParallelQueries: dc.MaxParallelQueries,
			Log:                dc.Log,
			Logger:             log,
		})
		if err != nil {
			return nil, fmt.Errorf("opening mysql: %w", err)
		}
		return db, nil

	case sqlbridge.Postgres:
		db, err := postgres.Open(ctx, postgres.Config{
			Host:        dc.Postgres.Host,
			User:        dc.Postgres.User,
			Password:    dc.Postgres.Password,
			Database:    dc.Postgres.Database,
			Port:        dc.Postgres.Port,
			MaxPoolSize: dc.MaxParallelQueries,
			Log:         dc.Log,
			Logger:      log,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database type %q", dc.Type)
	}
}
