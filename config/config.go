package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sqlbridge/sqlbridge"
	"github.com/sqlbridge/sqlbridge/logging"
)

// Config is the root configuration structure for sqlbridge.
type Config struct {
	Database    DatabaseConfig  `yaml:"database"`
	Placeholder []string        `yaml:"placeholder"`
	Loader      LoaderConfig    `yaml:"loader"`
	Migration   MigrationConfig `yaml:"migration"`
	Logging     logging.Config  `yaml:"logging"`
}

// DatabaseConfig selects the engine and carries per-engine connection
// settings. Exactly the section matching Type is consulted.
type DatabaseConfig struct {
	// Type is the engine: sqlite | mysql | postgres.
	Type string `yaml:"type"`

	SQLite   SQLiteConfig `yaml:"sqlite"`
	MySQL    ServerConfig `yaml:"mysql"`
	Postgres ServerConfig `yaml:"postgres"`

	// MaxParallelQueries caps concurrent connection operations per adapter
	// instance: the pool size for networked engines, the admission gate for
	// SQLite file mode.
	MaxParallelQueries int `yaml:"max_parallel_queries"`

	// Log enables query tracing at debug level.
	Log bool `yaml:"log"`
}

// SQLiteConfig contains single-file engine settings.
type SQLiteConfig struct {
	// Path is the database file path. The parent directory is created if
	// it does not exist. Ignored in memory mode.
	Path string `yaml:"path"`

	// MemoryMode selects a single in-memory database over one persistent
	// serialized connection. Transactions are unavailable in this mode.
	MemoryMode bool `yaml:"memory_mode"`
}

// ServerConfig contains networked engine connection settings.
type ServerConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Port     int    `yaml:"port"`
}

// LoaderConfig contains query-file loader settings.
type LoaderConfig struct {
	// Dir is the query-file search root. Empty disables the loader.
	Dir string `yaml:"dir"`

	// SyncFrom, when set, copies query files from <Dir>/<SyncFrom>/ into
	// the active engine's directory at startup.
	SyncFrom string `yaml:"sync_from"`
}

// MigrationConfig contains migration runner settings.
type MigrationConfig struct {
	// Dir is the directory holding .sql migration files. Empty disables
	// the migrator.
	Dir string `yaml:"dir"`

	// Auto applies pending migrations immediately at setup.
	Auto bool `yaml:"auto"`
}

// Engine returns the configured engine identity.
func (c DatabaseConfig) Engine() sqlbridge.Engine {
	switch c.Type {
	case "sqlite", "sqlite3", "local":
		return sqlbridge.SQLite
	case "postgresql":
		return sqlbridge.Postgres
	default:
		return sqlbridge.Engine(c.Type)
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:               "sqlite",
			SQLite:             SQLiteConfig{Path: "./data/sqlbridge.db"},
			MySQL:              ServerConfig{Port: 3306},
			Postgres:           ServerConfig{Port: 5432},
			MaxParallelQueries: 5,
		},
		Placeholder: nil,
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Only settings that commonly differ between deployments
// (engine selection, credentials, paths) are overridable.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLBRIDGE_DATABASE_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("SQLBRIDGE_SQLITE_PATH"); v != "" {
		cfg.Database.SQLite.Path = v
	}

	overrideServer("SQLBRIDGE_MYSQL", &cfg.Database.MySQL)
	overrideServer("SQLBRIDGE_POSTGRES", &cfg.Database.Postgres)

	if v := os.Getenv("SQLBRIDGE_LOADER_DIR"); v != "" {
		cfg.Loader.Dir = v
	}
	if v := os.Getenv("SQLBRIDGE_MIGRATION_DIR"); v != "" {
		cfg.Migration.Dir = v
	}
	if v := os.Getenv("SQLBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// overrideServer applies <prefix>_HOST/_USER/_PASSWORD/_DATABASE/_PORT
// environment overrides to a networked engine section.
func overrideServer(prefix string, sc *ServerConfig) {
	if v := os.Getenv(prefix + "_HOST"); v != "" {
		sc.Host = v
	}
	if v := os.Getenv(prefix + "_USER"); v != "" {
		sc.User = v
	}
	if v := os.Getenv(prefix + "_PASSWORD"); v != "" {
		sc.Password = v
	}
	if v := os.Getenv(prefix + "_DATABASE"); v != "" {
		sc.Database = v
	}
	if v := os.Getenv(prefix + "_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			sc.Port = port
		}
	}
}

// Validate checks that the configuration names a supported engine and
// carries every required connection parameter for it.
func (c *Config) Validate() error {
	engine := c.Database.Engine()
	if !engine.Valid() {
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	switch engine {
	case sqlbridge.SQLite:
		if !c.Database.SQLite.MemoryMode && c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite: path is required")
		}
	case sqlbridge.MySQL:
		if err := validateServer("mysql", c.Database.MySQL); err != nil {
			return err
		}
	case sqlbridge.Postgres:
		if err := validateServer("postgres", c.Database.Postgres); err != nil {
			return err
		}
	}

	if c.Database.MaxParallelQueries < 0 {
		return fmt.Errorf("max_parallel_queries must not be negative")
	}
	return nil
}

// validateServer checks the required parameters of a networked engine.
func validateServer(name string, sc ServerConfig) error {
	for _, f := range []struct {
		field, value string
	}{
		{"host", sc.Host},
		{"user", sc.User},
		{"password", sc.Password},
		{"database", sc.Database},
	} {
		if f.value == "" {
			return fmt.Errorf("%s: %s is required", name, f.field)
		}
	}
	return nil
}
