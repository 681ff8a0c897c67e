package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sqlbridge/sqlbridge"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, `
database:
  type: mysql
  mysql:
    host: db.internal
    user: app
    password: secret
    database: appdb
  max_parallel_queries: 10
placeholder: ["%s"]
loader:
  dir: ./queries
  sync_from: sqlite
migration:
  dir: ./migrations
  auto: true
logging:
  level: debug
  format: pretty
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Engine() != sqlbridge.MySQL {
		t.Errorf("Engine() = %v, want mysql", cfg.Database.Engine())
	}
	if cfg.Database.MySQL.Host != "db.internal" {
		t.Errorf("MySQL.Host = %q", cfg.Database.MySQL.Host)
	}
	if cfg.Database.MySQL.Port != 3306 {
		t.Errorf("MySQL.Port = %d, want default 3306", cfg.Database.MySQL.Port)
	}
	if cfg.Database.MaxParallelQueries != 10 {
		t.Errorf("MaxParallelQueries = %d, want 10", cfg.Database.MaxParallelQueries)
	}
	if len(cfg.Placeholder) != 1 || cfg.Placeholder[0] != "%s" {
		t.Errorf("Placeholder = %v", cfg.Placeholder)
	}
	if cfg.Loader.SyncFrom != "sqlite" {
		t.Errorf("Loader.SyncFrom = %q", cfg.Loader.SyncFrom)
	}
	if !cfg.Migration.Auto {
		t.Error("Migration.Auto = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  sqlite:
    path: ./test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Engine() != sqlbridge.SQLite {
		t.Errorf("Engine() = %v, want sqlite default", cfg.Database.Engine())
	}
	if cfg.Database.MaxParallelQueries != 5 {
		t.Errorf("MaxParallelQueries = %d, want default 5", cfg.Database.MaxParallelQueries)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  type: postgresql
  postgres:
    host: original
    user: app
    password: secret
    database: appdb
`)

	t.Setenv("SQLBRIDGE_POSTGRES_HOST", "overridden")
	t.Setenv("SQLBRIDGE_POSTGRES_PORT", "6432")
	t.Setenv("SQLBRIDGE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Engine() != sqlbridge.Postgres {
		t.Errorf("Engine() = %v, want postgres via alias", cfg.Database.Engine())
	}
	if cfg.Database.Postgres.Host != "overridden" {
		t.Errorf("Postgres.Host = %q, want env override", cfg.Database.Postgres.Host)
	}
	if cfg.Database.Postgres.Port != 6432 {
		t.Errorf("Postgres.Port = %d, want 6432", cfg.Database.Postgres.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unsupported engine",
			content: `
database:
  type: oracle
`,
			wantErr: "unsupported database type",
		},
		{
			name: "mysql missing password",
			content: `
database:
  type: mysql
  mysql:
    host: db.internal
    user: app
    database: appdb
`,
			wantErr: "password is required",
		},
		{
			name: "sqlite missing path",
			content: `
database:
  type: sqlite
  sqlite:
    path: ""
`,
			wantErr: "path is required",
		},
		{
			name: "negative gate size",
			content: `
database:
  sqlite:
    path: ./test.db
  max_parallel_queries: -1
`,
			wantErr: "max_parallel_queries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "database: [not: valid"))
	if err == nil {
		t.Error("Load() expected error for malformed yaml")
	}
}

func TestDatabaseConfig_EngineAliases(t *testing.T) {
	tests := []struct {
		in   string
		want sqlbridge.Engine
	}{
		{"sqlite", sqlbridge.SQLite},
		{"sqlite3", sqlbridge.SQLite},
		{"local", sqlbridge.SQLite},
		{"mysql", sqlbridge.MySQL},
		{"postgres", sqlbridge.Postgres},
		{"postgresql", sqlbridge.Postgres},
	}
	for _, tt := range tests {
		if got := (DatabaseConfig{Type: tt.in}).Engine(); got != tt.want {
			t.Errorf("Engine(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
