// sqlbridge - uniform multi-engine database access layer
//
// This is the command-line entry point. Two subcommands:
//
//	sync     copy query files between per-engine directories
//	migrate  apply pending schema migrations from a config file
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sqlbridge/sqlbridge/config"
	"github.com/sqlbridge/sqlbridge/loader"
	"github.com/sqlbridge/sqlbridge/logging"
	"github.com/sqlbridge/sqlbridge/setup"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var version = "dev"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) so a long migration
	// run can be stopped cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches the subcommand, separated from main for testability.
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("a subcommand is required")
	}

	switch args[0] {
	case "sync":
		return runSync(args[1:])
	case "migrate":
		return runMigrate(ctx, args[1:])
	case "version":
		fmt.Println(version)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  sqlbridge sync --from <engine> --to <engine> [--path <dir>] [--overwrite]
  sqlbridge migrate --config <file>
  sqlbridge version`)
}

// runSync copies query files from <path>/<from>/ to <path>/<to>/ and prints
// a copied/skipped summary.
func runSync(args []string) error {
	flags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	from := flags.String("from", "", "source engine directory (e.g. sqlite, mysql, postgres)")
	to := flags.String("to", "", "target engine directory")
	path := flags.String("path", "", "query directory root (default: current directory)")
	overwrite := flags.Bool("overwrite", false, "overwrite existing files")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" {
		return fmt.Errorf("sync requires --from and --to")
	}

	dir := *path
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		dir = wd
	}

	l := loader.New(dir, "", nil)
	result, err := l.Sync(*from, *to, *overwrite)
	if err != nil {
		return err
	}

	fmt.Printf("Synced %s -> %s\n", *from, *to)
	fmt.Printf("Copied: %d files\n", len(result.Copied))
	for _, f := range result.Copied {
		fmt.Printf("  - %s\n", f)
	}
	fmt.Printf("Skipped: %d files\n", len(result.Skipped))
	for _, f := range result.Skipped {
		fmt.Printf("  - %s\n", f)
	}
	return nil
}

// runMigrate opens the configured database and applies pending migrations.
func runMigrate(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	configPath := flags.String("config", "sqlbridge.yaml", "configuration file path")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Migration.Dir == "" {
		return fmt.Errorf("no migration directory configured")
	}

	log := logging.New(cfg.Logging, version)

	// Force a manual run regardless of the auto flag; the subcommand's
	// whole purpose is to apply now.
	cfg.Migration.Auto = false

	sys, err := setup.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sys.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sys.Migrator.Apply(ctx); err != nil {
		return err
	}

	log.Info("migrations complete")
	return nil
}
