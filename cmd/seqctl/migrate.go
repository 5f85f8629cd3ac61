package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clone-sequence-server/internal/database"
	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|version]",
	Short: "Manage the PostgreSQL journal schema",
	Long: `Apply, roll back or inspect the journal schema migrations.

"up" applies every pending migration, "down" rolls back exactly one and
"version" prints the current schema version. Only the postgres journal driver
uses migrations; journal.migrations_path must point at the migration files.`,
	Example: `  seqctl migrate up
  seqctl migrate version`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// schemaMigrator is the part of database.MigrationRunner the command drives
type schemaMigrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Version() (uint, bool, error)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	runner, err := newJournalMigrations(cfg.Journal, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()

	return applyMigration(cmd.Context(), runner, args[0], cmd.OutOrStdout())
}

func newJournalMigrations(cfg domain.JournalConfig, logger *logrus.Logger) (*database.MigrationRunner, error) {
	if cfg.Driver != "postgres" {
		return nil, fmt.Errorf("migrations only apply to the postgres journal, journal.driver is %q", cfg.Driver)
	}
	if cfg.MigrationsPath == "" {
		return nil, fmt.Errorf("journal.migrations_path is not set")
	}
	return database.NewMigrationRunner(cfg.PostgresURL, cfg.MigrationsPath, logger)
}

func applyMigration(ctx context.Context, m schemaMigrator, action string, w io.Writer) error {
	switch action {
	case "up":
		if err := m.Up(ctx); err != nil {
			return err
		}
	case "down":
		if err := m.Down(ctx); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
	return printVersion(m, w)
}

func printVersion(m schemaMigrator, w io.Writer) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		_, err = fmt.Fprintln(w, "No migrations applied")
		return err
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		_, err = fmt.Fprintf(w, "Schema version %d (dirty)\n", version)
		return err
	}
	_, err = fmt.Fprintf(w, "Schema version %d\n", version)
	return err
}
