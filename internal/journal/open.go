package journal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/database"
	"github.com/clone-sequence-server/internal/domain"
)

// Open builds the store selected by cfg.Driver. For PostgreSQL the schema
// migrations run first when a migrations path is configured.
func Open(ctx context.Context, cfg domain.JournalConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		logger.Info("Job journal disabled")
		return NopStore{}, nil

	case "sqlite":
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite journal: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("SQLite job journal opened")
		return store, nil

	case "postgres":
		if cfg.MigrationsPath != "" {
			if err := migrateUp(ctx, cfg, logger); err != nil {
				return nil, err
			}
		}

		conn, err := database.NewConnection(ctx, database.Config{
			Driver:      cfg.PostgresDriver,
			URL:         cfg.PostgresURL,
			MaxConns:    cfg.MaxOpenConns,
			MaxIdle:     cfg.MaxIdleConns,
			MaxConnLife: cfg.ConnMaxLife,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres journal: %w", err)
		}

		store, err := NewPostgresStore(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported journal driver: %s", cfg.Driver)
	}
}

func migrateUp(ctx context.Context, cfg domain.JournalConfig, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(cfg.PostgresURL, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()
	return runner.Up(ctx)
}

// PruneOlderThan removes entries past the retention window. A zero
// retention keeps everything.
func PruneOlderThan(ctx context.Context, store Store, retention time.Duration, logger *logrus.Logger) {
	if retention <= 0 {
		return
	}
	removed, err := store.Prune(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		logger.WithError(err).Warn("Failed to prune job journal")
		return
	}
	if removed > 0 {
		logger.WithFields(logrus.Fields{
			"removed":   removed,
			"retention": retention.String(),
		}).Info("Pruned job journal")
	}
}

// NopStore discards every entry. It backs the "none" driver.
type NopStore struct{}

func (NopStore) Record(context.Context, *Entry) error { return nil }

func (NopStore) List(context.Context, Filter) ([]*Entry, error) { return []*Entry{}, nil }

func (NopStore) Count(context.Context) (int64, error) { return 0, nil }

func (NopStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (NopStore) ExportJSON(_ context.Context, writer io.Writer) error {
	return writeExport(writer, nil)
}

func (NopStore) Ping(context.Context) error { return nil }

func (NopStore) Close() error { return nil }

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = NopStore{}
)
