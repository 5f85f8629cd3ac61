package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/cache"
	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/health"
	"github.com/clone-sequence-server/internal/journal"
	"github.com/clone-sequence-server/internal/service"
	"github.com/clone-sequence-server/pkg/blast"
	"github.com/clone-sequence-server/pkg/tbl2asn"
)

// Version is reported by the health endpoint and the CLI
const Version = "1.0.0"

// App holds the wired components shared by the server and the CLI
type App struct {
	Client      *blast.Client
	Hits        *cache.HitCache // nil when caching is disabled
	Journal     journal.Store
	Search      *service.SearchService
	Submissions *service.SubmissionService
	Health      *health.Checker
	logger      *logrus.Logger
}

// New wires the search and submission services from configuration.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	store, err := journal.Open(ctx, cfg.Journal, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open job journal: %w", err)
	}
	journal.PruneOlderThan(ctx, store, cfg.Journal.Retention, logger)

	var hits *cache.HitCache
	if cfg.Cache.Enabled {
		hits, err = cache.New(cfg.Cache, logger)
		if err != nil {
			// Redis is a best-effort second tier
			logger.WithError(err).Warn("Redis unavailable, using in-memory hit cache only")
			hits = cache.NewWithClient(cfg.Cache, nil, logger)
		}
	}

	client := blast.NewClient(cfg.Blast, logger)
	pipeline := tbl2asn.NewPipeline(cfg.Tbl2asn, logger)

	a := &App{
		Client:      client,
		Hits:        hits,
		Journal:     store,
		Search:      service.NewSearchService(client, hits, store, cfg.Blast, logger),
		Submissions: service.NewSubmissionService(pipeline, store, cfg.Tbl2asn.MaxConcurrency, logger),
		Health:      health.NewChecker(Version, 5*time.Second, logger),
		logger:      logger,
	}

	a.Health.RegisterCheck(&health.JournalHealthCheck{Store: store})
	a.Health.RegisterCheck(&health.RemoteServiceHealthCheck{Breaker: client})
	a.Health.RegisterCheck(&health.ToolHealthCheck{Binary: cfg.Tbl2asn.BinaryPath})
	if hits != nil {
		a.Health.RegisterCheck(&health.CacheHealthCheck{Cache: hits})
	}

	logger.WithFields(logrus.Fields{
		"remote":         client.Config().BaseURL,
		"min_interval":   client.Config().MinInterval.String(),
		"cache":          cfg.Cache.Enabled,
		"journal_driver": cfg.Journal.Driver,
		"tbl2asn":        cfg.Tbl2asn.BinaryPath,
	}).Info("Components initialized")

	return a, nil
}

// Close releases the cache and journal connections
func (a *App) Close() error {
	var errs []error
	if a.Hits != nil {
		if err := a.Hits.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing hit cache: %w", err))
		}
	}
	if err := a.Journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing journal: %w", err))
	}
	return errors.Join(errs...)
}
