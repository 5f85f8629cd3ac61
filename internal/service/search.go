package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/cache"
	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/journal"
	"github.com/clone-sequence-server/pkg/blast"
)

// Searcher is the part of blast.Client the search service drives
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.RemoteJob, []domain.HitRecord, error)
	ResolveDatabase(program domain.Program, requested string) string
}

// Status recorded when a request failed before the remote service issued a job ID
const statusNotSubmitted = "not_submitted"

// SearchService fronts the remote search client with the hit cache and
// records each remote job in the journal.
type SearchService struct {
	searcher Searcher
	hits     *cache.HitCache
	journal  journal.Store
	maxHits  int
	workers  int
	logger   *logrus.Logger
}

// NewSearchService creates a new search service. hits may be nil to run
// without caching.
func NewSearchService(searcher Searcher, hits *cache.HitCache, store journal.Store, config domain.BlastConfig, logger *logrus.Logger) *SearchService {
	config = blast.ApplyDefaults(config)
	if store == nil {
		store = journal.NopStore{}
	}
	return &SearchService{
		searcher: searcher,
		hits:     hits,
		journal:  store,
		maxHits:  config.MaxHits,
		workers:  config.MaxConcurrency,
		logger:   logger,
	}
}

// RunSearch returns up to the configured number of ranked hits for req.
func (s *SearchService) RunSearch(ctx context.Context, req domain.SearchRequest) ([]domain.HitRecord, error) {
	normalized, err := blast.NormalizeRequest(req)
	if err != nil {
		return nil, err
	}

	key := ""
	if s.hits != nil {
		database := s.searcher.ResolveDatabase(normalized.Program, normalized.Database)
		key = cache.Key(normalized, database, s.maxHits)
		if hits, ok := s.hits.Get(ctx, key); ok {
			s.logger.WithFields(logrus.Fields{
				"program":  normalized.Program,
				"database": database,
				"hits":     len(hits),
			}).Debug("Search served from cache")
			return hits, nil
		}
	}

	start := time.Now()
	job, hits, err := s.searcher.Search(ctx, normalized)
	s.recordSearch(ctx, job, err)

	if err != nil {
		fields := logrus.Fields{"program": normalized.Program, "duration": time.Since(start).String()}
		if job != nil {
			fields["job_id"] = job.ID
			fields["attempts"] = job.Attempts
		}
		s.logger.WithFields(fields).WithError(err).Warn("Search failed")
		return nil, err
	}

	if key != "" {
		s.hits.Set(ctx, key, hits)
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"attempts": job.Attempts,
		"hits":     len(hits),
		"duration": time.Since(start).String(),
	}).Info("Search completed")

	return hits, nil
}

// Forget drops the cached hits for req so the next RunSearch goes to the
// remote service. It is a no-op without a cache.
func (s *SearchService) Forget(ctx context.Context, req domain.SearchRequest) error {
	normalized, err := blast.NormalizeRequest(req)
	if err != nil {
		return err
	}
	if s.hits == nil {
		return nil
	}
	database := s.searcher.ResolveDatabase(normalized.Program, normalized.Database)
	if err := s.hits.Invalidate(ctx, cache.Key(normalized, database, s.maxHits)); err != nil {
		return fmt.Errorf("failed to invalidate cached hits: %w", err)
	}
	return nil
}

// BatchResult is the outcome of one request in a batch, kept at the
// request's position.
type BatchResult struct {
	Index int
	Hits  []domain.HitRecord
	Err   error
}

// RunBatch runs every request with at most the configured number in flight.
// Results keep the order of reqs. A cancelled context fails the requests
// that had not started yet with ErrCancelled.
func (s *SearchService) RunBatch(ctx context.Context, reqs []domain.SearchRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, req := range reqs {
		results[i].Index = i

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
			continue
		}

		wg.Add(1)
		go func(i int, req domain.SearchRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Hits, results[i].Err = s.RunSearch(ctx, req)
		}(i, req)
	}

	wg.Wait()
	return results
}

func (s *SearchService) recordSearch(ctx context.Context, job *domain.RemoteJob, searchErr error) {
	var ve *domain.ValidationError
	if errors.As(searchErr, &ve) {
		return
	}

	entry := &journal.Entry{Kind: journal.KindSearch, Status: statusNotSubmitted}
	if job != nil {
		entry.Reference = job.ID
		entry.Status = string(job.Status)
		entry.Attempts = job.Attempts
	}
	if searchErr != nil {
		entry.Detail = domain.Truncate(searchErr.Error())
	}

	// The journal write must survive the caller cancelling the search.
	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.WithError(err).WithField("job_id", entry.Reference).Warn("Failed to journal search")
	}
}

var _ domain.SequenceSearcher = (*SearchService)(nil)
