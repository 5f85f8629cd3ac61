package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/health"
	"github.com/clone-sequence-server/internal/journal"
	"github.com/clone-sequence-server/internal/middleware"
	"github.com/clone-sequence-server/internal/service"
)

const maxJournalLimit = 1000

// SearchRunner runs single and batched searches
type SearchRunner interface {
	domain.SequenceSearcher
	RunBatch(ctx context.Context, reqs []domain.SearchRequest) []service.BatchResult
	Forget(ctx context.Context, req domain.SearchRequest) error
}

// Dependencies are the services behind the HTTP surface
type Dependencies struct {
	Search      SearchRunner
	Submissions domain.SubmissionBuilder
	Journal     journal.Store
	Health      *health.Checker // optional
	Version     string
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.Journal == nil {
		deps.Journal = journal.NopStore{}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes(cfg)

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(cfg *domain.Config) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.API.RateLimit, cfg.API.RateBurst))
	v1.Use(middleware.BodyLimit(cfg.API.MaxRequestBody))
	v1.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))
	{
		v1.POST("/search", s.handleSearch)
		v1.POST("/search/batch", s.handleSearchBatch)
		v1.POST("/submissions", s.handleSubmission)
		v1.GET("/journal", s.handleJournal)
	}
}

// handleHealth answers 503 only when a component is unhealthy; warnings
// still report 200.
func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":    health.HealthStateHealthy,
			"timestamp": time.Now().UTC(),
			"version":   s.deps.Version,
		})
		return
	}

	status := s.deps.Health.Run(c.Request.Context())
	code := http.StatusOK
	if status.Overall == health.HealthStateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

type searchRequest struct {
	Sequence string `json:"sequence" binding:"required"`
	Program  string `json:"program"`
	Database string `json:"database"`
}

func (r searchRequest) toDomain() domain.SearchRequest {
	return domain.SearchRequest{
		Sequence: r.Sequence,
		Program:  domain.Program(r.Program),
		Database: r.Database,
	}
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	// ?refresh=true bypasses any cached result for this request
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if err := s.deps.Search.Forget(c.Request.Context(), req.toDomain()); err != nil {
			abortWithError(c, err)
			return
		}
	}

	hits, err := s.deps.Search.RunSearch(c.Request.Context(), req.toDomain())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":  hits,
		"count": len(hits),
	})
}

type batchRequest struct {
	Requests []searchRequest `json:"requests" binding:"required,min=1,dive"`
}

type batchItem struct {
	Index int                `json:"index"`
	Hits  []domain.HitRecord `json:"hits,omitempty"`
	Error gin.H              `json:"error,omitempty"`
}

func (s *Server) handleSearchBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	maxBatch := s.configManager.GetConfig().API.MaxBatchSize
	if maxBatch > 0 && len(req.Requests) > maxBatch {
		abortWithError(c, domain.NewValidationError("requests",
			fmt.Sprintf("at most %d requests per batch", maxBatch), len(req.Requests)))
		return
	}

	reqs := make([]domain.SearchRequest, len(req.Requests))
	for i, r := range req.Requests {
		reqs[i] = r.toDomain()
	}

	results := s.deps.Search.RunBatch(c.Request.Context(), reqs)

	items := make([]batchItem, len(results))
	failed := 0
	for i, r := range results {
		items[i] = batchItem{Index: r.Index, Hits: r.Hits}
		if r.Err != nil {
			failed++
			items[i].Error = errorBody(c, r.Err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   items,
		"succeeded": len(items) - failed,
		"failed":    failed,
	})
}

type submissionRequest struct {
	Records   []domain.SequenceRecord `json:"records" binding:"required"`
	Submitter domain.SubmitterInfo    `json:"submitter"`
}

func (s *Server) handleSubmission(c *gin.Context) {
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	result, err := s.deps.Submissions.BuildSubmission(c.Request.Context(), req.Records, req.Submitter)
	if err != nil {
		status, _ := classify(err)
		body := errorBody(c, err)
		if result != nil {
			body["result"] = result
		}
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, body)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (s *Server) handleJournal(c *gin.Context) {
	filter := journal.Filter{
		Kind:      journal.Kind(c.Query("kind")),
		Reference: c.Query("reference"),
	}
	if filter.Kind != "" && filter.Kind != journal.KindSearch && filter.Kind != journal.KindSubmission {
		abortWithError(c, domain.NewValidationError("kind", "must be search or submission", string(filter.Kind)))
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxJournalLimit {
			abortWithError(c, domain.NewValidationError("limit",
				fmt.Sprintf("must be between 1 and %d", maxJournalLimit), raw))
			return
		}
		filter.Limit = limit
	}

	entries, err := s.deps.Journal.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list journal entries")
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}
