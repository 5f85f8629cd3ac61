package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/journal"
)

const (
	DefaultSubmissionConcurrency = 2

	statusSucceeded = "succeeded"
	statusRejected  = "rejected" // tool ran, validation report has errors
	statusFailed    = "failed"
)

// SubmissionService bounds how many submission pipelines run at once and
// journals each attempt.
type SubmissionService struct {
	builder domain.SubmissionBuilder
	journal journal.Store
	slots   chan struct{}
	logger  *logrus.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(builder domain.SubmissionBuilder, store journal.Store, maxConcurrency int, logger *logrus.Logger) *SubmissionService {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultSubmissionConcurrency
	}
	if store == nil {
		store = journal.NopStore{}
	}
	return &SubmissionService{
		builder: builder,
		journal: store,
		slots:   make(chan struct{}, maxConcurrency),
		logger:  logger,
	}
}

// BuildSubmission waits for a free pipeline slot, then builds the submission.
func (s *SubmissionService) BuildSubmission(ctx context.Context, records []domain.SequenceRecord, submitter domain.SubmitterInfo) (*domain.SubmissionResult, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
	}
	defer func() { <-s.slots }()

	start := time.Now()
	result, err := s.builder.BuildSubmission(ctx, records, submitter)
	s.recordSubmission(ctx, result, err)

	fields := logrus.Fields{
		"records":  len(records),
		"duration": time.Since(start).String(),
	}
	if result != nil {
		fields["workspace"] = result.WorkspaceID
		fields["errors"] = len(result.Errors)
		fields["warnings"] = len(result.Warnings)
	}
	switch {
	case err != nil:
		s.logger.WithFields(fields).WithError(err).Warn("Submission failed")
	case !result.Success:
		s.logger.WithFields(fields).Warn("Submission rejected by validation report")
	default:
		s.logger.WithFields(fields).Info("Submission built")
	}

	return result, err
}

func (s *SubmissionService) recordSubmission(ctx context.Context, result *domain.SubmissionResult, buildErr error) {
	var ve *domain.ValidationError
	if errors.As(buildErr, &ve) {
		return
	}

	entry := &journal.Entry{Kind: journal.KindSubmission, Attempts: 1}
	if result != nil {
		entry.Reference = result.WorkspaceID
	}

	switch {
	case buildErr != nil:
		entry.Status = statusFailed
		entry.Detail = domain.Truncate(buildErr.Error())
	case !result.Success:
		entry.Status = statusRejected
		entry.Detail = domain.Truncate(strings.Join(result.Errors, "\n"))
	default:
		entry.Status = statusSucceeded
	}

	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.WithError(err).WithField("workspace", entry.Reference).Warn("Failed to journal submission")
	}
}

var _ domain.SubmissionBuilder = (*SubmissionService)(nil)
