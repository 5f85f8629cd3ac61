package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/journal"
)

// MockSearcher is a mock implementation of the Searcher interface
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, req domain.SearchRequest) (*domain.RemoteJob, []domain.HitRecord, error) {
	args := m.Called(ctx, req)
	var job *domain.RemoteJob
	if v := args.Get(0); v != nil {
		job = v.(*domain.RemoteJob)
	}
	var hits []domain.HitRecord
	if v := args.Get(1); v != nil {
		hits = v.([]domain.HitRecord)
	}
	return job, hits, args.Error(2)
}

func (m *MockSearcher) ResolveDatabase(program domain.Program, requested string) string {
	args := m.Called(program, requested)
	return args.String(0)
}

// MockBuilder is a mock implementation of domain.SubmissionBuilder
type MockBuilder struct {
	mock.Mock
}

func (m *MockBuilder) BuildSubmission(ctx context.Context, records []domain.SequenceRecord, submitter domain.SubmitterInfo) (*domain.SubmissionResult, error) {
	args := m.Called(ctx, records, submitter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubmissionResult), args.Error(1)
}

// recordingStore keeps journal entries in memory
type recordingStore struct {
	journal.NopStore
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *recordingStore) Record(_ context.Context, entry *journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *recordingStore) snapshot() []journal.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Entry(nil), r.entries...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}
