package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/health"
	"github.com/clone-sequence-server/internal/journal"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestNew_SQLiteJournalAndMemoryCache(t *testing.T) {
	cfg := &domain.Config{
		Blast:   domain.BlastConfig{BaseURL: "http://127.0.0.1:1/Blast.cgi"},
		Tbl2asn: domain.Tbl2asnConfig{BinaryPath: "tbl2asn"},
		Cache:   domain.CacheConfig{Enabled: true, RedisURL: "redis://127.0.0.1:1/0", MaxRetries: -1},
		Journal: domain.JournalConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "journal.db")},
	}

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Hits, "memory tier survives an unreachable Redis")
	assert.IsType(t, &journal.SQLiteStore{}, a.Journal)
	assert.NotNil(t, a.Search)
	assert.NotNil(t, a.Submissions)
	assert.Equal(t, "closed", a.Client.BreakerState())

	status := a.Health.Run(context.Background())
	assert.Contains(t, status.Components, "journal")
	assert.Equal(t, health.HealthStateHealthy, status.Components["cache"].Status, "fell back to memory only")
}

func TestNew_NoCacheNoJournal(t *testing.T) {
	cfg := &domain.Config{Journal: domain.JournalConfig{Driver: "none"}}

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	assert.Nil(t, a.Hits)
	assert.IsType(t, journal.NopStore{}, a.Journal)
	assert.NoError(t, a.Close())
}

func TestNew_BadJournalDriver(t *testing.T) {
	cfg := &domain.Config{Journal: domain.JournalConfig{Driver: "mongo"}}

	_, err := New(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}
