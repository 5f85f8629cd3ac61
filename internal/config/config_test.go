package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewManager_Defaults(t *testing.T) {
	// run from an empty directory so no config.yaml is picked up
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://blast.ncbi.nlm.nih.gov/Blast.cgi", cfg.Blast.BaseURL)
	assert.Equal(t, 334*time.Millisecond, cfg.Blast.MinInterval)
	assert.Equal(t, 20*time.Second, cfg.Blast.WaitingDelay)
	assert.Equal(t, 5*time.Second, cfg.Blast.AmbiguousDelay)
	assert.Equal(t, 60, cfg.Blast.MaxAttempts)
	assert.Equal(t, 3, cfg.Blast.MaxHits)
	assert.Equal(t, "nt", cfg.Blast.DefaultDatabases["blastn"])
	assert.Equal(t, "nr", cfg.Blast.DefaultDatabases["blastx"])
	assert.Equal(t, 11, cfg.Blast.WordSizes["blastn"])
	assert.Equal(t, uint32(5), cfg.Blast.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Tbl2asn.Timeout)
	assert.Equal(t, 64<<10, cfg.Tbl2asn.MaxOutputBytes)
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, "pgx", cfg.Journal.PostgresDriver)
	assert.Equal(t, 90*24*time.Hour, cfg.Journal.Retention)
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())

	assert.Same(t, &cfg.Blast, m.GetBlastConfig())
	assert.Same(t, &cfg.Tbl2asn, m.GetTbl2asnConfig())
	assert.Same(t, &cfg.Server, m.GetServerConfig())
}

func TestNewManagerFromFile(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
blast:
  email: lab@example.org
  max_attempts: 10
  waiting_delay: 30s
tbl2asn:
  binary_path: /opt/ncbi/tbl2asn
  extra_args: ["-a", "s"]
journal:
  driver: postgres
  postgres_url: postgres://journal@localhost/journal?sslmode=disable
logging:
  level: debug
  format: text
`)

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.True(t, m.IsProduction())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "lab@example.org", cfg.Blast.Email)
	assert.Equal(t, 10, cfg.Blast.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Blast.WaitingDelay)
	assert.Equal(t, "/opt/ncbi/tbl2asn", cfg.Tbl2asn.BinaryPath)
	assert.Equal(t, []string{"-a", "s"}, cfg.Tbl2asn.ExtraArgs)
	assert.Equal(t, "postgres", cfg.Journal.Driver)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestNewManagerFromFile_Missing(t *testing.T) {
	_, err := NewManagerFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "blast:\n  max_hits: 5\n")
	t.Setenv("CLONESEQ_BLAST_MAX_HITS", "7")
	t.Setenv("CLONESEQ_BLAST_EMAIL", "env@example.org")
	t.Setenv("CLONESEQ_TBL2ASN_TIMEOUT", "90s")

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 7, cfg.Blast.MaxHits)
	assert.Equal(t, "env@example.org", cfg.Blast.Email)
	assert.Equal(t, 90*time.Second, cfg.Tbl2asn.Timeout)
}

func TestReload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	m, err := NewManagerFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, m.GetServerConfig().Port)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o644))
	require.NoError(t, m.Reload())
	assert.Equal(t, 9001, m.GetServerConfig().Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad base url", "blast:\n  base_url: not a url\n"},
		{"zero attempts", "blast:\n  max_attempts: -1\n"},
		{"unknown program", "blast:\n  word_sizes:\n    blastp: 3\n"},
		{"no binary", "tbl2asn:\n  binary_path: \"\"\n"},
		{"postgres without url", "journal:\n  driver: postgres\n"},
		{"unknown driver", "journal:\n  driver: mongo\n"},
		{"unknown postgres driver", "journal:\n  driver: postgres\n  postgres_url: postgres://x\n  postgres_driver: odbc\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
		{"bad log format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManagerFromFile(writeConfig(t, tt.config))
			require.NoError(t, err)
			assert.Error(t, m.Validate())
		})
	}
}
