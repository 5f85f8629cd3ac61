package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/clone-sequence-server/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. CLONESEQ_BLAST_EMAIL
const EnvPrefix = "CLONESEQ"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	configFile string
	config     *domain.Config
}

// NewManager creates a configuration manager that searches the standard
// locations for config.yaml
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a configuration manager reading an explicit
// file. An empty path falls back to the search locations.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from defaults, the config file and environment
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/clone-sequence-server/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// the file is optional when searching; an explicit one must exist
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	// searches block for minutes while the remote job runs
	v.SetDefault("server.write_timeout", "30m")
	v.SetDefault("server.idle_timeout", "120s")

	// Inbound API defaults
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_burst", 10)
	v.SetDefault("api.max_batch_size", 20)
	v.SetDefault("api.max_request_body", 8<<20)

	// Remote alignment service defaults
	v.SetDefault("blast.base_url", "https://blast.ncbi.nlm.nih.gov/Blast.cgi")
	v.SetDefault("blast.timeout", "60s")
	v.SetDefault("blast.min_interval", "334ms")
	v.SetDefault("blast.waiting_delay", "20s")
	v.SetDefault("blast.ambiguous_delay", "5s")
	v.SetDefault("blast.max_attempts", 60)
	v.SetDefault("blast.max_hits", 3)
	v.SetDefault("blast.expect_threshold", 10.0)
	v.SetDefault("blast.default_databases", map[string]string{
		"blastn":  "nt",
		"blastx":  "nr",
		"tblastx": "nt",
	})
	v.SetDefault("blast.word_sizes", map[string]int{
		"blastn":  11,
		"blastx":  3,
		"tblastx": 3,
	})
	v.SetDefault("blast.tool", "clone-sequence-server")
	v.SetDefault("blast.email", "")
	v.SetDefault("blast.max_concurrency", 4)
	v.SetDefault("blast.circuit_breaker.max_requests", 1)
	v.SetDefault("blast.circuit_breaker.interval", "60s")
	v.SetDefault("blast.circuit_breaker.timeout", "60s")
	v.SetDefault("blast.circuit_breaker.failure_threshold", 5)

	// Annotation tool defaults
	v.SetDefault("tbl2asn.binary_path", "tbl2asn")
	v.SetDefault("tbl2asn.template_path", "")
	v.SetDefault("tbl2asn.work_dir", "")
	v.SetDefault("tbl2asn.timeout", "5m")
	v.SetDefault("tbl2asn.max_output_bytes", 64<<10)
	v.SetDefault("tbl2asn.extra_args", []string{})
	v.SetDefault("tbl2asn.max_concurrency", 2)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.memory_entries", 1000)
	v.SetDefault("cache.memory_ttl", "1h")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Journal defaults
	v.SetDefault("journal.driver", "sqlite")
	v.SetDefault("journal.sqlite_path", "data/journal.db")
	v.SetDefault("journal.postgres_url", "")
	v.SetDefault("journal.postgres_driver", "pgx")
	v.SetDefault("journal.max_open_conns", 10)
	v.SetDefault("journal.max_idle_conns", 2)
	v.SetDefault("journal.conn_max_lifetime", "5m")
	v.SetDefault("journal.retention", "2160h")
	v.SetDefault("journal.migrations_path", "migrations")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.filename", "")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetBlastConfig returns the remote alignment service configuration
func (m *Manager) GetBlastConfig() *domain.BlastConfig {
	return &m.config.Blast
}

// GetTbl2asnConfig returns the annotation tool configuration
func (m *Manager) GetTbl2asnConfig() *domain.Tbl2asnConfig {
	return &m.config.Tbl2asn
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate remote alignment service configuration
	u, err := url.Parse(config.Blast.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid blast base URL: %q", config.Blast.BaseURL)
	}
	if config.Blast.MinInterval <= 0 {
		return fmt.Errorf("blast min_interval must be positive")
	}
	if config.Blast.MaxAttempts <= 0 {
		return fmt.Errorf("blast max_attempts must be positive")
	}
	if config.Blast.MaxHits <= 0 {
		return fmt.Errorf("blast max_hits must be positive")
	}
	for program := range config.Blast.DefaultDatabases {
		if _, err := domain.ParseProgram(program); err != nil {
			return fmt.Errorf("blast default_databases: %w", err)
		}
	}
	for program := range config.Blast.WordSizes {
		if _, err := domain.ParseProgram(program); err != nil {
			return fmt.Errorf("blast word_sizes: %w", err)
		}
	}

	// Validate annotation tool configuration
	if config.Tbl2asn.BinaryPath == "" {
		return fmt.Errorf("tbl2asn binary path is required")
	}
	if config.Tbl2asn.Timeout <= 0 {
		return fmt.Errorf("tbl2asn timeout must be positive")
	}

	// Validate journal configuration
	switch strings.ToLower(config.Journal.Driver) {
	case "none":
	case "sqlite":
		if config.Journal.SQLitePath == "" {
			return fmt.Errorf("journal sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if config.Journal.PostgresURL == "" {
			return fmt.Errorf("journal postgres_url is required for the postgres driver")
		}
		if d := config.Journal.PostgresDriver; d != "pgx" && d != "postgres" {
			return fmt.Errorf("invalid journal postgres_driver: %s", d)
		}
	default:
		return fmt.Errorf("invalid journal driver: %s", config.Journal.Driver)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

var _ domain.ConfigManager = (*Manager)(nil)
