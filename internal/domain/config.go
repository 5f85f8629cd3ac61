package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	API         APIConfig     `mapstructure:"api"`
	Blast       BlastConfig   `mapstructure:"blast"`
	Tbl2asn     Tbl2asnConfig `mapstructure:"tbl2asn"`
	Cache       CacheConfig   `mapstructure:"cache"`
	Journal     JournalConfig `mapstructure:"journal"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// APIConfig controls the inbound HTTP surface
type APIConfig struct {
	RateLimit      float64 `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst      int     `mapstructure:"rate_burst"`
	MaxBatchSize   int     `mapstructure:"max_batch_size"`
	MaxRequestBody int64   `mapstructure:"max_request_body"`
}

// BlastConfig represents the remote alignment service configuration
type BlastConfig struct {
	BaseURL           string             `mapstructure:"base_url"`
	Timeout           time.Duration      `mapstructure:"timeout"`       // per HTTP request
	MinInterval       time.Duration      `mapstructure:"min_interval"`  // spacing between outbound requests
	WaitingDelay      time.Duration      `mapstructure:"waiting_delay"` // sleep after a "waiting" poll
	AmbiguousDelay    time.Duration      `mapstructure:"ambiguous_delay"`
	MaxAttempts       int                `mapstructure:"max_attempts"`
	MaxHits           int                `mapstructure:"max_hits"`
	ExpectThreshold   float64            `mapstructure:"expect_threshold"`
	DefaultDatabases  map[string]string  `mapstructure:"default_databases"` // program -> database
	WordSizes         map[string]int     `mapstructure:"word_sizes"`        // program -> word size
	Tool              string             `mapstructure:"tool"`
	Email             string             `mapstructure:"email"`
	MaxConcurrency    int                `mapstructure:"max_concurrency"` // batch search workers
	CircuitBreaker    CircuitBreakerConf `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConf represents circuit breaker configuration
type CircuitBreakerConf struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// Tbl2asnConfig represents the external annotation tool configuration
type Tbl2asnConfig struct {
	BinaryPath     string        `mapstructure:"binary_path"`
	TemplatePath   string        `mapstructure:"template_path"` // fixed .sbt template; rendered from submitter info when empty
	WorkDir        string        `mapstructure:"work_dir"`      // parent of per-attempt workspaces, OS temp dir when empty
	Timeout        time.Duration `mapstructure:"timeout"`       // the tool's process group is killed on expiry; non-unix hosts may wait 5s more for its pipes
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
	ExtraArgs      []string      `mapstructure:"extra_args"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// CacheConfig represents hit cache configuration
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MemoryEntries int           `mapstructure:"memory_entries"`
	MemoryTTL     time.Duration `mapstructure:"memory_ttl"`
	RedisURL      string        `mapstructure:"redis_url"` // tier 2 disabled when empty
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxRetries    int           `mapstructure:"max_retries"`
	PoolSize      int           `mapstructure:"pool_size"`
	PoolTimeout   time.Duration `mapstructure:"pool_timeout"`
}

// JournalConfig selects the job journal backend
type JournalConfig struct {
	Driver         string        `mapstructure:"driver"` // "sqlite", "postgres" or "none"
	SQLitePath     string        `mapstructure:"sqlite_path"`
	PostgresURL    string        `mapstructure:"postgres_url"`
	PostgresDriver string        `mapstructure:"postgres_driver"` // database/sql driver: "pgx" or "postgres" (lib/pq)
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	ConnMaxLife    time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	Retention      time.Duration `mapstructure:"retention"` // entries older than this are pruned at startup, 0 keeps everything
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}
