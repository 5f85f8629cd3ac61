package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Drivers accepted for PostgreSQL connections. "pgx" is the jackc/pgx
// database/sql adapter, "postgres" is lib/pq.
const (
	DriverPgx = "pgx"
	DriverPQ  = "postgres"
)

// Config holds database configuration
type Config struct {
	Driver      string
	URL         string
	MaxConns    int
	MaxIdle     int
	MaxConnLife time.Duration
}

// DB wraps the sql.DB with additional functionality
type DB struct {
	SQL    *sql.DB
	driver string
	log    *logrus.Logger
}

// NewConnection opens a PostgreSQL connection pool and verifies it with a ping.
func NewConnection(ctx context.Context, config Config, logger *logrus.Logger) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPgx
	}
	if driver != DriverPgx && driver != DriverPQ {
		return nil, fmt.Errorf("unsupported postgres driver: %s", driver)
	}
	if config.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open(driver, config.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
	}
	if config.MaxIdle > 0 {
		db.SetMaxIdleConns(config.MaxIdle)
	}
	if config.MaxConnLife > 0 {
		db.SetConnMaxLifetime(config.MaxConnLife)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"driver":    driver,
		"max_conns": config.MaxConns,
		"max_idle":  config.MaxIdle,
	}).Info("Database connection pool established")

	return Wrap(db, driver, logger), nil
}

// Wrap adopts an already opened pool, such as a test double.
func Wrap(sqlDB *sql.DB, driver string, logger *logrus.Logger) *DB {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DB{
		SQL:    sqlDB,
		driver: driver,
		log:    logger,
	}
}

// Driver reports which database/sql driver backs the pool.
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the database connection pool
func (db *DB) Close() error {
	if db.SQL == nil {
		return nil
	}
	err := db.SQL.Close()
	db.log.Info("Database connection pool closed")
	return err
}

// Health checks the database connection health
func (db *DB) Health(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

// Stats returns connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.SQL.Stats()
}
