package journal

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/clone-sequence-server/internal/database"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	conn *database.DB
	db   *sql.DB
}

// NewPostgresStore creates a new PostgreSQL journal store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(conn *database.DB) (*PostgresStore, error) {
	if conn == nil || conn.SQL == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := conn.Health(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{conn: conn, db: conn.SQL}, nil
}

func dollar(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanPostgresEntry(s scanner) (*Entry, error) {
	e := &Entry{}
	var kind string

	if err := s.Scan(&e.ID, &kind, &e.Reference, &e.Status, &e.Attempts, &e.Detail, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = Kind(kind)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// Record appends an entry to the journal.
func (s *PostgresStore) Record(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO journal_entries (kind, reference, status, attempts, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		string(entry.Kind),
		entry.Reference,
		entry.Status,
		entry.Attempts,
		entry.Detail,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	where, args := whereClause(filter, dollar)
	args = append(args, limitOf(filter))

	query := `
		SELECT id, kind, reference, status, attempts, detail, created_at
		FROM journal_entries` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ` + dollar(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := []*Entry{}
	for rows.Next() {
		e, err := scanPostgresEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count returns the total number of journal entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM journal_entries").Scan(&count)
	return count, err
}

// Prune removes entries older than before.
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM journal_entries WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune: %w", err)
	}
	return result.RowsAffected()
}

// ExportJSON exports the whole journal to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, Filter{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	return writeExport(writer, all)
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.conn.Health(ctx)
}

// HealthMetadata reports the driver and connection pool usage
func (s *PostgresStore) HealthMetadata() map[string]interface{} {
	stats := s.conn.Stats()
	return map[string]interface{}{
		"driver":           s.conn.Driver(),
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
	}
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.conn.Close()
}
