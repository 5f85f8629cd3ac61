package journal

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// Kind identifies which pipeline produced a journal entry.
type Kind string

const (
	KindSearch     Kind = "search"
	KindSubmission Kind = "submission"
)

// Entry is one line of the operator audit trail. It records lifecycle
// metadata only; hits and submission artifacts are never stored.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	Reference string    `json:"reference"` // remote job ID or workspace ID
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Kind      Kind
	Reference string
	Limit     int
}

// DefaultListLimit applies when Filter.Limit is zero or negative.
const DefaultListLimit = 100

// Store defines the interface for journal storage operations.
type Store interface {
	// Record appends an entry and fills in its ID and CreatedAt.
	Record(ctx context.Context, entry *Entry) error

	// List returns matching entries, newest first.
	List(ctx context.Context, filter Filter) ([]*Entry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// Prune deletes entries created before the cutoff and reports how many went.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// ExportJSON writes every entry to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Entries    []*Entry  `json:"entries"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func limitOf(f Filter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// whereClause builds the filter predicate. placeholder renders the n-th
// bind parameter in the backend's syntax.
func whereClause(f Filter, placeholder func(n int) string) (string, []interface{}) {
	var (
		clause string
		args   []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		if clause == "" {
			clause = " WHERE "
		} else {
			clause += " AND "
		}
		clause += column + " = " + placeholder(len(args))
	}
	if f.Kind != "" {
		add("kind", string(f.Kind))
	}
	if f.Reference != "" {
		add("reference", f.Reference)
	}
	return clause, args
}

func writeExport(writer io.Writer, entries []*Entry) error {
	if entries == nil {
		entries = []*Entry{}
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(entries),
		Entries:    entries,
	})
}
