package blast

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
)

// DefaultMaxHits is the number of hits kept per search
const DefaultMaxHits = 3

// Format identifies the layout of a ready result body
type Format int

const (
	FormatPlainText Format = iota
	FormatStructured
)

// DetectFormat reports whether the body is the structured XML report
func DetectFormat(body string) Format {
	head := strings.TrimSpace(body)
	if strings.HasPrefix(head, "<?xml") {
		return FormatStructured
	}
	for _, marker := range []string{"<BlastOutput", "<Iteration_hits>", "<Hit>"} {
		if strings.Contains(body, marker) {
			return FormatStructured
		}
	}
	return FormatPlainText
}

// HitParser extracts at most limit hits from one result format.
// Malformed hits are skipped rather than failing the whole body.
type HitParser interface {
	Parse(body string, limit int) []domain.HitRecord
}

// ResultParser picks the right HitParser for a body and ranks the output
type ResultParser struct {
	maxHits    int
	structured HitParser
	plain      HitParser
	logger     *logrus.Logger
}

// NewResultParser creates a parser capped at maxHits
func NewResultParser(maxHits int, logger *logrus.Logger) *ResultParser {
	if maxHits <= 0 {
		maxHits = DefaultMaxHits
	}
	return &ResultParser{
		maxHits:    maxHits,
		structured: StructuredParser{},
		plain:      PlainTextParser{},
		logger:     logger,
	}
}

// Parse never fails: a body with no recognizable hits yields an empty slice.
// Ranks are 1-based and follow the order the service reported.
func (p *ResultParser) Parse(body string) []domain.HitRecord {
	format := DetectFormat(body)

	var hits []domain.HitRecord
	if format == FormatStructured {
		hits = p.structured.Parse(body, p.maxHits)
	} else {
		hits = p.plain.Parse(body, p.maxHits)
	}

	if len(hits) > p.maxHits {
		hits = hits[:p.maxHits]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	if hits == nil {
		hits = []domain.HitRecord{}
	}

	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"structured": format == FormatStructured,
			"hits":       len(hits),
		}).Debug("Parsed search result")
	}
	return hits
}
