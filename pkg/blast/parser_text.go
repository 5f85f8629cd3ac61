package blast

import (
	"strconv"
	"strings"

	"github.com/clone-sequence-server/internal/domain"
)

// PlainTextParser reads the summary table of the plain-text report:
//
//	Sequences producing significant alignments:          (Bits)  Value
//
//	AB000001.1  Escherichia coli 16S rRNA gene            2350    0.0
//
// Accession is the first column, the e-value the last and the score the
// one before it; everything in between is the description.
type PlainTextParser struct{}

func (PlainTextParser) Parse(body string, limit int) []domain.HitRecord {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	header := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "significant alignments") {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}

	var hits []domain.HitRecord
	seenData := false
	for _, line := range lines[header+1:] {
		if len(hits) >= limit {
			break
		}
		if strings.TrimSpace(line) == "" {
			if seenData {
				break
			}
			continue
		}
		seenData = true

		if hit, ok := parseSummaryLine(line); ok {
			hits = append(hits, hit)
		}
	}
	return hits
}

func parseSummaryLine(line string) (domain.HitRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return domain.HitRecord{}, false
	}

	evalue := fields[len(fields)-1]
	score := fields[len(fields)-2]
	if !isNumeric(score) || !isEValue(evalue) {
		return domain.HitRecord{}, false
	}

	description := strings.Join(fields[1:len(fields)-2], " ")
	return domain.HitRecord{
		Accession:   accessionFromID(fields[0]),
		Description: description,
		EValue:      evalue,
		Score:       score,
	}, true
}

// accessionFromID reduces legacy pipe-delimited ids such as
// gi|123|gb|AB000001.1| to the accession.
func accessionFromID(id string) string {
	if !strings.Contains(id, "|") {
		return id
	}
	parts := strings.FieldsFunc(id, func(r rune) bool { return r == '|' })
	if len(parts) == 0 {
		return id
	}
	return parts[len(parts)-1]
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isEValue also accepts the bare-exponent form ("e-105") of the text report
func isEValue(s string) bool {
	if strings.HasPrefix(s, "e") {
		s = "1" + s
	}
	return isNumeric(s)
}
