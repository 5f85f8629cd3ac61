package blast

import (
	"fmt"
	"strings"

	"github.com/clone-sequence-server/internal/domain"
)

// MinSequenceLength is the fewest usable symbols a query may have
const MinSequenceLength = 10

// iupacNucleotides lists every symbol the remote service accepts in a nucleotide query
const iupacNucleotides = "ACGTURYSWKMBDHVN"

// CleanSequence drops FASTA header/comment lines and every character that
// is not an IUPAC nucleotide code, returning the upper-cased remainder.
func CleanSequence(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		for i := 0; i < len(trimmed); i++ {
			c := trimmed[i]
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			if strings.IndexByte(iupacNucleotides, c) >= 0 {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

// NormalizeRequest validates a search request before any network traffic and
// returns a copy with a cleaned sequence and a canonical program.
func NormalizeRequest(req domain.SearchRequest) (domain.SearchRequest, error) {
	program, err := domain.ParseProgram(string(req.Program))
	if err != nil {
		return req, err
	}

	cleaned := CleanSequence(req.Sequence)
	if len(cleaned) < MinSequenceLength {
		return req, domain.NewValidationError(
			"sequence",
			fmt.Sprintf("need at least %d usable nucleotide symbols, got %d", MinSequenceLength, len(cleaned)),
			len(cleaned),
		)
	}

	return domain.SearchRequest{
		Sequence: cleaned,
		Program:  program,
		Database: strings.TrimSpace(req.Database),
	}, nil
}
