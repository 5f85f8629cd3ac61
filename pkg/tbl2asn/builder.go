package tbl2asn

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clone-sequence-server/internal/domain"
)

// BaseName is the file stem shared by every input and output in a workspace
const BaseName = "submission"

var lineBreaks = regexp.MustCompile(`[\t\r\n]+`)

var countryAliases = map[string]string{
	"us":                       "USA",
	"u.s.":                     "USA",
	"u.s.a.":                   "USA",
	"usa":                      "USA",
	"united states":            "USA",
	"united states of america": "USA",
	"uk":                       "United Kingdom",
	"u.k.":                     "United Kingdom",
	"united kingdom":           "United Kingdom",
}

// input layouts and the layout each one is rendered with
var dateLayouts = []struct {
	parse  string
	render string
}{
	{"2006-01-02", "2-Jan-2006"},
	{"2006/01/02", "2-Jan-2006"},
	{time.RFC3339, "2-Jan-2006"},
	{"2006-01", "Jan-2006"},
	{"2006/01", "Jan-2006"},
	{"2006", "2006"},
}

// Sanitize collapses tabs and line breaks to a single space and trims
func Sanitize(s string) string {
	return strings.TrimSpace(lineBreaks.ReplaceAllString(s, " "))
}

// SanitizeID is Sanitize with remaining whitespace replaced by underscores
func SanitizeID(s string) string {
	return strings.Join(strings.Fields(Sanitize(s)), "_")
}

// modifier values sit inside [key=value] so brackets are not allowed
func sanitizeModifier(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(Sanitize(s))
}

// FormatCollectionDate renders a date the way the annotation tool expects.
// The second return is false when the input matches no accepted layout.
func FormatCollectionDate(s string) (string, bool) {
	s = Sanitize(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout.parse, s); err == nil {
			return t.Format(layout.render), true
		}
	}
	return "", false
}

// NormalizeCountry maps common aliases to the controlled country name and
// normalizes "country:region" spacing.
func NormalizeCountry(s string) string {
	s = Sanitize(s)
	if s == "" {
		return ""
	}

	country, region, hasRegion := strings.Cut(s, ":")
	country = strings.TrimSpace(country)
	if canonical, ok := countryAliases[strings.ToLower(country)]; ok {
		country = canonical
	}
	if !hasRegion {
		return country
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return country
	}
	return country + ": " + region
}

func cleanSequence(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// ValidateRecords checks records before any file is written
func ValidateRecords(records []domain.SequenceRecord) error {
	if len(records) == 0 {
		return domain.NewValidationError("records", "at least one record is required", 0)
	}

	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		field := fmt.Sprintf("records[%d]", i)

		id := SanitizeID(rec.ID)
		if id == "" {
			return domain.NewValidationError(field+".id", "identifier is required", rec.ID)
		}
		if seen[id] {
			return domain.NewValidationError(field+".id", "duplicate identifier", id)
		}
		seen[id] = true

		seq := cleanSequence(rec.Sequence)
		if seq == "" {
			return domain.NewValidationError(field+".sequence", "sequence is empty", id)
		}
		if pos := strings.IndexFunc(seq, func(r rune) bool {
			return r != 'A' && r != 'C' && r != 'G' && r != 'T'
		}); pos >= 0 {
			return domain.NewValidationError(
				field+".sequence",
				fmt.Sprintf("sequence may contain only A, C, G and T, found %q at position %d", seq[pos], pos+1),
				id,
			)
		}
	}
	return nil
}

// FormatFasta renders the sequence file with source modifiers in the deflines
func FormatFasta(records []domain.SequenceRecord) string {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(">" + SanitizeID(rec.ID))
		if org := sanitizeModifier(rec.Organism); org != "" {
			b.WriteString(" [organism=" + org + "]")
		}
		if clone := sanitizeModifier(rec.CloneName); clone != "" {
			b.WriteString(" [clone=" + clone + "]")
		}
		b.WriteString("\n" + cleanSequence(rec.Sequence) + "\n")
	}
	return b.String()
}

// FormatFeatureTable renders one source feature per record. Qualifiers with
// no usable value are left out.
func FormatFeatureTable(records []domain.SequenceRecord) string {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(">Feature " + SanitizeID(rec.ID) + "\n")
		b.WriteString("1\t" + strconv.Itoa(len(cleanSequence(rec.Sequence))) + "\tsource\n")

		qualifier := func(name, value string) {
			if value != "" {
				b.WriteString("\t\t\t" + name + "\t" + value + "\n")
			}
		}
		qualifier("isolation_source", Sanitize(rec.IsolationSource))
		if date, ok := FormatCollectionDate(rec.CollectionDate); ok {
			qualifier("collection_date", date)
		}
		qualifier("country", NormalizeCountry(rec.Country))
		qualifier("clone_lib", Sanitize(rec.CloneLibrary))
	}
	return b.String()
}

// WriteInputs writes the sequence and feature table files into the workspace
func WriteInputs(ws *Workspace, records []domain.SequenceRecord) error {
	if err := os.WriteFile(ws.Path(BaseName+".fsa"), []byte(FormatFasta(records)), 0o644); err != nil {
		return fmt.Errorf("failed to write sequence file: %w", err)
	}
	if err := os.WriteFile(ws.Path(BaseName+".tbl"), []byte(FormatFeatureTable(records)), 0o644); err != nil {
		return fmt.Errorf("failed to write feature table: %w", err)
	}
	return nil
}
