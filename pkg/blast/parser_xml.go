package blast

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/clone-sequence-server/internal/domain"
)

// StructuredParser reads the XML report. Each <Hit> element is decoded on its
// own so one broken hit does not hide the others.
type StructuredParser struct{}

type hitElement struct {
	XMLName   xml.Name     `xml:"Hit"`
	ID        string       `xml:"Hit_id"`
	Def       string       `xml:"Hit_def"`
	Accession string       `xml:"Hit_accession"`
	Len       int          `xml:"Hit_len"`
	HSPs      []hspElement `xml:"Hit_hsps>Hsp"`
}

type hspElement struct {
	BitScore string `xml:"Hsp_bit-score"`
	Score    string `xml:"Hsp_score"`
	EValue   string `xml:"Hsp_evalue"`
	HitFrom  string `xml:"Hsp_hit-from"`
	HitTo    string `xml:"Hsp_hit-to"`
	Identity string `xml:"Hsp_identity"`
	AlignLen string `xml:"Hsp_align-len"`
}

const (
	hitOpen  = "<Hit>"
	hitClose = "</Hit>"
)

func (StructuredParser) Parse(body string, limit int) []domain.HitRecord {
	region := body
	if start := strings.Index(body, "<Iteration_hits>"); start >= 0 {
		region = body[start:]
		if end := strings.Index(region, "</Iteration_hits>"); end >= 0 {
			region = region[:end]
		}
	}

	var hits []domain.HitRecord
	for len(hits) < limit {
		start := strings.Index(region, hitOpen)
		if start < 0 {
			break
		}
		end := strings.Index(region[start:], hitClose)
		if end < 0 {
			break
		}
		block := region[start : start+end+len(hitClose)]
		region = region[start+end+len(hitClose):]

		hit, err := decodeHit(block)
		if err != nil {
			continue
		}
		hits = append(hits, hit)
	}
	return hits
}

func decodeHit(block string) (domain.HitRecord, error) {
	var el hitElement
	if err := xml.Unmarshal([]byte(block), &el); err != nil {
		return domain.HitRecord{}, err
	}

	accession := strings.TrimSpace(el.Accession)
	if accession == "" {
		accession = strings.TrimSpace(el.ID)
	}
	if accession == "" {
		return domain.HitRecord{}, fmt.Errorf("hit has no accession")
	}
	if len(el.HSPs) == 0 {
		return domain.HitRecord{}, fmt.Errorf("hit %s has no alignment", accession)
	}
	hsp := el.HSPs[0]

	evalue := strings.TrimSpace(hsp.EValue)
	if evalue == "" {
		return domain.HitRecord{}, fmt.Errorf("hit %s has no evalue", accession)
	}
	score := strings.TrimSpace(hsp.BitScore)
	if score == "" {
		score = strings.TrimSpace(hsp.Score)
	}

	description := strings.TrimSpace(el.Def)
	// merged deflines are joined with " >"
	if i := strings.Index(description, " >"); i >= 0 {
		description = strings.TrimSpace(description[:i])
	}

	return domain.HitRecord{
		Accession:       accession,
		Description:     description,
		Organism:        organismFromDefinition(description),
		Length:          el.Len,
		Start:           strings.TrimSpace(hsp.HitFrom),
		End:             strings.TrimSpace(hsp.HitTo),
		EValue:          evalue,
		Score:           score,
		PercentIdentity: percentIdentity(hsp.Identity, hsp.AlignLen),
	}, nil
}

func percentIdentity(identity, alignLen string) string {
	ident, err := strconv.Atoi(strings.TrimSpace(identity))
	if err != nil {
		return ""
	}
	length, err := strconv.Atoi(strings.TrimSpace(alignLen))
	if err != nil || length <= 0 {
		return ""
	}
	return strconv.FormatFloat(float64(ident)*100/float64(length), 'f', 1, 64)
}

// organismFromDefinition takes the trailing [Genus species] tag that protein
// deflines carry. Nucleotide deflines have none and yield "".
func organismFromDefinition(def string) string {
	def = strings.TrimSpace(def)
	if !strings.HasSuffix(def, "]") {
		return ""
	}
	open := strings.LastIndex(def, "[")
	if open < 0 {
		return ""
	}
	return strings.TrimSpace(def[open+1 : len(def)-1])
}
