package tbl2asn

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/clone-sequence-server/internal/domain"
)

type asnField struct {
	Key   string
	Value string
}

type templateData struct {
	Last  string
	First string
	Affil []asnField
	Title string
}

var submitBlock = template.Must(template.New("sbt").Parse(`Submit-block ::= {
  contact {
    contact {
      name name {
        last "{{.Last}}",
        first "{{.First}}"
      },
      affil std {{template "affil" .Affil}}
    }
  },
  cit {
    authors {
      names std {
        {
          name name {
            last "{{.Last}}",
            first "{{.First}}"
          }
        }
      },
      affil std {{template "affil" .Affil}}
    }
  },
  subtype new
}
Seqdesc ::= pub {
  pub {
    gen {
      cit "unpublished",
      authors {
        names std {
          {
            name name {
              last "{{.Last}}",
              first "{{.First}}"
            }
          }
        }
      },
      title "{{.Title}}"
    }
  }
}
{{define "affil"}}{
{{- range $i, $f := .}}{{if $i}},{{end}}
        {{$f.Key}} "{{$f.Value}}"
{{- end}}
      }{{end}}`))

// asnString sanitizes text for an ASN.1 string literal, where a quote is
// escaped by doubling it
func asnString(s string) string {
	return strings.ReplaceAll(Sanitize(s), `"`, `""`)
}

// RenderTemplate writes a submission template for the given submitter
func RenderTemplate(path string, info domain.SubmitterInfo) error {
	if err := validateSubmitter(info); err != nil {
		return err
	}

	data := templateData{
		Last:  asnString(info.LastName),
		First: asnString(info.FirstName),
		Title: asnString(info.Title),
	}
	if data.Title == "" {
		data.Title = "Direct Submission"
	}

	for _, f := range []asnField{
		{"affil", info.Affiliation},
		{"div", info.Department},
		{"city", info.City},
		{"sub", info.State},
		{"country", NormalizeCountry(info.Country)},
		{"street", info.Street},
		{"email", info.Email},
		{"postal-code", info.PostalCode},
	} {
		if v := asnString(f.Value); v != "" {
			data.Affil = append(data.Affil, asnField{Key: f.Key, Value: v})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	defer file.Close()

	if err := submitBlock.Execute(file, data); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	return file.Close()
}

func validateSubmitter(info domain.SubmitterInfo) error {
	required := []struct {
		field string
		value string
	}{
		{"submitter.last_name", info.LastName},
		{"submitter.first_name", info.FirstName},
		{"submitter.email", info.Email},
		{"submitter.affiliation", info.Affiliation},
	}
	for _, r := range required {
		if Sanitize(r.value) == "" {
			return domain.NewValidationError(r.field, "required when no template file is configured", r.value)
		}
	}
	return nil
}
