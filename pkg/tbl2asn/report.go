package tbl2asn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ValidationReport holds the lines of the tool's .val report, bucketed
type ValidationReport struct {
	Errors   []string
	Warnings []string
}

// ParseReportLines classifies each non-blank line. A line mentioning both
// words counts as an error.
func ParseReportLines(r io.Reader) (*ValidationReport, error) {
	report := &ValidationReport{Errors: []string{}, Warnings: []string{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "error"):
			report.Errors = append(report.Errors, line)
		case strings.Contains(lower, "warning"):
			report.Warnings = append(report.Warnings, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("failed to read validation report: %w", err)
	}
	return report, nil
}

// ParseReport reads every .val file in dir. No report at all yields two
// empty lists.
func ParseReport(dir string) (*ValidationReport, error) {
	report := &ValidationReport{Errors: []string{}, Warnings: []string{}}

	files, err := filepath.Glob(filepath.Join(dir, "*.val"))
	if err != nil {
		return report, err
	}
	sort.Strings(files)

	for _, path := range files {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to open validation report: %w", err)
		}

		part, err := ParseReportLines(f)
		f.Close()
		report.Errors = append(report.Errors, part.Errors...)
		report.Warnings = append(report.Warnings, part.Warnings...)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}
