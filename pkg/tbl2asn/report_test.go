package tbl2asn

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `WARNING: valid [SEQ_DESCR.MissingLineage] Missing lineage BIOSEQ: lcl|clone_1
ERROR: valid [SEQ_INST.ShortSeq] Sequence is too short BIOSEQ: lcl|clone_2

INFO: valid [SEQ_FEAT.PartialProblem] note
error: lower case still counts (warning too)
`

func TestParseReportLines(t *testing.T) {
	report, err := ParseReportLines(strings.NewReader(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ERROR: valid [SEQ_INST.ShortSeq] Sequence is too short BIOSEQ: lcl|clone_2",
		"error: lower case still counts (warning too)",
	}, report.Errors)
	assert.Equal(t, []string{
		"WARNING: valid [SEQ_DESCR.MissingLineage] Missing lineage BIOSEQ: lcl|clone_1",
	}, report.Warnings)
}

func TestParseReport(t *testing.T) {
	t.Run("missing report", func(t *testing.T) {
		report, err := ParseReport(t.TempDir())
		require.NoError(t, err)
		assert.NotNil(t, report.Errors)
		assert.NotNil(t, report.Warnings)
		assert.Empty(t, report.Errors)
		assert.Empty(t, report.Warnings)
	})

	t.Run("report file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "submission.val"), []byte(sampleReport), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ERROR: ignored"), 0o644))

		report, err := ParseReport(dir)
		require.NoError(t, err)
		assert.Len(t, report.Errors, 2)
		assert.Len(t, report.Warnings, 1)
	})
}
