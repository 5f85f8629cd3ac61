package tbl2asn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clone-sequence-server/internal/domain"
)

// arguments are -p dir -t template ..., so $4 is the template
const successScript = `test -f submission.fsa || { echo "Error: no sequence file" >&2; exit 2; }
test -f submission.tbl || { echo "Error: no feature table" >&2; exit 2; }
test -f "$4" || { echo "Error: no template" >&2; exit 2; }
printf 'Seq-submit ::= { }\n' > submission.sqn
printf 'WARNING: valid [SEQ_DESCR.MissingLineage] lineage missing\n' > submission.val
echo "1 record processed"`

var testSubmitter = domain.SubmitterInfo{
	FirstName:   "Ada",
	LastName:    "Lovelace",
	Email:       "ada@example.org",
	Affiliation: "Marine Lab",
}

func newTestPipeline(t *testing.T, script string) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	return NewPipeline(domain.Tbl2asnConfig{
		BinaryPath: fakeTool(t, script),
		WorkDir:    root,
	}, quietLogger()), root
}

func assertNoWorkspaces(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace left behind")
}

func TestPipeline_Success(t *testing.T) {
	pipeline, root := newTestPipeline(t, successScript)

	result, err := pipeline.BuildSubmission(context.Background(), sampleRecords(), testSubmitter)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "Seq-submit ::= { }\n", string(result.Artifact))
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Warnings, 1)
	assert.Equal(t, "1 record processed\n", result.Stdout)
	assert.NotEmpty(t, result.WorkspaceID)
	assert.Len(t, result.Checks, 3)

	assertNoWorkspaces(t, root)
}

func TestPipeline_ReportErrorsWithholdArtifact(t *testing.T) {
	pipeline, root := newTestPipeline(t, `touch submission.sqn
echo "ERROR: valid [SEQ_INST.ShortSeq] too short" > submission.val`)

	result, err := pipeline.BuildSubmission(context.Background(), sampleRecords(), testSubmitter)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Nil(t, result.Artifact)
	assert.Equal(t, []string{"ERROR: valid [SEQ_INST.ShortSeq] too short"}, result.Errors)

	assertNoWorkspaces(t, root)
}

func TestPipeline_ToolFailure(t *testing.T) {
	pipeline, root := newTestPipeline(t, `echo "Error: template unreadable" >&2
exit 1`)

	result, err := pipeline.BuildSubmission(context.Background(), sampleRecords(), testSubmitter)
	require.Error(t, err)

	var toolErr *domain.ToolExecutionError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CheckExitCode, toolErr.Reason)
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.Contains(t, toolErr.Stderr, "template unreadable")

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Nil(t, result.Artifact)
	assert.Contains(t, result.Stderr, "template unreadable")

	assertNoWorkspaces(t, root)
}

func TestPipeline_ValidationFailsBeforeWorkspace(t *testing.T) {
	pipeline, root := newTestPipeline(t, successScript)

	_, err := pipeline.BuildSubmission(context.Background(), []domain.SequenceRecord{{ID: "x", Sequence: "ACGU"}}, testSubmitter)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))

	_, err = pipeline.BuildSubmission(context.Background(), sampleRecords(), domain.SubmitterInfo{})
	require.True(t, errors.As(err, &ve))

	assertNoWorkspaces(t, root)
}

func TestPipeline_SubmitterCheckedBeforeFilesystem(t *testing.T) {
	// an unusable work dir would fail any workspace creation
	pipeline := NewPipeline(domain.Tbl2asnConfig{
		BinaryPath: fakeTool(t, successScript),
		WorkDir:    filepath.Join(t.TempDir(), "missing"),
	}, quietLogger())

	_, err := pipeline.BuildSubmission(context.Background(), sampleRecords(), domain.SubmitterInfo{FirstName: "Ada"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "submitter.last_name", ve.Field)
}

func TestPipeline_ToolTimeoutReleasesWorkspace(t *testing.T) {
	root := t.TempDir()
	pipeline := NewPipeline(domain.Tbl2asnConfig{
		BinaryPath: fakeTool(t, `exec sleep 30`),
		WorkDir:    root,
		Timeout:    200 * time.Millisecond,
	}, quietLogger())

	start := time.Now()
	result, err := pipeline.BuildSubmission(context.Background(), sampleRecords(), testSubmitter)
	assert.Less(t, time.Since(start), 5*time.Second)

	var toolErr *domain.ToolExecutionError
	require.True(t, errors.As(err, &toolErr), "got %v", err)
	assert.Equal(t, ReasonTimeout, toolErr.Reason)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Nil(t, result.Artifact)

	assertNoWorkspaces(t, root)
}

func TestPipeline_CancelledMidRunReleasesWorkspace(t *testing.T) {
	root := t.TempDir()
	pipeline := NewPipeline(domain.Tbl2asnConfig{
		BinaryPath: fakeTool(t, `exec sleep 30`),
		WorkDir:    root,
	}, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := pipeline.BuildSubmission(ctx, sampleRecords(), testSubmitter)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, result)

	assertNoWorkspaces(t, root)
}

func TestPipeline_CancelledBeforeStart(t *testing.T) {
	pipeline, root := newTestPipeline(t, successScript)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.BuildSubmission(ctx, sampleRecords(), testSubmitter)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assertNoWorkspaces(t, root)
}

func TestPipeline_ConfiguredTemplate(t *testing.T) {
	template := filepath.Join(t.TempDir(), "fixed.sbt")
	require.NoError(t, os.WriteFile(template, []byte("Submit-block ::= { }\n"), 0o644))

	root := t.TempDir()
	pipeline := NewPipeline(domain.Tbl2asnConfig{
		BinaryPath:   fakeTool(t, `test "$4" = "`+template+`" || exit 9
touch submission.sqn`),
		WorkDir:      root,
		TemplatePath: template,
	}, quietLogger())

	// no submitter details are needed when a template file is configured
	result, err := pipeline.BuildSubmission(context.Background(), sampleRecords(), domain.SubmitterInfo{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assertNoWorkspaces(t, root)

	pipeline.config.TemplatePath = filepath.Join(t.TempDir(), "missing.sbt")
	_, err = pipeline.BuildSubmission(context.Background(), sampleRecords(), domain.SubmitterInfo{})
	assert.Error(t, err)
	assertNoWorkspaces(t, root)
}
