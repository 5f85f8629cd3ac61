package tbl2asn

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/clone-sequence-server/internal/domain"
)

// Pipeline turns approved records into a validated submission artifact.
// Every call gets its own workspace, which is gone by the time it returns.
type Pipeline struct {
	config  domain.Tbl2asnConfig
	invoker *Invoker
	logger  *logrus.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(config domain.Tbl2asnConfig, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		config:  config,
		invoker: NewInvoker(config, logger),
		logger:  logger,
	}
}

// BuildSubmission writes the input files, runs the tool and collects its
// report and artifact. Success requires a clean tool run and a report with
// no errors. A failed tool run returns the populated result together with a
// *domain.ToolExecutionError.
func (p *Pipeline) BuildSubmission(ctx context.Context, records []domain.SequenceRecord, submitter domain.SubmitterInfo) (*domain.SubmissionResult, error) {
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	if p.config.TemplatePath == "" {
		if err := validateSubmitter(submitter); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	ws, err := AcquireWorkspace(p.config.WorkDir, p.logger)
	if err != nil {
		return nil, err
	}
	defer ws.Release()

	log := p.logger.WithFields(logrus.Fields{
		"workspace": ws.ID,
		"records":   len(records),
	})

	if err := WriteInputs(ws, records); err != nil {
		return nil, err
	}

	templatePath, err := p.prepareTemplate(ws, submitter)
	if err != nil {
		return nil, err
	}

	inv, err := p.invoker.Run(ctx, ws.Dir, templatePath)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	result := &domain.SubmissionResult{
		Stdout:      inv.Stdout,
		Stderr:      inv.Stderr,
		Checks:      inv.Checks,
		WorkspaceID: ws.ID,
	}

	report, err := ParseReport(ws.Dir)
	if err != nil {
		log.WithError(err).Warn("Validation report could not be read completely")
	}
	result.Errors = report.Errors
	result.Warnings = report.Warnings

	if !inv.Success {
		log.WithFields(logrus.Fields{
			"reason":    inv.Reason,
			"exit_code": inv.ExitCode,
		}).Warn("Annotation tool run failed")
		return result, &domain.ToolExecutionError{
			Reason:   inv.Reason,
			ExitCode: inv.ExitCode,
			Stderr:   domain.Truncate(inv.Stderr),
		}
	}

	if len(result.Errors) > 0 {
		log.WithField("errors", len(result.Errors)).Info("Validation report has errors")
		return result, nil
	}

	artifact, err := os.ReadFile(inv.ArtifactPath)
	if err != nil {
		return result, &domain.ToolExecutionError{Reason: CheckArtifact, ExitCode: inv.ExitCode, Err: err}
	}
	result.Artifact = artifact
	result.Success = true

	log.WithFields(logrus.Fields{
		"artifact_bytes": len(artifact),
		"warnings":       len(result.Warnings),
	}).Info("Submission built")

	return result, nil
}

func (p *Pipeline) prepareTemplate(ws *Workspace, submitter domain.SubmitterInfo) (string, error) {
	if p.config.TemplatePath != "" {
		// the tool runs inside the workspace, so relative paths would miss
		path, err := filepath.Abs(p.config.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("submission template: %w", err)
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("submission template: %w", err)
		}
		return path, nil
	}

	path := ws.Path("template.sbt")
	if err := RenderTemplate(path, submitter); err != nil {
		return "", err
	}
	return path, nil
}

var _ domain.SubmissionBuilder = (*Pipeline)(nil)
