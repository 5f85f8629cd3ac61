package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clone-sequence-server/internal/app"
	"github.com/clone-sequence-server/internal/domain"
)

var (
	submitRecords   string
	submitSubmitter string
	submitOut       string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Build a submission package with tbl2asn",
	Long: `Build a .sqn submission package from reviewed clone records.

Records are read from a YAML file holding either a list of records or a
mapping with a "records" key. The submitter file supplies the contact used
for the submission template when no fixed template is configured.`,
	Example: `  seqctl submit --records records.yaml --submitter submitter.yaml --out clones.sqn`,
	RunE:    runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitRecords, "records", "r", "", "YAML file with sequence records")
	submitCmd.Flags().StringVarP(&submitSubmitter, "submitter", "s", "", "YAML file with submitter contact")
	submitCmd.Flags().StringVarP(&submitOut, "out", "o", "submission.sqn", "Where to write the submission artifact")
	_ = submitCmd.MarkFlagRequired("records")
}

type recordsFile struct {
	Records []domain.SequenceRecord `yaml:"records"`
}

// loadRecords accepts either a bare YAML list or a {records: [...]} mapping.
func loadRecords(path string) ([]domain.SequenceRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var list []domain.SequenceRecord
	if err := yaml.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped recordsFile
	if err := yaml.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse records %s: %w", path, err)
	}
	return wrapped.Records, nil
}

func loadSubmitter(path string) (domain.SubmitterInfo, error) {
	var info domain.SubmitterInfo
	if path == "" {
		return info, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return info, fmt.Errorf("failed to read submitter: %w", err)
	}
	if err := yaml.Unmarshal(raw, &info); err != nil {
		return info, fmt.Errorf("failed to parse submitter %s: %w", path, err)
	}
	return info, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	records, err := loadRecords(submitRecords)
	if err != nil {
		return err
	}
	submitter, err := loadSubmitter(submitSubmitter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return withApp(ctx, func(a *app.App, logger *logrus.Logger) error {
		result, err := a.Submissions.BuildSubmission(ctx, records, submitter)
		if result != nil {
			printReport(cmd, result)
		}
		if err != nil {
			return err
		}
		if !result.Success {
			return errors.New("submission rejected by the validation report")
		}

		if err := os.WriteFile(submitOut, result.Artifact, 0o644); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", submitOut, len(result.Artifact))
		return nil
	})
}

func printReport(cmd *cobra.Command, result *domain.SubmissionResult) {
	out := cmd.ErrOrStderr()
	for _, check := range result.Checks {
		if check.Outcome == domain.CheckFail {
			fmt.Fprintf(out, "check %s failed: %s\n", check.Name, check.Detail)
		}
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "ERROR   %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "WARNING %s\n", w)
	}
}
