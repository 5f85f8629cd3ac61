package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clone-sequence-server/internal/app"
	"github.com/clone-sequence-server/internal/config"
	"github.com/clone-sequence-server/internal/domain"
	"github.com/clone-sequence-server/internal/logging"
)

// Global flags
var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "seqctl",
	Short: "Clone sequence search and submission tool",
	Long: `seqctl runs remote similarity searches for clone sequences and builds
annotated submission packages with tbl2asn.

Configuration is read from config.yaml (or --config) and CLONESEQ_* environment
variables, the same way the server reads it.`,
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: `  # Search one sequence against the default nucleotide database
  seqctl search --sequence ATGCATGCATGCATGCATGC

  # Build a submission from reviewed records
  seqctl submit --records records.yaml --submitter submitter.yaml --out clones.sqn

  # Show the audit trail for a remote job
  seqctl journal --reference RID123`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(journalCmd)
}

// loadConfig reads and validates configuration. CLI logs go to stderr so
// stdout carries only command output.
func loadConfig() (*domain.Config, error) {
	var (
		manager *config.Manager
		err     error
	)
	if configFile != "" {
		manager, err = config.NewManagerFromFile(configFile)
	} else {
		manager, err = config.NewManager()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := manager.GetConfig()
	if cfg.Logging.Output != "file" {
		cfg.Logging.Output = "stderr"
	}
	if verbose {
		cfg.Logging.Level = "debug"
	} else if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	return cfg, nil
}

// withApp wires the components for one command and releases them afterwards.
func withApp(ctx context.Context, run func(*app.App, *logrus.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	components, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release resources")
		}
	}()

	return run(components, logger)
}

func outputWriter(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
