package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clone-sequence-server/internal/app"
	"github.com/clone-sequence-server/internal/domain"
)

var (
	searchSequence string
	searchFile     string
	searchProgram  string
	searchDatabase string
	searchFormat   string
	searchOutput   string
	searchRefresh  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a remote similarity search",
	Long: `Submit a nucleotide sequence to the remote alignment service, wait for the
job to finish and print the top hits.

The sequence may be given inline or as a FASTA file. Header and comment lines
and non-nucleotide characters are stripped before submission.`,
	Example: `  seqctl search --sequence ATGCATGCATGCATGCATGC
  seqctl search --file clone.fa --program blastx --format json`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchSequence, "sequence", "s", "", "Query sequence")
	searchCmd.Flags().StringVarP(&searchFile, "file", "f", "", "FASTA file holding the query sequence")
	searchCmd.Flags().StringVarP(&searchProgram, "program", "p", "blastn", "Search program (blastn|blastx|tblastx)")
	searchCmd.Flags().StringVarP(&searchDatabase, "database", "d", "", "Target database (default: per program)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "table", "Output format (table|json|yaml)")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "", "Write results to a file instead of stdout")
	searchCmd.Flags().BoolVar(&searchRefresh, "refresh", false, "Ignore cached hits and query the remote service again")
	searchCmd.MarkFlagsMutuallyExclusive("sequence", "file")
	searchCmd.MarkFlagsOneRequired("sequence", "file")
}

func runSearch(cmd *cobra.Command, args []string) error {
	sequence := searchSequence
	if searchFile != "" {
		raw, err := os.ReadFile(searchFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", searchFile, err)
		}
		sequence = string(raw)
	}

	req := domain.SearchRequest{
		Sequence: sequence,
		Program:  domain.Program(searchProgram),
		Database: searchDatabase,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return withApp(ctx, func(a *app.App, logger *logrus.Logger) error {
		if searchRefresh {
			if err := a.Search.Forget(ctx, req); err != nil {
				return err
			}
		}
		hits, err := a.Search.RunSearch(ctx, req)
		if err != nil {
			return err
		}

		w, closeOut, err := outputWriter(searchOutput)
		if err != nil {
			return err
		}
		if err := writeHits(w, hits, searchFormat); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	})
}

func writeHits(w io.Writer, hits []domain.HitRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(hits); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		if len(hits) == 0 {
			_, err := fmt.Fprintln(w, "No significant hits")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tACCESSION\tEVALUE\tSCORE\tIDENTITY\tORGANISM\tDESCRIPTION")
		for _, h := range hits {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				h.Rank, h.Accession, h.EValue, h.Score, orDash(h.PercentIdentity), orDash(h.Organism), h.Description)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

