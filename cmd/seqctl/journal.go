package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clone-sequence-server/internal/app"
	"github.com/clone-sequence-server/internal/journal"
)

var (
	journalReference string
	journalKind      string
	journalLimit     int
	journalExport    string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the job and submission audit trail",
	Example: `  seqctl journal --reference RID123
  seqctl journal --kind submission --limit 20
  seqctl journal --export journal.json`,
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().StringVar(&journalReference, "reference", "", "Remote job ID or workspace ID")
	journalCmd.Flags().StringVar(&journalKind, "kind", "", "Entry kind (search|submission)")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "l", journal.DefaultListLimit, "Maximum entries to show")
	journalCmd.Flags().StringVar(&journalExport, "export", "", "Export the whole journal as JSON to a file (- for stdout)")
}

func runJournal(cmd *cobra.Command, args []string) error {
	kind := journal.Kind(journalKind)
	if kind != "" && kind != journal.KindSearch && kind != journal.KindSubmission {
		return fmt.Errorf("unknown kind %q", journalKind)
	}

	return withApp(cmd.Context(), func(a *app.App, logger *logrus.Logger) error {
		if journalExport != "" {
			w, closeOut, err := outputWriter(journalExport)
			if err != nil {
				return err
			}
			if err := a.Journal.ExportJSON(cmd.Context(), w); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		}

		entries, err := a.Journal.List(cmd.Context(), journal.Filter{
			Kind:      kind,
			Reference: journalReference,
			Limit:     journalLimit,
		})
		if err != nil {
			return err
		}
		return writeEntries(cmd.OutOrStdout(), entries)
	})
}

func writeEntries(w io.Writer, entries []*journal.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No journal entries")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tREFERENCE\tSTATUS\tATTEMPTS\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Kind, orDash(e.Reference), e.Status, e.Attempts, firstLine(e.Detail))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
