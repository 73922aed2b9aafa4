package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/jwt-lens/internal/analysis"
	"github.com/strrl/jwt-lens/internal/batch"
	"github.com/strrl/jwt-lens/internal/db"
)

var (
	journalLimit   int
	journalWorkers int
)

// NewJournalCommand creates the journal command
func NewJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal <token>...",
		Short: "Analyze several tokens and tally the outcomes",
		Long: `Analyze every token given, then print the session journal: how often
each outcome occurred and the most recent entries. The journal lives in
memory and is discarded when the command exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runJournal,
	}
	cmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of recent entries to print")
	cmd.Flags().IntVarP(&journalWorkers, "workers", "w", batch.DefaultWorkers, "concurrent analyze calls")
	return cmd
}

func runJournal(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	journal, err := db.OpenJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	ctx := commandContext(cmd)
	results := batch.Run(ctx, newClient(), args, journalWorkers,
		analysis.WithRecorder(journal),
		analysis.WithLogger(logger))
	for _, o := range batch.Collect(results, len(args)) {
		fmt.Fprintf(out, "%-24s %s\n", o.Category, analysis.Digest(o.Token))
	}

	counts, err := journal.CategoryCounts(ctx)
	if err != nil {
		return err
	}
	section(out, "Outcomes")
	for _, c := range counts {
		fmt.Fprintf(out, "%-24s %d\n", c.Category, c.Count)
	}

	entries, err := journal.Recent(ctx, journalLimit)
	if err != nil {
		return err
	}
	section(out, "Recent")
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-12s %-10s %-22s %s\n",
			e.RecordedAt.Format("15:04:05.000"), e.Operation, e.Phase, e.Category, e.TokenDigest)
	}
	return nil
}
