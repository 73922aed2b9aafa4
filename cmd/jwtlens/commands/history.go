package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/jwt-lens/internal/analysis"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the example tokens kept by the service",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	client := newClient()

	var panel analysis.HistoryPanel
	generation := panel.Toggle()
	res, err := client.FetchHistory(commandContext(cmd))
	panel.Complete(generation, res, err)
	if panel.Err() != nil {
		return fmt.Errorf("failed to fetch history: %w", panel.Err())
	}

	entries := panel.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries")
		return nil
	}

	section(out, "History")
	for i, e := range entries {
		fmt.Fprintf(out, "%d. %s\n", i+1, valueOr(e.Description, "(no description)"))
		fmt.Fprintf(out, "   %s\n", e.Token)
	}
	return nil
}
