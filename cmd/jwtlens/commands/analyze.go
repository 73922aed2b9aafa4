package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strrl/jwt-lens/internal/analysis"
	"github.com/strrl/jwt-lens/pkg/models"
)

var analyzePhases []string

// NewAnalyzeCommand creates the analyze command
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <token>",
		Short: "Analyze a token and print one or more phases",
		Long: `Analyze a token without the TUI.
The token is checked locally first; a malformed token never reaches the
service. One analysis call serves every requested phase.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}
	cmd.Flags().StringSliceVarP(&analyzePhases, "phase", "p", []string{"lexical"},
		"phases to print: lexical, syntactic, semantic (repeatable)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	phases := make([]models.Phase, 0, len(analyzePhases))
	for _, name := range analyzePhases {
		p, err := models.ParsePhase(name)
		if err != nil {
			return err
		}
		phases = append(phases, p)
	}

	out := cmd.OutOrStdout()
	opts := []analysis.Option{
		analysis.WithNotifier(printer{w: out}),
		analysis.WithLogger(logger),
	}
	if j := openJournal(); j != nil {
		opts = append(opts, analysis.WithRecorder(j))
	}
	orch := analysis.NewOrchestrator(newClient(), opts...)
	orch.SetToken(args[0])

	ctx := commandContext(cmd)
	for _, phase := range phases {
		orch.Analyze(ctx, phase)
		sig := orch.Signals()
		if sig.Err != nil && sig.State != analysis.StateFailed {
			// rejected locally, no call was made
			return fmt.Errorf("invalid token: %w", sig.Err)
		}
		if view, ok := orch.View(); ok {
			printPhase(out, view)
		}
		if sig.State == analysis.StateFailed {
			return fmt.Errorf("analysis failed: %w", sig.Err)
		}
	}

	if orch.Signals().HasAnalysis {
		sum := orch.Summary()
		section(out, "Summary")
		fmt.Fprintf(out, "Subject: %s\n", valueOr(sum.Subject, "-"))
		fmt.Fprintf(out, "Name:    %s\n", valueOr(sum.Name, "-"))
		if sum.ValidSignature != nil {
			fmt.Fprintf(out, "Structure valid: %t\n", *sum.ValidSignature)
		}
	}
	return nil
}

func printPhase(w io.Writer, r models.PhaseResult) {
	section(w, r.Phase().Title()+" analysis")

	switch p := r.(type) {
	case models.LexicalPhase:
		printJSON(w, "Header", p.Header)
		printJSON(w, "Payload", p.Payload)
		fmt.Fprintf(w, "Tokens (%d):\n", len(p.Tokens))
		for i, t := range p.Tokens {
			fmt.Fprintf(w, "  %d. %-14s %s\n", i+1, t.Type, t.Value)
		}
		if p.Alphabet != nil {
			printJSON(w, "Alphabet", p.Alphabet)
		}
	case models.SyntacticPhase:
		printValid(w, p.Valid)
		if p.Grammar != nil {
			printJSON(w, "Grammar", p.Grammar)
		}
		if p.Tree != nil {
			printJSON(w, "Syntax tree", p.Tree)
		}
	case models.SemanticPhase:
		printValid(w, p.Valid)
		if p.Validations != nil {
			printJSON(w, "Validations", p.Validations)
		}
		if p.SymbolTable != nil {
			printJSON(w, "Symbol table", p.SymbolTable)
		}
		fmt.Fprint(w, "Time claims: ")
		printValid(w, p.TimeClaims.Valid)
		printList(w, "Time claim warnings", p.TimeClaims.Warnings)
	}

	printList(w, "Errors", r.Problems())
	switch p := r.(type) {
	case models.LexicalPhase:
		printList(w, "Warnings", p.Warnings)
	case models.SyntacticPhase:
		printList(w, "Warnings", p.Warnings)
	case models.SemanticPhase:
		printList(w, "Warnings", p.Warnings)
	}
}

func printJSON(w io.Writer, label string, v any) {
	body, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		fmt.Fprintf(w, "%s: %v\n", label, v)
		return
	}
	fmt.Fprintf(w, "%s:\n  %s\n", label, body)
}

func printValid(w io.Writer, valid *bool) {
	switch {
	case valid == nil:
		fmt.Fprintln(w, "Valid: not reported")
	default:
		fmt.Fprintf(w, "Valid: %t\n", *valid)
	}
}

func printList(w io.Writer, label string, items models.Messages) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", strings.TrimSpace(item))
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
