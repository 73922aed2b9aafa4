package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/jwt-lens/internal/analysis"
	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/classify"
	"github.com/strrl/jwt-lens/internal/encoder"
	"github.com/strrl/jwt-lens/pkg/models"
)

// Message types for async operations
type (
	// AnalysisLoadedMsg carries the outcome of one analyze request
	AnalysisLoadedMsg struct {
		Request *analysis.Request
		Result  *models.AnalysisResult
		Err     error
	}

	// VerifiedMsg carries a classified signature check
	VerifiedMsg struct {
		Notice classify.Notice
		Result *api.VerifyResult
	}

	// EncodedMsg carries the outcome of one generate call
	EncodedMsg struct {
		Job    *encoder.Job
		Result *api.EncodeResult
		Err    error
	}

	// HistoryLoadedMsg carries the history list for one panel open
	HistoryLoadedMsg struct {
		Generation int
		Result     *api.HistoryResult
		Err        error
	}

	// JournalLoadedMsg carries the most recent journal entries
	JournalLoadedMsg struct {
		Entries []models.JournalEntry
		Err     error
	}

	// TickMsg is sent periodically for spinner animation
	TickMsg time.Time
)

// Commands for async operations. None of them touch model state; results
// come back as messages and are applied in Update.

// analyzeCmd performs the network call for an issued request
func analyzeCmd(ctx context.Context, orch *analysis.Orchestrator, req *analysis.Request) tea.Cmd {
	return func() tea.Msg {
		result, err := orch.Fetch(ctx, req)
		return AnalysisLoadedMsg{
			Request: req,
			Result:  result,
			Err:     err,
		}
	}
}

// verifyCmd checks the signature of token against secret
func verifyCmd(ctx context.Context, v *analysis.Verifier, token, secret string) tea.Cmd {
	return func() tea.Msg {
		notice, result := v.Verify(ctx, token, secret)
		return VerifiedMsg{Notice: notice, Result: result}
	}
}

// encodeCmd runs a validated generate job
func encodeCmd(ctx context.Context, w *encoder.Workflow, job *encoder.Job) tea.Cmd {
	return func() tea.Msg {
		result, err := w.Run(ctx, job)
		return EncodedMsg{Job: job, Result: result, Err: err}
	}
}

// loadHistoryCmd fetches the history list for the panel open identified by
// generation
func loadHistoryCmd(ctx context.Context, client analysis.HistoryClient, generation int) tea.Cmd {
	return func() tea.Msg {
		result, err := client.FetchHistory(ctx)
		return HistoryLoadedMsg{
			Generation: generation,
			Result:     result,
			Err:        err,
		}
	}
}

// loadJournalCmd reads the latest journal entries
func loadJournalCmd(ctx context.Context, journal Journal) tea.Cmd {
	if journal == nil {
		return nil
	}
	return func() tea.Msg {
		entries, err := journal.Recent(ctx, journalRows)
		return JournalLoadedMsg{Entries: entries, Err: err}
	}
}

// tickCmd creates a ticker for spinner animation
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
