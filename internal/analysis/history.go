package analysis

import (
	"context"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/pkg/models"
)

// HistoryClient is the part of the remote client the history panel uses
type HistoryClient interface {
	FetchHistory(ctx context.Context) (*api.HistoryResult, error)
}

// HistoryPanel tracks the history list. Entries are never cached across
// toggles: every open refetches.
type HistoryPanel struct {
	open    bool
	loading bool
	entries []models.HistoryEntry
	err     error
	// generation ties a fetch to the open that issued it
	generation int
}

// Toggle opens or closes the panel. It returns a non-zero generation when
// the caller must fetch.
func (h *HistoryPanel) Toggle() int {
	if h.open {
		h.open = false
		h.loading = false
		return 0
	}
	h.open = true
	h.loading = true
	h.entries = nil
	h.err = nil
	h.generation++
	return h.generation
}

// Complete applies a fetch result. Results for an earlier open, or arriving
// after the panel was closed, are dropped.
func (h *HistoryPanel) Complete(generation int, res *api.HistoryResult, err error) bool {
	if !h.open || generation != h.generation {
		return false
	}
	h.loading = false
	if err != nil {
		h.err = err
		return true
	}
	if res == nil || !res.Success {
		h.err = &api.BackendError{Op: "history", Message: "history unavailable"}
		return true
	}
	h.entries = res.Data
	return true
}

func (h *HistoryPanel) Open() bool                     { return h.open }
func (h *HistoryPanel) Loading() bool                  { return h.loading }
func (h *HistoryPanel) Entries() []models.HistoryEntry { return h.entries }
func (h *HistoryPanel) Err() error                     { return h.err }
