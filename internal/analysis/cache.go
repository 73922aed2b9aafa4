package analysis

import "github.com/strrl/jwt-lens/pkg/models"

// PhaseCache memoises phase results for the current token. It never
// fetches; the Orchestrator is its only writer.
type PhaseCache struct {
	entries map[models.Phase]models.PhaseResult
}

// NewPhaseCache returns an empty cache
func NewPhaseCache() *PhaseCache {
	return &PhaseCache{entries: make(map[models.Phase]models.PhaseResult, len(models.AllPhases))}
}

// Get is a pure lookup
func (c *PhaseCache) Get(phase models.Phase) (models.PhaseResult, bool) {
	r, ok := c.entries[phase]
	return r, ok
}

// Put stores result under phase, replacing any previous entry
func (c *PhaseCache) Put(phase models.Phase, result models.PhaseResult) {
	if result == nil {
		return
	}
	c.entries[phase] = result
}

// Clear drops every entry. There is no per-phase invalidation.
func (c *PhaseCache) Clear() {
	for k := range c.entries {
		delete(c.entries, k)
	}
}

// Len reports how many phases are cached
func (c *PhaseCache) Len() int { return len(c.entries) }
