// Package batch analyzes many tokens concurrently, one session per token.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/strrl/jwt-lens/internal/analysis"
	"github.com/strrl/jwt-lens/internal/classify"
	"github.com/strrl/jwt-lens/pkg/models"
)

// DefaultWorkers bounds concurrent analyze calls when no limit is given
const DefaultWorkers = 4

// Outcome is the classified result for one token
type Outcome struct {
	// Index is the position of Token in the input
	Index    int
	Token    string
	Category classify.Category
	Detail   string
	Err      error
}

// Run analyzes every token with at most workers calls in flight. Outcomes
// arrive in completion order; the channel is closed once every token is
// done or ctx is cancelled. opts apply to each per-token orchestrator, so
// any Recorder among them must be safe for concurrent use.
func Run(ctx context.Context, client analysis.Analyzer, tokens []string, workers int, opts ...analysis.Option) <-chan Outcome {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make(chan Outcome, len(tokens))

	go func() {
		defer close(results)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, token := range tokens {
			if gctx.Err() != nil {
				break
			}
			i, token := i, token
			g.Go(func() error {
				outcome := analyzeOne(gctx, client, i, token, opts)
				select {
				case results <- outcome:
				case <-gctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	return results
}

func analyzeOne(ctx context.Context, client analysis.Analyzer, index int, token string, opts []analysis.Option) Outcome {
	orch := analysis.NewOrchestrator(client, opts...)
	orch.SetToken(token)
	step := orch.Analyze(ctx, models.PhaseLexical)

	out := Outcome{Index: index, Token: token}
	if step.Notice != nil {
		out.Category = step.Notice.Category
		out.Detail = step.Notice.Detail
	}
	if sig := orch.Signals(); sig.Err != nil {
		out.Err = sig.Err
	}
	return out
}

// Collect drains ch into a slice ordered by input position
func Collect(ch <-chan Outcome, n int) []Outcome {
	out := make([]Outcome, n)
	seen := make([]bool, n)
	for o := range ch {
		if o.Index >= 0 && o.Index < n {
			out[o.Index] = o
			seen[o.Index] = true
		}
	}
	filtered := out[:0]
	for i, o := range out {
		if seen[i] {
			filtered = append(filtered, o)
		}
	}
	return filtered
}
