package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/classify"
	"github.com/strrl/jwt-lens/pkg/models"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  []string
	result *models.AnalysisResult
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, token string) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, token)
	return f.result, f.err
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type notice struct {
	severity string
	title    string
	detail   string
}

type fakeNotifier struct {
	notices []notice
}

func (n *fakeNotifier) NotifyError(title, detail string) {
	n.notices = append(n.notices, notice{"error", title, detail})
}

func (n *fakeNotifier) NotifySuccess(title, detail string) {
	n.notices = append(n.notices, notice{"success", title, detail})
}

func (n *fakeNotifier) NotifyWarning(title, detail string) {
	n.notices = append(n.notices, notice{"warning", title, detail})
}

type fakeRecorder struct {
	entries []models.JournalEntry
}

func (r *fakeRecorder) Record(ctx context.Context, e models.JournalEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func validResult() *models.AnalysisResult {
	valid := true
	return &models.AnalysisResult{
		Header:    map[string]any{"alg": "HS256"},
		Payload:   map[string]any{"sub": "1", "name": "Alice"},
		Tokens:    []models.LexicalToken{{Type: "HEADER", Value: "eyJ"}},
		Errors:    models.Messages{},
		Syntactic: models.SyntacticResult{Valid: &valid},
		Semantic:  models.SemanticResult{Valid: &valid},
	}
}

const testToken = "abc.def.ghi"

func TestEmptyTokenIssuesNoCall(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	n := &fakeNotifier{}
	o := NewOrchestrator(client, WithNotifier(n))

	o.SetToken("")
	step := o.RequestPhase(models.PhaseLexical)

	assert.Nil(t, step.Request)
	require.NotNil(t, step.Notice)
	assert.Equal(t, classify.InvalidStructure, step.Notice.Category)
	assert.Zero(t, client.callCount())

	sig := o.Signals()
	assert.False(t, sig.Loading)
	assert.Equal(t, StateIdle, sig.State)
	assert.Error(t, sig.Err)
	require.Len(t, n.notices, 1)
	assert.Equal(t, "error", n.notices[0].severity)
}

func TestFullAnalysisPopulatesEveryPhase(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)

	step := o.Analyze(context.Background(), models.PhaseLexical)
	require.NotNil(t, step.Notice)
	assert.Equal(t, classify.Valid, step.Notice.Category)

	for _, p := range models.AllPhases {
		r, ok := o.Cached(p)
		require.True(t, ok, "phase %s should be cached", p)
		assert.Equal(t, p, r.Phase())
	}
	assert.Equal(t, 1, client.callCount())

	sig := o.Signals()
	assert.Equal(t, StateReady, sig.State)
	assert.True(t, sig.ViewerOpen)
	assert.True(t, sig.HasAnalysis)
	assert.Equal(t, models.PhaseLexical, sig.ActivePhase)

	summary := o.Summary()
	assert.Equal(t, "1", summary.Subject)
	assert.Equal(t, "Alice", summary.Name)
	require.NotNil(t, summary.ValidSignature)
	assert.True(t, *summary.ValidSignature)
}

func TestChangePhaseIsServedFromCache(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)

	o.Analyze(context.Background(), models.PhaseLexical)
	step := o.ChangePhase(models.PhaseSemantic)
	assert.Nil(t, step.Request)
	assert.Nil(t, step.Notice)
	step = o.ChangePhase(models.PhaseSyntactic)
	assert.Nil(t, step.Request)

	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, models.PhaseSyntactic, o.Signals().ActivePhase)

	view, ok := o.View()
	require.True(t, ok)
	_, isSyntactic := view.(models.SyntacticPhase)
	assert.True(t, isSyntactic)
}

func TestChangePhaseTwiceIssuesAtMostOneCall(t *testing.T) {
	for _, p := range models.AllPhases {
		t.Run(string(p), func(t *testing.T) {
			client := &fakeAnalyzer{result: validResult()}
			o := NewOrchestrator(client)
			o.SetToken(testToken)

			o.Analyze(context.Background(), p)
			o.Analyze(context.Background(), p)
			assert.Equal(t, 1, client.callCount())
		})
	}
}

func TestRequestWhileInFlightDoesNotIssueSecondCall(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)

	first := o.RequestPhase(models.PhaseLexical)
	require.NotNil(t, first.Request)
	assert.True(t, o.Signals().Loading)

	second := o.RequestPhase(models.PhaseSemantic)
	assert.Nil(t, second.Request, "duplicate submit must not race a second request")
	assert.Equal(t, models.PhaseSemantic, o.Signals().ActivePhase)

	result, err := o.Fetch(context.Background(), first.Request)
	o.Complete(context.Background(), first.Request, result, err)

	view, ok := o.View()
	require.True(t, ok)
	assert.Equal(t, models.PhaseSemantic, view.Phase())
	assert.Equal(t, 1, client.callCount())
}

func TestClearResetsEverything(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)
	o.Analyze(context.Background(), models.PhaseLexical)

	o.Clear()

	for _, p := range models.AllPhases {
		_, ok := o.Cached(p)
		assert.False(t, ok, "phase %s should be gone", p)
	}
	assert.Nil(t, o.Analysis())
	sig := o.Signals()
	assert.Equal(t, Signals{State: StateIdle, ActivePhase: models.PhaseLexical}, sig)

	_, ok := o.View()
	assert.False(t, ok)
}

func TestTokenChangeInvalidatesCache(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)
	o.Analyze(context.Background(), models.PhaseLexical)

	assert.False(t, o.SetToken("  "+testToken+"\n"), "surrounding whitespace is not a change")
	_, ok := o.Cached(models.PhaseLexical)
	assert.True(t, ok)

	assert.True(t, o.SetToken("xyz.uvw.rst"))
	for _, p := range models.AllPhases {
		_, ok := o.Cached(p)
		assert.False(t, ok)
	}
	assert.Nil(t, o.Analysis())

	o.Analyze(context.Background(), models.PhaseSyntactic)
	assert.Equal(t, []string{testToken, "xyz.uvw.rst"}, client.calls)
}

func TestLexicalErrorScenario(t *testing.T) {
	client := &fakeAnalyzer{result: &models.AnalysisResult{Errors: models.Messages{"JSON inválido"}}}
	n := &fakeNotifier{}
	rec := &fakeRecorder{}
	o := NewOrchestrator(client, WithNotifier(n), WithRecorder(rec))
	o.SetToken("abc.def.ghi")

	step := o.Analyze(context.Background(), models.PhaseLexical)

	assert.Equal(t, 1, client.callCount())
	require.NotNil(t, step.Notice)
	assert.Equal(t, classify.LexicalError, step.Notice.Category)
	require.Len(t, n.notices, 1)
	assert.Equal(t, "error", n.notices[0].severity)
	assert.Equal(t, "Lexical errors", n.notices[0].title)
	assert.Contains(t, n.notices[0].detail, "JSON inválido")

	// the response is still viewable
	assert.Equal(t, StateReady, o.Signals().State)
	view, ok := o.View()
	require.True(t, ok)
	assert.Equal(t, models.Messages{"JSON inválido"}, view.Problems())

	require.Len(t, rec.entries, 1)
	assert.Equal(t, string(classify.LexicalError), rec.entries[0].Category)
	assert.Equal(t, Digest("abc.def.ghi"), rec.entries[0].TokenDigest)
	assert.NotContains(t, rec.entries[0].TokenDigest, "abc")
}

func TestTransportFailureLeavesPlaceholderAndRetries(t *testing.T) {
	client := &fakeAnalyzer{err: &api.TransportError{Op: "analyze", StatusCode: 400, Message: "Error decodificando base64"}}
	n := &fakeNotifier{}
	o := NewOrchestrator(client, WithNotifier(n))
	o.SetToken(testToken)

	step := o.Analyze(context.Background(), models.PhaseSyntactic)
	require.NotNil(t, step.Notice)
	assert.Equal(t, classify.InvalidEncoding, step.Notice.Category)

	sig := o.Signals()
	assert.Equal(t, StateFailed, sig.State)
	assert.False(t, sig.Loading)
	assert.True(t, sig.ViewerOpen)
	assert.Error(t, sig.Err)

	view, ok := o.View()
	require.True(t, ok, "viewer must have a defined shape after a failure")
	syn, isSyntactic := view.(models.SyntacticPhase)
	require.True(t, isSyntactic)
	assert.Equal(t, models.Messages{"Error decodificando base64"}, syn.Errors)

	_, cached := o.Cached(models.PhaseSyntactic)
	assert.False(t, cached, "placeholders never enter the cache")

	client.err = nil
	client.result = validResult()
	o.Analyze(context.Background(), models.PhaseSyntactic)
	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, StateReady, o.Signals().State)
}

func TestLexicalPlaceholderShape(t *testing.T) {
	client := &fakeAnalyzer{err: errors.New("dial tcp: connection refused")}
	o := NewOrchestrator(client)
	o.SetToken(testToken)
	o.Analyze(context.Background(), models.PhaseLexical)

	view, ok := o.View()
	require.True(t, ok)
	lex, isLexical := view.(models.LexicalPhase)
	require.True(t, isLexical)
	assert.NotNil(t, lex.Tokens)
	assert.Empty(t, lex.Tokens)
	assert.NotNil(t, lex.Header)
	assert.Equal(t, models.Messages{"dial tcp: connection refused"}, lex.Errors)
}

func TestBackendFailureIsNotCached(t *testing.T) {
	failed := false
	client := &fakeAnalyzer{result: &models.AnalysisResult{Success: &failed, Error: "token corrupto"}}
	o := NewOrchestrator(client)
	o.SetToken(testToken)

	step := o.Analyze(context.Background(), models.PhaseLexical)
	require.NotNil(t, step.Notice)
	assert.Equal(t, classify.BackendFailure, step.Notice.Category)
	assert.Equal(t, StateFailed, o.Signals().State)
	assert.Nil(t, o.Analysis())

	var berr *api.BackendError
	require.True(t, errors.As(o.Signals().Err, &berr))
	assert.Equal(t, "token corrupto", berr.Message)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	rec := &fakeRecorder{}
	o := NewOrchestrator(client, WithRecorder(rec))
	o.SetToken(testToken)

	step := o.RequestPhase(models.PhaseLexical)
	require.NotNil(t, step.Request)

	o.SetToken("new.tok.en")
	done := o.Complete(context.Background(), step.Request, validResult(), nil)

	assert.True(t, done.Stale)
	assert.Nil(t, o.Analysis())
	_, ok := o.Cached(models.PhaseLexical)
	assert.False(t, ok)
	assert.Equal(t, StateIdle, o.Signals().State)
	assert.Empty(t, rec.entries)
}

func TestStaleResponseAfterReissueForSameToken(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)

	old := o.RequestPhase(models.PhaseLexical)
	o.SetToken("other.tok.en")
	o.SetToken(testToken)
	current := o.RequestPhase(models.PhaseLexical)
	require.NotNil(t, current.Request)
	require.NotEqual(t, old.Request.ID, current.Request.ID)

	assert.True(t, o.Complete(context.Background(), old.Request, validResult(), nil).Stale)
	assert.True(t, o.Signals().Loading)
	assert.False(t, o.Complete(context.Background(), current.Request, validResult(), nil).Stale)
	assert.Equal(t, StateReady, o.Signals().State)
}

func TestNilResultIsUnexpectedShape(t *testing.T) {
	client := &fakeAnalyzer{}
	o := NewOrchestrator(client)
	o.SetToken(testToken)

	step := o.Analyze(context.Background(), models.PhaseLexical)
	require.NotNil(t, step.Notice)
	assert.Equal(t, classify.UnexpectedResponse, step.Notice.Category)
	assert.Equal(t, StateFailed, o.Signals().State)
}

func TestCloseViewerKeepsCache(t *testing.T) {
	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)
	o.Analyze(context.Background(), models.PhaseLexical)

	o.CloseViewer()
	assert.False(t, o.Signals().ViewerOpen)
	_, ok := o.Cached(models.PhaseLexical)
	assert.True(t, ok)

	o.RequestPhase(models.PhaseLexical)
	assert.True(t, o.Signals().ViewerOpen)
	assert.Equal(t, 1, client.callCount())
}

func TestAnalyzeLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &fakeAnalyzer{result: validResult()}
	o := NewOrchestrator(client)
	o.SetToken(testToken)
	o.Analyze(context.Background(), models.PhaseSemantic)
}

func TestPhaseCache(t *testing.T) {
	c := NewPhaseCache()
	_, ok := c.Get(models.PhaseLexical)
	assert.False(t, ok)

	c.Put(models.PhaseLexical, models.LexicalPhase{})
	c.Put(models.PhaseSemantic, nil)
	assert.Equal(t, 1, c.Len())

	c.Put(models.PhaseLexical, models.LexicalPhase{Errors: models.Messages{"x"}})
	r, ok := c.Get(models.PhaseLexical)
	require.True(t, ok)
	assert.Equal(t, models.Messages{"x"}, r.Problems())
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}
