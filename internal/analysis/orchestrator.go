// Package analysis owns the per-token analysis session: when to call the
// analyzer, how one response is split into phases, and what the user is
// told about it.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/classify"
	"github.com/strrl/jwt-lens/internal/validator"
	"github.com/strrl/jwt-lens/pkg/models"
)

// State is the orchestrator lifecycle state
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Analyzer is the part of the remote client the orchestrator needs
type Analyzer interface {
	Analyze(ctx context.Context, token string) (*models.AnalysisResult, error)
}

// Recorder receives every classified outcome
type Recorder interface {
	Record(ctx context.Context, entry models.JournalEntry) error
}

// Request is one in-flight analyze call, bound to the token it was issued
// for.
type Request struct {
	ID     string
	Token  string
	Phase  models.Phase
	Issued time.Time
}

// Step is what a transition produced. A non-nil Request must be fetched
// and handed back to Complete.
type Step struct {
	Request *Request
	Notice  *classify.Notice
	Stale   bool
}

// Signals is a read-only snapshot of the session for presentation
type Signals struct {
	Token       string
	State       State
	Loading     bool
	Err         error
	ActivePhase models.Phase
	ViewerOpen  bool
	Category    classify.Category
	HasAnalysis bool
}

// session is all mutable state for one token. It is replaced wholesale on
// token change or clear.
type session struct {
	token       string
	state       State
	analysis    *models.AnalysisResult
	cache       *PhaseCache
	activePhase models.Phase
	viewerOpen  bool
	placeholder models.PhaseResult
	err         error
	category    classify.Category
	pending     *Request
}

func newSession(token string) session {
	return session{
		token:       token,
		state:       StateIdle,
		cache:       NewPhaseCache(),
		activePhase: models.PhaseLexical,
	}
}

// Orchestrator decides, per phase request, between cache, projection of a
// prior analysis, and a new analyze call.
type Orchestrator struct {
	mu       sync.Mutex
	client   Analyzer
	notifier classify.Notifier
	recorder Recorder
	logger   *zap.Logger
	s        session
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithNotifier routes notices to n
func WithNotifier(n classify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithRecorder journals every classified outcome
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator with an empty session
func NewOrchestrator(client Analyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client: client,
		logger: zap.NewNop(),
		s:      newSession(""),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetToken updates the token text. Any change starts a new session, which
// drops the analysis, the cache and every signal.
func (o *Orchestrator) SetToken(text string) bool {
	token := strings.TrimSpace(text)

	o.mu.Lock()
	defer o.mu.Unlock()

	if token == o.s.token {
		return false
	}
	if o.s.pending != nil {
		o.logger.Debug("token changed with request in flight", zap.String("request_id", o.s.pending.ID))
	}
	o.s = newSession(token)
	return true
}

// Clear resets the token text, analysis, cache and all signals at once
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.s = newSession("")
}

// CloseViewer hides the phase viewer without touching cached data
func (o *Orchestrator) CloseViewer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.s.viewerOpen = false
}

// RequestPhase asks to view phase for the current token
func (o *Orchestrator) RequestPhase(phase models.Phase) Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requestPhaseLocked(phase)
}

// ChangePhase switches the viewer to phase. Cached phases switch with no
// call; otherwise it behaves like RequestPhase.
func (o *Orchestrator) ChangePhase(phase models.Phase) Step {
	return o.RequestPhase(phase)
}

func (o *Orchestrator) requestPhaseLocked(phase models.Phase) Step {
	s := &o.s

	if err := validator.Validate(s.token); err != nil {
		s.err = err
		s.category = classify.InvalidStructure
		if s.state != StateFailed {
			s.state = StateIdle
		}
		notice := classify.NoticeFor(classify.InvalidStructure, err.Error())
		o.deliver(notice)
		return Step{Notice: &notice}
	}

	if _, ok := s.cache.Get(phase); ok {
		s.activePhase = phase
		s.viewerOpen = true
		s.placeholder = nil
		return Step{}
	}

	if s.analysis != nil {
		s.cache.Put(phase, models.Project(s.analysis, phase))
		s.activePhase = phase
		s.viewerOpen = true
		s.placeholder = nil
		return Step{}
	}

	if s.pending != nil {
		// the in-flight response fills every phase
		s.activePhase = phase
		return Step{}
	}

	req := &Request{
		ID:     uuid.New().String(),
		Token:  s.token,
		Phase:  phase,
		Issued: time.Now(),
	}
	s.pending = req
	s.state = StateLoading
	s.activePhase = phase
	s.err = nil
	o.logger.Debug("analysis requested",
		zap.String("request_id", req.ID),
		zap.String("phase", string(phase)))
	return Step{Request: req}
}

// Fetch performs the network call for req. It touches no session state and
// is safe to run off the event loop.
func (o *Orchestrator) Fetch(ctx context.Context, req *Request) (*models.AnalysisResult, error) {
	return o.client.Analyze(ctx, req.Token)
}

// Complete applies the outcome of req. Responses for a token or request
// that is no longer current are discarded.
func (o *Orchestrator) Complete(ctx context.Context, req *Request, result *models.AnalysisResult, err error) Step {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := &o.s
	if req == nil || s.pending == nil || s.pending.ID != req.ID || s.token != req.Token {
		o.logger.Debug("discarding stale analysis response", zap.Bool("has_request", req != nil))
		return Step{Stale: true}
	}
	s.pending = nil
	phase := s.activePhase

	if err == nil && result == nil {
		err = &api.ShapeError{Op: "analyze", Err: errEmptyResult}
	}

	if err == nil {
		category := classify.Response(result)
		if category == classify.BackendFailure {
			err = &api.BackendError{Op: "analyze", Message: backendMessage(result), Code: result.ErrorCode}
			notice := classify.NoticeFor(category, classify.Evidence(category, result)...)
			o.failLocked(phase, err, category)
			o.finish(ctx, req, notice)
			return Step{Notice: &notice}
		}

		s.analysis = result
		for _, p := range models.AllPhases {
			s.cache.Put(p, models.Project(result, p))
		}
		s.state = StateReady
		s.err = nil
		s.category = category
		s.viewerOpen = true
		s.placeholder = nil

		notice := classify.NoticeFor(category, classify.Evidence(category, result)...)
		o.finish(ctx, req, notice)
		return Step{Notice: &notice}
	}

	category := classify.Failure(err)
	o.failLocked(phase, err, category)
	notice := classify.NoticeFor(category, failureDetail(err))
	o.finish(ctx, req, notice)
	return Step{Notice: &notice}
}

// Analyze runs a phase request to completion, blocking on the network when
// the session has nothing to serve it from.
func (o *Orchestrator) Analyze(ctx context.Context, phase models.Phase) Step {
	step := o.RequestPhase(phase)
	if step.Request == nil {
		return step
	}
	result, err := o.Fetch(ctx, step.Request)
	return o.Complete(ctx, step.Request, result, err)
}

func (o *Orchestrator) failLocked(phase models.Phase, err error, category classify.Category) {
	s := &o.s
	s.state = StateFailed
	s.err = err
	s.category = category
	s.viewerOpen = true
	s.placeholder = models.Placeholder(phase, failureDetail(err))
}

func (o *Orchestrator) finish(ctx context.Context, req *Request, notice classify.Notice) {
	o.logger.Info("analysis completed",
		zap.String("request_id", req.ID),
		zap.String("phase", string(req.Phase)),
		zap.String("category", string(notice.Category)),
		zap.Duration("latency", time.Since(req.Issued)))

	o.deliver(notice)

	if o.recorder == nil {
		return
	}
	entry := models.JournalEntry{
		RequestID:   req.ID,
		TokenDigest: Digest(req.Token),
		Operation:   "analyze",
		Phase:       req.Phase,
		Category:    string(notice.Category),
		Severity:    notice.Severity.String(),
		Detail:      notice.Detail,
		RecordedAt:  time.Now(),
	}
	if err := o.recorder.Record(ctx, entry); err != nil {
		o.logger.Warn("failed to journal analysis", zap.Error(err))
	}
}

func (o *Orchestrator) deliver(notice classify.Notice) {
	classify.Deliver(o.notifier, notice)
}

// Signals returns the current presentation state
func (o *Orchestrator) Signals() Signals {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Signals{
		Token:       o.s.token,
		State:       o.s.state,
		Loading:     o.s.state == StateLoading,
		Err:         o.s.err,
		ActivePhase: o.s.activePhase,
		ViewerOpen:  o.s.viewerOpen,
		Category:    o.s.category,
		HasAnalysis: o.s.analysis != nil,
	}
}

// View returns what the viewer should render for the active phase: the
// cached result, or the placeholder left by a failed fetch.
func (o *Orchestrator) View() (models.PhaseResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.s.cache.Get(o.s.activePhase); ok {
		return r, true
	}
	if o.s.placeholder != nil {
		return o.s.placeholder, true
	}
	return nil, false
}

// Cached looks phase up in the cache without fetching
func (o *Orchestrator) Cached(phase models.Phase) (models.PhaseResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.cache.Get(phase)
}

// Analysis returns the full result for the current token, if any
func (o *Orchestrator) Analysis() *models.AnalysisResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.analysis
}

// Summary is the headline view of the current analysis
func (o *Orchestrator) Summary() models.Summary {
	return o.Analysis().Summary()
}

// Digest identifies a token in logs and the journal without storing it
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
