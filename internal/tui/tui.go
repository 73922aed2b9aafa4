package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/strrl/jwt-lens/internal/analysis"
	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/internal/classify"
	"github.com/strrl/jwt-lens/internal/clip"
	"github.com/strrl/jwt-lens/internal/config"
	"github.com/strrl/jwt-lens/internal/encoder"
	"github.com/strrl/jwt-lens/pkg/models"
)

const journalRows = 15

var _ Client = (*api.Client)(nil)

// Client is everything the screens ask of the analysis service
type Client interface {
	analysis.Analyzer
	analysis.SignatureClient
	analysis.HistoryClient
	encoder.Encoder
}

// Journal records outcomes and lists the latest ones
type Journal interface {
	analysis.Recorder
	Recent(ctx context.Context, limit int) ([]models.JournalEntry, error)
}

// Options wires the TUI to its collaborators. Journal and Clipboard may be
// nil.
type Options struct {
	Client    Client
	Journal   Journal
	Clipboard encoder.ClipboardWriter
	Encoder   config.EncoderConfig
	Logger    *zap.Logger
}

type screen int

const (
	analyzerScreen screen = iota
	encoderScreen
	historyScreen
)

func (s screen) title() string {
	switch s {
	case encoderScreen:
		return "Encoder"
	case historyScreen:
		return "History"
	}
	return "Analyzer"
}

type model struct {
	ctx       context.Context
	client    Client
	journal   Journal
	clipboard encoder.ClipboardWriter
	logger    *zap.Logger

	orch     *analysis.Orchestrator
	verifier *analysis.Verifier
	enc      *encoder.Workflow
	history  analysis.HistoryPanel
	banner   *Banner
	loader   *LoadingIndicator

	screen        screen
	focus         int
	verifying     bool
	historyCursor int
	entries       []models.JournalEntry

	tokenInput   textinput.Model
	secretInput  textinput.Model
	payloadArea  textarea.Model
	encSecret    textinput.Model
	expiresInput textinput.Model

	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

func initialModel(ctx context.Context, opts Options) model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	banner := &Banner{}

	orchOpts := []analysis.Option{
		analysis.WithNotifier(banner),
		analysis.WithLogger(logger),
	}
	var recorder analysis.Recorder
	if opts.Journal != nil {
		recorder = opts.Journal
		orchOpts = append(orchOpts, analysis.WithRecorder(opts.Journal))
	}

	tokenInput := textinput.New()
	tokenInput.Placeholder = "paste a JWT (header.payload.signature)"
	tokenInput.CharLimit = 8192
	tokenInput.Focus()

	secretInput := textinput.New()
	secretInput.Placeholder = "secret for signature check (optional)"
	secretInput.EchoMode = textinput.EchoPassword
	secretInput.EchoCharacter = '•'

	payloadArea := textarea.New()
	payloadArea.Placeholder = config.DefaultPayload
	payloadArea.ShowLineNumbers = false
	payloadArea.SetHeight(6)

	encSecret := textinput.New()
	encSecret.Placeholder = "signing secret"
	encSecret.EchoMode = textinput.EchoPassword
	encSecret.EchoCharacter = '•'

	expiresInput := textinput.New()
	expiresInput.Placeholder = "expires in (seconds, optional)"
	expiresInput.CharLimit = 10

	m := model{
		ctx:          ctx,
		client:       opts.Client,
		journal:      opts.Journal,
		clipboard:    opts.Clipboard,
		logger:       logger,
		orch:         analysis.NewOrchestrator(opts.Client, orchOpts...),
		verifier:     analysis.NewVerifier(opts.Client, nil, recorder, logger),
		banner:       banner,
		loader:       NewLoadingIndicator(""),
		tokenInput:   tokenInput,
		secretInput:  secretInput,
		payloadArea:  payloadArea,
		encSecret:    encSecret,
		expiresInput: expiresInput,
	}
	m.enc = encoder.New(opts.Client, encoder.Form{
		Payload:   opts.Encoder.PayloadTemplate,
		Algorithm: opts.Encoder.Algorithm,
	}, logger)
	m.syncEncoderInputs()
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		viewHeight := max(msg.Height-m.chromeHeight(), 3)

		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewHeight
		}
		m.tokenInput.Width = max(msg.Width-12, 10)
		m.secretInput.Width = max(msg.Width-12, 10)
		m.encSecret.Width = max(msg.Width-12, 10)
		m.payloadArea.SetWidth(max(msg.Width-2, 10))
		m.updateViewport()
		return m, nil

	case TickMsg:
		if !m.loader.Active() {
			return m, nil
		}
		m.loader.Tick()
		return m, tickCmd()

	case AnalysisLoadedMsg:
		step := m.orch.Complete(m.ctx, msg.Request, msg.Result, msg.Err)
		m.stopLoaderIfIdle()
		if !step.Stale {
			m.updateViewport()
			cmds = append(cmds, loadJournalCmd(m.ctx, m.journal))
		}
		return m, tea.Batch(cmds...)

	case VerifiedMsg:
		m.verifying = false
		m.stopLoaderIfIdle()
		m.banner.Clear()
		classify.Deliver(m.banner, msg.Notice)
		return m, loadJournalCmd(m.ctx, m.journal)

	case EncodedMsg:
		if m.enc.Complete(msg.Job, msg.Result, msg.Err) {
			m.stopLoaderIfIdle()
			m.reportEncoder()
			m.updateViewport()
		}
		return m, nil

	case HistoryLoadedMsg:
		if m.history.Complete(msg.Generation, msg.Result, msg.Err) {
			m.historyCursor = 0
			m.updateViewport()
		}
		return m, nil

	case JournalLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("failed to read journal", zap.Error(msg.Err))
			return m, nil
		}
		m.entries = msg.Entries
		m.updateViewport()
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	cmds = append(cmds, m.updateInputs(msg)...)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey applies global and per-screen bindings. Keys it does not handle
// fall through to the focused input.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit, true
	case "shift+tab":
		cmd := m.switchScreen((m.screen + 1) % 3)
		return m, cmd, true
	case "ctrl+o":
		target := historyScreen
		if m.screen == historyScreen {
			target = analyzerScreen
		}
		cmd := m.switchScreen(target)
		return m, cmd, true
	case "tab":
		m.cycleFocus()
		return m, nil, true
	}

	switch m.screen {
	case analyzerScreen:
		return m.handleAnalyzerKey(msg)
	case encoderScreen:
		return m.handleEncoderKey(msg)
	case historyScreen:
		return m.handleHistoryKey(msg)
	}
	return m, nil, false
}

func (m model) handleAnalyzerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "enter":
		cmd := m.requestPhase(m.orch.Signals().ActivePhase)
		return m, cmd, true
	case "f1":
		cmd := m.requestPhase(models.PhaseLexical)
		return m, cmd, true
	case "f2":
		cmd := m.requestPhase(models.PhaseSyntactic)
		return m, cmd, true
	case "f3":
		cmd := m.requestPhase(models.PhaseSemantic)
		return m, cmd, true
	case "esc":
		m.orch.CloseViewer()
		m.updateViewport()
		return m, nil, true
	case "ctrl+x":
		m.orch.Clear()
		m.tokenInput.SetValue("")
		m.secretInput.SetValue("")
		m.banner.Clear()
		m.stopLoaderIfIdle()
		m.updateViewport()
		return m, nil, true
	case "ctrl+y":
		m.copyResult()
		return m, nil, true
	case "ctrl+s":
		if m.verifying {
			return m, nil, true
		}
		m.verifying = true
		m.banner.Clear()
		cmds := []tea.Cmd{verifyCmd(m.ctx, m.verifier, m.tokenInput.Value(), m.secretInput.Value())}
		if m.loader.Start("Checking signature...") {
			cmds = append(cmds, tickCmd())
		}
		return m, tea.Batch(cmds...), true
	}
	return m, nil, false
}

func (m model) handleEncoderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+g":
		m.readEncoderInputs()
		job, err := m.enc.Begin()
		if err != nil {
			m.reportEncoder()
			m.updateViewport()
			return m, nil, true
		}
		m.banner.Clear()
		cmds := []tea.Cmd{encodeCmd(m.ctx, m.enc, job)}
		if m.loader.Start("Generating token...") {
			cmds = append(cmds, tickCmd())
		}
		return m, tea.Batch(cmds...), true
	case "ctrl+a":
		m.enc.Form.Algorithm = nextAlgorithm(m.enc.Form.Algorithm)
		m.updateViewport()
		return m, nil, true
	case "ctrl+x":
		m.enc.ClearForm()
		m.syncEncoderInputs()
		m.banner.Clear()
		m.stopLoaderIfIdle()
		m.updateViewport()
		return m, nil, true
	case "ctrl+y":
		if m.clipboard == nil {
			m.banner.NotifyWarning("Clipboard unavailable", clip.FallbackMessage(clip.ErrUnavailable))
			return m, nil, true
		}
		if err := m.enc.Copy(m.clipboard); err != nil {
			if errors.Is(err, encoder.ErrNothingToCopy) {
				m.banner.NotifyWarning("Nothing to copy", "Generate a token first.")
			} else {
				m.banner.NotifyWarning("Clipboard unavailable", clip.FallbackMessage(err))
			}
			return m, nil, true
		}
		m.banner.NotifySuccess("Copied", "The token is on the clipboard.")
		return m, nil, true
	case "ctrl+u":
		token := m.enc.Token()
		if token == "" {
			m.banner.NotifyWarning("Nothing to analyze", "Generate a token first.")
			return m, nil, true
		}
		m.tokenInput.SetValue(token)
		m.orch.SetToken(token)
		switchCmd := m.switchScreen(analyzerScreen)
		phaseCmd := m.requestPhase(models.PhaseLexical)
		return m, tea.Batch(switchCmd, phaseCmd), true
	}
	return m, nil, false
}

func (m model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "up", "k":
		if m.historyCursor > 0 {
			m.historyCursor--
			m.updateViewport()
		}
		return m, nil, true
	case "down", "j":
		if m.historyCursor < len(m.history.Entries())-1 {
			m.historyCursor++
			m.updateViewport()
		}
		return m, nil, true
	case "enter":
		entries := m.history.Entries()
		if m.historyCursor >= len(entries) {
			return m, nil, true
		}
		token := entries[m.historyCursor].Token
		m.tokenInput.SetValue(token)
		if m.orch.SetToken(token) {
			m.stopLoaderIfIdle()
		}
		cmd := m.switchScreen(analyzerScreen)
		return m, cmd, true
	case "esc", "q":
		cmd := m.switchScreen(analyzerScreen)
		return m, cmd, true
	}
	return m, nil, true
}

// copyResult puts the active phase result on the clipboard as indented JSON
func (m *model) copyResult() {
	result, ok := m.orch.View()
	if !ok {
		m.banner.NotifyWarning("Nothing to copy", "Analyze a token first.")
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		m.logger.Warn("failed to encode phase result", zap.Error(err))
		m.banner.NotifyError("Nothing copied", "The result could not be encoded as JSON.")
		return
	}
	if m.clipboard == nil {
		m.banner.NotifyWarning("Clipboard unavailable", clip.FallbackMessage(clip.ErrUnavailable))
		return
	}
	if err := m.clipboard.WriteAll(string(data)); err != nil {
		m.banner.NotifyWarning("Clipboard unavailable", clip.FallbackMessage(err))
		return
	}
	m.banner.NotifySuccess("Copied", result.Phase().Title()+" result is on the clipboard as JSON.")
}

// requestPhase runs a phase request through the orchestrator and starts
// the fetch when one was issued
func (m *model) requestPhase(phase models.Phase) tea.Cmd {
	m.orch.SetToken(m.tokenInput.Value())
	m.banner.Clear()
	step := m.orch.RequestPhase(phase)
	m.updateViewport()
	if step.Request == nil {
		return nil
	}
	cmds := []tea.Cmd{analyzeCmd(m.ctx, m.orch, step.Request)}
	if m.loader.Start("Analyzing token...") {
		cmds = append(cmds, tickCmd())
	}
	return tea.Batch(cmds...)
}

// switchScreen moves to s. Entering the history screen opens the panel and
// refetches; leaving it closes the panel.
func (m *model) switchScreen(s screen) tea.Cmd {
	if s == m.screen {
		return nil
	}
	var cmds []tea.Cmd
	if m.screen == historyScreen && m.history.Open() {
		m.history.Toggle()
	}
	if m.screen == encoderScreen {
		m.readEncoderInputs()
	}
	m.screen = s
	m.focus = 0
	m.applyFocus()
	if s == historyScreen {
		generation := m.history.Toggle()
		cmds = append(cmds,
			loadHistoryCmd(m.ctx, m.client, generation),
			loadJournalCmd(m.ctx, m.journal))
	}
	m.updateViewport()
	return tea.Batch(cmds...)
}

func (m *model) focusCount() int {
	switch m.screen {
	case analyzerScreen:
		return 2
	case encoderScreen:
		return 3
	}
	return 1
}

func (m *model) cycleFocus() {
	m.focus = (m.focus + 1) % m.focusCount()
	m.applyFocus()
}

func (m *model) applyFocus() {
	m.tokenInput.Blur()
	m.secretInput.Blur()
	m.payloadArea.Blur()
	m.encSecret.Blur()
	m.expiresInput.Blur()

	switch m.screen {
	case analyzerScreen:
		if m.focus == 0 {
			m.tokenInput.Focus()
		} else {
			m.secretInput.Focus()
		}
	case encoderScreen:
		switch m.focus {
		case 0:
			m.payloadArea.Focus()
		case 1:
			m.encSecret.Focus()
		default:
			m.expiresInput.Focus()
		}
	}
}

// updateInputs forwards msg to the focused input and keeps the
// orchestrator's token in step with the token field
func (m *model) updateInputs(msg tea.Msg) []tea.Cmd {
	var cmd tea.Cmd
	switch m.screen {
	case analyzerScreen:
		if m.focus == 0 {
			m.tokenInput, cmd = m.tokenInput.Update(msg)
			if m.orch.SetToken(m.tokenInput.Value()) {
				m.stopLoaderIfIdle()
				m.updateViewport()
			}
		} else {
			m.secretInput, cmd = m.secretInput.Update(msg)
		}
	case encoderScreen:
		switch m.focus {
		case 0:
			m.payloadArea, cmd = m.payloadArea.Update(msg)
		case 1:
			m.encSecret, cmd = m.encSecret.Update(msg)
		default:
			m.expiresInput, cmd = m.expiresInput.Update(msg)
		}
	}
	return []tea.Cmd{cmd}
}

func (m *model) readEncoderInputs() {
	m.enc.Form.Payload = m.payloadArea.Value()
	m.enc.Form.Secret = m.encSecret.Value()
	m.enc.Form.ExpiresIn = 0
	if n, err := strconv.Atoi(strings.TrimSpace(m.expiresInput.Value())); err == nil && n > 0 {
		m.enc.Form.ExpiresIn = n
	}
}

func (m *model) syncEncoderInputs() {
	m.payloadArea.SetValue(m.enc.Form.Payload)
	m.encSecret.SetValue(m.enc.Form.Secret)
	m.expiresInput.SetValue("")
	if m.enc.Form.ExpiresIn > 0 {
		m.expiresInput.SetValue(strconv.Itoa(m.enc.Form.ExpiresIn))
	}
}

func (m *model) reportEncoder() {
	if err := m.enc.Err(); err != nil {
		m.banner.NotifyError("Token not generated", m.enc.ErrorText())
		return
	}
	if m.enc.Token() != "" {
		detail := "ctrl+y copies it, ctrl+u sends it to the analyzer."
		if w := m.enc.Warnings(); len(w) > 0 {
			detail = strings.Join(w, "; ") + " " + detail
		}
		m.banner.NotifySuccess("Token generated", detail)
	}
}

func (m *model) stopLoaderIfIdle() {
	if m.orch.Signals().Loading || m.verifying || m.enc.Loading() {
		return
	}
	m.loader.Stop()
}

func nextAlgorithm(current string) string {
	algs := config.SupportedAlgorithms
	for i, a := range algs {
		if a == current {
			return algs[(i+1)%len(algs)]
		}
	}
	return algs[0]
}

func (m *model) updateViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
}

func (m model) renderContent() string {
	width := m.viewport.Width
	switch m.screen {
	case encoderScreen:
		return m.renderEncoderResult(width)
	case historyScreen:
		return renderHistory(&m.history, m.historyCursor, width) + "\n" + renderJournal(m.entries, width)
	}

	sig := m.orch.Signals()
	if !sig.ViewerOpen {
		if sig.Err != nil && sig.State != analysis.StateFailed {
			return errorStyle.Render(sig.Err.Error())
		}
		return emptyStyle.Render("Press enter to analyze, F1-F3 to pick a phase.")
	}
	view, ok := m.orch.View()
	if !ok {
		return emptyStyle.Render("Waiting for analysis...")
	}
	return renderPhase(view, width)
}

func (m model) renderEncoderResult(width int) string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Generated token") + "\n")
	s.WriteString(strings.Repeat("─", max(width-2, 10)) + "\n\n")
	token := m.enc.Token()
	if token == "" {
		s.WriteString(emptyStyle.Render("ctrl+g to generate"))
		return s.String()
	}
	for _, line := range chunk(token, max(width-2, 20)) {
		s.WriteString(valueStyle.Render(line) + "\n")
	}
	return s.String()
}

func chunk(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

// chromeHeight is the number of rows used above and below the viewport
func (m model) chromeHeight() int {
	return 13
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	switch m.screen {
	case analyzerScreen:
		sig := m.orch.Signals()
		sections = append(sections,
			labelStyle.Render("Token  ")+m.tokenInput.View(),
			labelStyle.Render("Secret ")+m.secretInput.View(),
			renderPhaseTabs(sig.ActivePhase),
			renderSummary(m.orch.Summary(), sig))
	case encoderScreen:
		sections = append(sections,
			labelStyle.Render("Payload"),
			m.payloadArea.View(),
			labelStyle.Render("Secret  ")+m.encSecret.View(),
			labelStyle.Render("Expires ")+m.expiresInput.View(),
			labelStyle.Render("Algorithm ")+selectedStyle.Render(m.enc.Form.Algorithm))
	}

	if l := m.loader.View(); l != "" {
		sections = append(sections, l)
	}
	if b := m.banner.View(m.width); b != "" {
		sections = append(sections, b)
	}
	sections = append(sections, m.viewport.View(), m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m model) renderHeader() string {
	var tabs []string
	for _, s := range []screen{analyzerScreen, encoderScreen, historyScreen} {
		if s == m.screen {
			tabs = append(tabs, "["+s.title()+"]")
		} else {
			tabs = append(tabs, " "+s.title()+" ")
		}
	}
	title := fmt.Sprintf("jwtlens  %s", strings.Join(tabs, " "))

	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63"))

	return style.Render(title)
}

func (m model) renderFooter() string {
	var info string
	switch m.screen {
	case analyzerScreen:
		info = "enter: analyze • F1-F3: phase • esc: close viewer • ctrl+s: verify • ctrl+y: copy JSON • ctrl+x: clear"
	case encoderScreen:
		info = "ctrl+g: generate • ctrl+a: algorithm • ctrl+y: copy • ctrl+u: analyze • ctrl+x: reset"
	case historyScreen:
		info = "↑/↓: navigate • enter: load token • esc: back"
	}
	info += " • tab: field • shift+tab: screen • ctrl+o: history • ctrl+c: quit"

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	return style.Render(info)
}

// Run starts the TUI and blocks until the user quits
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(
		initialModel(ctx, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
