package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/strrl/jwt-lens/internal/analysis"
	"github.com/strrl/jwt-lens/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)
)

// renderPhase renders one phase result for the viewer
func renderPhase(r models.PhaseResult, width int) string {
	var s strings.Builder

	s.WriteString(headerStyle.Render(r.Phase().Title()+" analysis") + "\n")
	s.WriteString(strings.Repeat("─", max(width-2, 10)) + "\n\n")

	switch p := r.(type) {
	case models.LexicalPhase:
		writeBlock(&s, "Header", p.Header, width)
		writeBlock(&s, "Payload", p.Payload, width)
		writeTokens(&s, p.Tokens)
		if p.Alphabet != nil {
			writeBlock(&s, "Alphabet", p.Alphabet, width)
		}
		writeMessages(&s, p.Errors, p.Warnings, width)
	case models.SyntacticPhase:
		writeValidity(&s, p.Valid)
		if p.Grammar != nil {
			writeBlock(&s, "Grammar", p.Grammar, width)
		}
		if p.Tree != nil {
			writeBlock(&s, "Syntax tree", p.Tree, width)
		}
		writeMessages(&s, p.Errors, p.Warnings, width)
	case models.SemanticPhase:
		writeValidity(&s, p.Valid)
		if p.Validations != nil {
			writeBlock(&s, "Validations", p.Validations, width)
		}
		if p.SymbolTable != nil {
			writeBlock(&s, "Symbol table", p.SymbolTable, width)
		}
		s.WriteString(labelStyle.Render("Time claims") + "\n")
		writeValidity(&s, p.TimeClaims.Valid)
		writeMessages(&s, p.TimeClaims.Errors, p.TimeClaims.Warnings, width)
		s.WriteString("\n")
		writeMessages(&s, p.Errors, p.Warnings, width)
	}

	return s.String()
}

func writeBlock(s *strings.Builder, label string, v any, width int) {
	s.WriteString(labelStyle.Render(label) + "\n")
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprint(v))
	}
	for _, line := range strings.Split(string(body), "\n") {
		s.WriteString(valueStyle.Render(truncate(line, max(width-2, 20))) + "\n")
	}
	s.WriteString("\n")
}

func writeTokens(s *strings.Builder, tokens []models.LexicalToken) {
	s.WriteString(labelStyle.Render(fmt.Sprintf("Tokens (%d)", len(tokens))) + "\n")
	if len(tokens) == 0 {
		s.WriteString(emptyStyle.Render("No tokens") + "\n\n")
		return
	}
	for i, t := range tokens {
		line := fmt.Sprintf("%3d. %-14s %s", i+1, t.Type, truncate(t.Value, 48))
		if t.Position != nil {
			line += fmt.Sprintf(" @%v", t.Position)
		}
		s.WriteString(valueStyle.Render(line) + "\n")
	}
	s.WriteString("\n")
}

func writeValidity(s *strings.Builder, valid *bool) {
	switch {
	case valid == nil:
		s.WriteString(emptyStyle.Render("validity not reported") + "\n")
	case *valid:
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("✓ valid") + "\n")
	default:
		s.WriteString(errorStyle.Render("✗ invalid") + "\n")
	}
}

func writeMessages(s *strings.Builder, errs, warnings models.Messages, width int) {
	wrapWidth := max(width-6, 20)
	for _, e := range errs {
		for i, line := range wrapText(e, wrapWidth) {
			prefix := "   "
			if i == 0 {
				prefix = " ✗ "
			}
			s.WriteString(errorStyle.Render(prefix+line) + "\n")
		}
	}
	for _, w := range warnings {
		for i, line := range wrapText(w, wrapWidth) {
			prefix := "   "
			if i == 0 {
				prefix = " ! "
			}
			s.WriteString(warningStyle.Render(prefix+line) + "\n")
		}
	}
}

// renderSummary is the one-line headline shown above the viewer
func renderSummary(sum models.Summary, sig analysis.Signals) string {
	if !sig.HasAnalysis {
		return ""
	}
	parts := []string{}
	if sum.Subject != "" {
		parts = append(parts, "sub="+sum.Subject)
	}
	if sum.Name != "" {
		parts = append(parts, "name="+sum.Name)
	}
	switch {
	case sum.ValidSignature == nil:
	case *sum.ValidSignature:
		parts = append(parts, "structure ok")
	default:
		parts = append(parts, "structure invalid")
	}
	parts = append(parts, string(sig.Category))
	return labelStyle.Render(strings.Join(parts, " • "))
}

// renderPhaseTabs shows which phase is active
func renderPhaseTabs(active models.Phase) string {
	var tabs []string
	for i, p := range models.AllPhases {
		label := fmt.Sprintf("F%d %s", i+1, p.Title())
		if p == active {
			tabs = append(tabs, selectedStyle.Render("["+label+"]"))
		} else {
			tabs = append(tabs, valueStyle.Render(" "+label+" "))
		}
	}
	return strings.Join(tabs, " ")
}

func renderHistory(h *analysis.HistoryPanel, cursor int, width int) string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Example tokens") + "\n")
	s.WriteString(strings.Repeat("─", max(width-2, 10)) + "\n\n")

	switch {
	case h.Loading():
		s.WriteString(emptyStyle.Render("Loading history...") + "\n")
	case h.Err() != nil:
		s.WriteString(errorStyle.Render("Could not load history: "+h.Err().Error()) + "\n")
	case len(h.Entries()) == 0:
		s.WriteString(emptyStyle.Render("No history entries") + "\n")
	default:
		for i, e := range h.Entries() {
			cursorMark := "  "
			style := valueStyle
			if i == cursor {
				cursorMark = "> "
				style = selectedStyle
			}
			desc := e.Description
			if desc == "" {
				desc = "(no description)"
			}
			s.WriteString(style.Render(cursorMark+desc) + "\n")
			s.WriteString(emptyStyle.Render("  "+truncate(e.Token, max(width-8, 20))) + "\n")
		}
	}
	return s.String()
}

func renderJournal(entries []models.JournalEntry, width int) string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("This session") + "\n")
	s.WriteString(strings.Repeat("─", max(width-2, 10)) + "\n\n")

	if len(entries) == 0 {
		s.WriteString(emptyStyle.Render("Nothing analyzed yet") + "\n")
		return s.String()
	}

	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Category]++
	}
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		s.WriteString(labelStyle.Render(fmt.Sprintf("%-22s %d", c, counts[c])) + "\n")
	}
	s.WriteString("\n")

	for _, e := range entries {
		line := fmt.Sprintf("%s %-16s %-10s %s",
			e.RecordedAt.Format("15:04:05"), e.Operation, e.Phase, e.Category)
		s.WriteString(valueStyle.Render(truncate(line, max(width-2, 20))) + "\n")
	}
	return s.String()
}

// wrapText wraps text to fit within the specified width
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	currentLine := words[0]
	for _, word := range words[1:] {
		if len(currentLine)+1+len(word) > width {
			lines = append(lines, currentLine)
			currentLine = word
		} else {
			currentLine += " " + word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

// truncate cuts s to maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
