package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/strrl/jwt-lens/internal/classify"
)

// Banner is the status line notifier. Only Update writes to it.
type Banner struct {
	severity classify.Severity
	title    string
	detail   string
}

var _ classify.Notifier = (*Banner)(nil)

func (b *Banner) NotifyError(title, detail string) {
	b.set(classify.SeverityError, title, detail)
}

func (b *Banner) NotifySuccess(title, detail string) {
	b.set(classify.SeveritySuccess, title, detail)
}

func (b *Banner) NotifyWarning(title, detail string) {
	b.set(classify.SeverityWarning, title, detail)
}

func (b *Banner) set(s classify.Severity, title, detail string) {
	b.severity = s
	b.title = title
	b.detail = detail
}

// Clear removes the current notice
func (b *Banner) Clear() {
	*b = Banner{}
}

// Title returns the current notice title, empty when none is shown
func (b *Banner) Title() string { return b.title }

// Detail returns the current notice body
func (b *Banner) Detail() string { return b.detail }

// Severity returns the current notice severity
func (b *Banner) Severity() classify.Severity { return b.severity }

// View renders the banner within width columns
func (b *Banner) View(width int) string {
	if b.title == "" {
		return ""
	}
	color := lipgloss.Color("196")
	switch b.severity {
	case classify.SeveritySuccess:
		color = lipgloss.Color("42")
	case classify.SeverityWarning:
		color = lipgloss.Color("214")
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(color)
	detailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	if width > 4 {
		detailStyle = detailStyle.Width(width - 2)
	}
	return titleStyle.Render(b.title) + "\n" + detailStyle.Render(b.detail)
}
