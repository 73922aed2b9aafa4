package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/strrl/jwt-lens/internal/classify"
)

var (
	errorTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warningTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	successTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// printer writes notices to a terminal
type printer struct {
	w io.Writer
}

var _ classify.Notifier = printer{}

func (p printer) NotifyError(title, detail string) {
	p.print(errorTitle, "✗ ", title, detail)
}

func (p printer) NotifySuccess(title, detail string) {
	p.print(successTitle, "✓ ", title, detail)
}

func (p printer) NotifyWarning(title, detail string) {
	p.print(warningTitle, "! ", title, detail)
}

func (p printer) print(style lipgloss.Style, mark, title, detail string) {
	fmt.Fprintln(p.w, style.Render(mark+title))
	if detail != "" {
		fmt.Fprintln(p.w, "  "+detail)
	}
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render(title))
	fmt.Fprintln(w, dimStyle.Render("==========================================="))
}
