package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	colorPrimary   = lipgloss.Color("4")
	colorSuccess   = lipgloss.Color("2")
	colorWarning   = lipgloss.Color("3")
	colorError     = lipgloss.Color("1")
	colorHighlight = lipgloss.Color("12")
	colorMuted     = lipgloss.Color("245")
)

// Stepper glyphs
const (
	stepDone    = "●"
	stepPending = "○"
)

type styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Highlight lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
}

// newStyles returns colored styles when w is a terminal and plain ones
// otherwise.
func newStyles(w io.Writer) styles {
	if !colorEnabled(w) {
		return plainStyles()
	}

	return styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Label:     lipgloss.NewStyle().Bold(true),
		Highlight: lipgloss.NewStyle().Bold(true).Foreground(colorHighlight),
		Success:   lipgloss.NewStyle().Foreground(colorSuccess),
		Warning:   lipgloss.NewStyle().Foreground(colorWarning),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(colorError),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func plainStyles() styles {
	plain := lipgloss.NewStyle()
	return styles{
		Title:     plain,
		Label:     plain,
		Highlight: plain,
		Success:   plain,
		Warning:   plain,
		Error:     plain,
		Muted:     plain,
	}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
