package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// Palette shared with the rest of the tooling.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

// styles renders command output. Every style is plain when the writer is
// not a terminal.
type styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	if !isTerminal(w) {
		plain := lipgloss.NewStyle()
		return styles{Title: plain, Muted: plain, Success: plain, Warning: plain, Error: plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(colourPrimary),
		Muted:   r.NewStyle().Foreground(colourMuted),
		Success: r.NewStyle().Bold(true).Foreground(colourSuccess),
		Warning: r.NewStyle().Foreground(colourWarning),
		Error:   r.NewStyle().Bold(true).Foreground(colourError),
	}
}

// Severity returns the style for a warning severity.
func (s styles) Severity(sev domain.Severity) lipgloss.Style {
	switch sev {
	case domain.SeverityError:
		return s.Error
	case domain.SeverityWarning:
		return s.Warning
	default:
		return s.Muted
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
