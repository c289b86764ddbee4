package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme defines the colour palette for terminal output.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Muted:     lipgloss.Color("#6C7086"), // Medium gray
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red
		Border:    lipgloss.Color("#45475A"), // Border gray
	}
}

// Styles renders answers, sources and status lines.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Answer  lipgloss.Style
}

// NewStyles creates styles from a theme. A nil theme yields unstyled output.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		plain := lipgloss.NewStyle()
		return &Styles{
			Title:   plain,
			Label:   plain,
			Muted:   plain,
			Success: plain,
			Warning: plain,
			Error:   plain,
			Answer:  plain,
		}
	}

	return &Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Success: lipgloss.NewStyle().Bold(true).Foreground(theme.Success),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(theme.Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(theme.Error),
		Answer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// stylesFor styles output only when w is a terminal.
func stylesFor(w io.Writer) *Styles {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return NewStyles(DefaultTheme())
	}
	return NewStyles(nil)
}
