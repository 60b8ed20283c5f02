package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Column  lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// Status icons, rendered with String().
	StatusSuccess lipgloss.Style
	StatusWarning lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
}

// NewStyles returns colored styles for terminals and plain ones otherwise.
func NewStyles(color bool) *Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return &Styles{
			Header1:       plain,
			Header2:       plain,
			Bold:          plain,
			Muted:         plain,
			Column:        plain,
			Success:       plain,
			Warning:       plain,
			Error:         plain,
			Info:          plain,
			StatusSuccess: plain.SetString("[ok]"),
			StatusWarning: plain.SetString("[warn]"),
			StatusFailed:  plain.SetString("[fail]"),
			StatusSkipped: plain.SetString("[skip]"),
		}
	}

	green := lipgloss.Color("2")
	yellow := lipgloss.Color("3")
	red := lipgloss.Color("1")
	blue := lipgloss.Color("4")
	gray := lipgloss.Color("8")

	return &Styles{
		Header1:       lipgloss.NewStyle().Bold(true).Underline(true).MarginBottom(1),
		Header2:       lipgloss.NewStyle().Bold(true).Foreground(blue),
		Bold:          lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle().Foreground(gray),
		Column:        lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Success:       lipgloss.NewStyle().Foreground(green),
		Warning:       lipgloss.NewStyle().Foreground(yellow),
		Error:         lipgloss.NewStyle().Foreground(red).Bold(true),
		Info:          lipgloss.NewStyle().Foreground(blue),
		StatusSuccess: lipgloss.NewStyle().Foreground(green).SetString("✓"),
		StatusWarning: lipgloss.NewStyle().Foreground(yellow).SetString("!"),
		StatusFailed:  lipgloss.NewStyle().Foreground(red).SetString("✗"),
		StatusSkipped: lipgloss.NewStyle().Foreground(gray).SetString("-"),
	}
}

// StatusIcon returns the icon for a status name.
func (s *Styles) StatusIcon(status string) string {
	switch status {
	case "success", "completed":
		return s.StatusSuccess.String()
	case "warning":
		return s.StatusWarning.String()
	case "failed", "error":
		return s.StatusFailed.String()
	default:
		return s.StatusSkipped.String()
	}
}
