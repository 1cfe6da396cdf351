package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for table headers and titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// CodeStyle renders a verification code so it stands out.
var CodeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// PanelStyle wraps a single result.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// CellStyle pads table cells.
var CellStyle = lipgloss.NewStyle().
	PaddingRight(2)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle is used for failure messages.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// OutcomeStyle returns a color-coded style for an audit outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch outcome {
	case "found", "listed":
		return base.Foreground(ColorGreen)
	case "not_found":
		return base.Foreground(ColorYellow)
	case "error":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}
