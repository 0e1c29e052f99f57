// ABOUTME: lipgloss styles for the board TUI: panels, card status colors, event log and prompt.
// ABOUTME: StyleForStatus maps a card lifecycle state to its display style.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/snapboard/board/core"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Card states
	DevelopingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	IdleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	EditingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	SelectedStyle   = lipgloss.NewStyle().Reverse(true)
	CaptionStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("252"))

	// Event log
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogEventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogSuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	LogDialStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	PromptStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
)

// StyleForStatus returns the display style for a card state.
func StyleForStatus(status core.Status) lipgloss.Style {
	switch status {
	case core.StatusIdle:
		return IdleStyle
	case core.StatusEditing:
		return EditingStyle
	default:
		return DevelopingStyle
	}
}
