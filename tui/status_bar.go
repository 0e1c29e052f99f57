// ABOUTME: Single-line status bar for the bottom of the board TUI.
// ABOUTME: Shows the dial filter, card counts, camera state, uptime and the last action result.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
)

// StatusBarModel displays board status in a single line.
type StatusBarModel struct {
	startTime  time.Time
	dial       board.DialState
	cards      int
	developing int
	editing    int
	cameraDown bool
	message    string
	failed     bool
	width      int
}

// NewStatusBarModel creates a status bar whose uptime starts now.
func NewStatusBarModel() StatusBarModel {
	return StatusBarModel{startTime: time.Now()}
}

// SetBoard refreshes counts from a snapshot.
func (m *StatusBarModel) SetBoard(cards []board.CardView, dial board.DialState, cameraDown bool) {
	m.cards = len(cards)
	m.developing, m.editing = 0, 0
	for _, c := range cards {
		switch c.Status {
		case core.StatusDeveloping:
			m.developing++
		case core.StatusEditing:
			m.editing++
		}
	}
	m.dial = dial
	m.cameraDown = cameraDown
}

// SetMessage shows the result of the last action.
func (m *StatusBarModel) SetMessage(msg string, failed bool) {
	m.message = msg
	m.failed = failed
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since the bar was created.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	return time.Since(m.startTime)
}

// formatElapsed shows seconds under a minute ("12s") and minutes with
// seconds above it ("2m30s").
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	filter := m.dial.Filter.Name
	if filter == "" {
		filter = m.dial.Filter.ID
	}
	content := fmt.Sprintf("Filter: %s | %d cards (%d developing, %d editing) | Up: %s",
		filter, m.cards, m.developing, m.editing, formatElapsed(m.Elapsed()))
	if m.cameraDown {
		content += " | " + WarningStyle.Render("camera unavailable")
	}
	if m.message != "" {
		msg := m.message
		if m.failed {
			msg = WarningStyle.Render(msg)
		}
		content += " | " + msg
	}
	style := StatusBarStyle.Width(max(m.width, 1))
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
