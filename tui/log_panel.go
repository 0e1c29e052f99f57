// ABOUTME: Scrollable board event log built on the bubbles viewport component.
// ABOUTME: Renders each event as a timestamped, color-coded line.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/snapboard/board/core"
)

// LogPanelModel is a scrollable event log.
type LogPanelModel struct {
	entries  []core.Event
	max      int
	viewport viewport.Model
	width    int
	height   int
}

// NewLogPanelModel creates a log panel holding at most maxEntries events.
// If maxEntries is <= 0, it defaults to 200.
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return LogPanelModel{
		entries:  make([]core.Event, 0, maxEntries),
		max:      maxEntries,
		viewport: viewport.New(80, 10),
	}
}

// Append adds an event, evicting the oldest entry at capacity. Tilt and
// flash events are too chatty to log.
func (m *LogPanelModel) Append(evt core.Event) {
	switch evt.Payload.(type) {
	case core.CardTiltedPayload, core.FlashPayload:
		return
	}
	if len(m.entries) >= m.max {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, evt)
	m.syncViewport()
}

// Len returns the number of entries in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// border takes two lines and the title one
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1)
	m.syncViewport()
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	content := "No events yet"
	if len(m.entries) > 0 {
		content = m.viewport.View()
	}
	return BorderStyle.
		Width(max(m.width-2, 1)).
		Height(max(m.height-2, 1)).
		Render(TitleStyle.Render("EVENTS") + "\n" + content)
}

func (m *LogPanelModel) syncViewport() {
	lines := make([]string, 0, len(m.entries))
	for _, evt := range m.entries {
		lines = append(lines, formatEntry(evt))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats one event as a log line.
func formatEntry(evt core.Event) string {
	ts := LogTimestampStyle.Render(evt.Timestamp.Format("15:04:05"))
	if evt.Payload == nil {
		return ts
	}
	kind := eventStyle(evt.Payload).Render(evt.Payload.EventPayloadType())
	detail := describe(evt.Payload)
	if detail == "" {
		return ts + " " + kind
	}
	return ts + " " + kind + " " + detail
}

func describe(p core.EventPayload) string {
	switch p := p.(type) {
	case core.CardCreatedPayload:
		return fmt.Sprintf("[%s]", shortID(p.Card.ID.String()))
	case core.CardUpdatedPayload:
		var fields []string
		if p.Patch.Status != nil {
			fields = append(fields, "status="+string(*p.Patch.Status))
		}
		if p.Patch.Position != nil {
			fields = append(fields, fmt.Sprintf("pos=%.0f,%.0f", p.Patch.Position.X, p.Patch.Position.Y))
		}
		if p.Patch.Frame != nil {
			fields = append(fields, "frame="+string(*p.Patch.Frame))
		}
		if p.Patch.Content != nil {
			fields = append(fields, "content")
		}
		if p.Patch.Caption.Set {
			fields = append(fields, "caption")
		}
		return fmt.Sprintf("[%s] %s", shortID(p.CardID.String()), strings.Join(fields, " "))
	case core.CardRaisedPayload:
		return fmt.Sprintf("[%s]", shortID(p.CardID.String()))
	case core.CardRemovedPayload:
		return fmt.Sprintf("[%s]", shortID(p.CardID.String()))
	case core.EditFailedPayload:
		return fmt.Sprintf("[%s] %s", shortID(p.CardID.String()), p.Reason)
	case core.CaptureUnavailablePayload:
		return p.Reason
	case core.SelectionChangedPayload:
		return p.OptionID
	}
	return ""
}

func eventStyle(p core.EventPayload) lipgloss.Style {
	switch p.(type) {
	case core.CardCreatedPayload:
		return LogSuccessStyle
	case core.EditFailedPayload, core.CaptureUnavailablePayload, core.CardRemovedPayload:
		return LogErrorStyle
	case core.SelectionChangedPayload:
		return LogDialStyle
	default:
		return LogEventStyle
	}
}

// shortID keeps the random tail of a ULID, which is what differs between
// cards taken in the same second.
func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
