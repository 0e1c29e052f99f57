// ABOUTME: Card list panel: every card on the board, top of the stack first, with a selection cursor.
// ABOUTME: Shows lifecycle state, frame, filter and caption per card.
package tui

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// CardListModel lists cards and tracks which one is selected.
type CardListModel struct {
	cards    []board.CardView // top of the stack first
	selected ulid.ULID
	spinner  int
	width    int
	height   int
}

// NewCardListModel creates an empty list.
func NewCardListModel() CardListModel {
	return CardListModel{}
}

// SetCards replaces the list from a bottom-to-top board snapshot. The
// selection follows its card and falls to the top card when that card is gone.
func (m *CardListModel) SetCards(bottomToTop []board.CardView) {
	m.cards = make([]board.CardView, len(bottomToTop))
	for i, c := range bottomToTop {
		m.cards[len(bottomToTop)-1-i] = c
	}
	if m.index(m.selected) < 0 {
		m.selected = ulid.ULID{}
		if len(m.cards) > 0 {
			m.selected = m.cards[0].ID
		}
	}
}

// Len returns the number of cards.
func (m CardListModel) Len() int { return len(m.cards) }

// Selected returns the selected card.
func (m CardListModel) Selected() (board.CardView, bool) {
	i := m.index(m.selected)
	if i < 0 {
		return board.CardView{}, false
	}
	return m.cards[i], true
}

// Select moves the cursor to id if it is listed.
func (m *CardListModel) Select(id ulid.ULID) {
	if m.index(id) >= 0 {
		m.selected = id
	}
}

// Move shifts the cursor by delta, clamped to the list.
func (m *CardListModel) Move(delta int) {
	if len(m.cards) == 0 {
		return
	}
	i := m.index(m.selected) + delta
	i = min(max(i, 0), len(m.cards)-1)
	m.selected = m.cards[i].ID
}

// AdvanceSpinner steps the developing/editing animation.
func (m *CardListModel) AdvanceSpinner() { m.spinner++ }

// SetSize sets the available dimensions.
func (m *CardListModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m CardListModel) index(id ulid.ULID) int {
	for i, c := range m.cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// View renders the panel.
func (m CardListModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("BOARD (%d)", len(m.cards))))
	b.WriteString("\n")
	if len(m.cards) == 0 {
		b.WriteString(DevelopingStyle.Render("No photos yet. Press c to capture."))
	}
	rows := max(m.height-3, 1)
	start := 0
	if sel := m.index(m.selected); sel >= rows {
		start = sel - rows + 1
	}
	for i := start; i < len(m.cards) && i < start+rows; i++ {
		line := m.row(m.cards[i])
		if m.cards[i].ID == m.selected {
			line = SelectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return BorderStyle.
		Width(max(m.width-2, 1)).
		Height(max(m.height-2, 1)).
		Render(strings.TrimRight(b.String(), "\n"))
}

func (m CardListModel) row(c board.CardView) string {
	marker := "●"
	if c.Status != core.StatusIdle {
		marker = spinnerFrames[m.spinner%len(spinnerFrames)]
	}
	filter := "normal"
	if c.Filter != nil {
		filter = *c.Filter
	}
	line := fmt.Sprintf("%s %s %-10s %-8s %-10s", StyleForStatus(c.Status).Render(marker),
		shortID(c.ID.String()), c.Status, c.Frame, filter)
	if c.Caption != nil {
		line += " " + CaptionStyle.Render(fmt.Sprintf("%q", *c.Caption))
	}
	if c.Provenance != nil {
		line += " ✎"
	}
	return line
}
