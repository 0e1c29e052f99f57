// ABOUTME: Text prompt dialog for captions and AI edit instructions, built on bubbles textinput.
// ABOUTME: The app opens it against a card and reads the answer back on Enter.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board/core"
)

// PromptKind says what the prompt's answer is for.
type PromptKind int

const (
	PromptCaption PromptKind = iota
	PromptEdit
)

// PromptModel is a one-line input dialog bound to a card.
type PromptModel struct {
	textInput textinput.Model
	kind      PromptKind
	cardID    ulid.ULID
	hints     []string
	active    bool
}

// NewPromptModel creates an inactive prompt.
func NewPromptModel() PromptModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = core.MaxCaptionRunes
	return PromptModel{textInput: ti}
}

// Open activates the prompt for a card, prefilled with value.
func (m *PromptModel) Open(kind PromptKind, cardID ulid.ULID, value string, hints []string) {
	m.kind = kind
	m.cardID = cardID
	m.hints = hints
	m.active = true
	m.textInput.Placeholder = "Caption..."
	m.textInput.CharLimit = core.MaxCaptionRunes
	if kind == PromptEdit {
		m.textInput.Placeholder = "Describe the edit..."
		m.textInput.CharLimit = 500
	}
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
	m.textInput.Focus()
}

// Submit closes the prompt and returns what it was for and what was typed.
func (m *PromptModel) Submit() (PromptKind, ulid.ULID, string) {
	kind, id, value := m.kind, m.cardID, m.textInput.Value()
	m.Cancel()
	return kind, id, value
}

// Cancel closes the prompt without an answer.
func (m *PromptModel) Cancel() {
	m.active = false
	m.hints = nil
	m.textInput.Reset()
	m.textInput.Blur()
}

// IsActive reports whether the dialog is showing.
func (m PromptModel) IsActive() bool { return m.active }

// Update forwards key events to the text input.
func (m PromptModel) Update(msg tea.Msg) PromptModel {
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	_ = cmd // cursor blink is not needed
	return m
}

// View renders the dialog, or nothing when inactive.
func (m PromptModel) View() string {
	if !m.active {
		return ""
	}
	title := "Caption"
	if m.kind == PromptEdit {
		title = "AI edit"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] card %s\n", title, shortID(m.cardID.String()))
	for _, h := range m.hints {
		fmt.Fprintf(&b, "  - %s\n", h)
	}
	b.WriteString("\n")
	b.WriteString(m.textInput.View())
	return PromptStyle.Render(b.String())
}
