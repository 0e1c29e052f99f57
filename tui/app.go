// ABOUTME: Top-level Bubble Tea AppModel for driving a board from the terminal.
// ABOUTME: Composes the board canvas, card list, event log, prompt and status bar; keys and the mouse drive the board.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/board/drag"
	"github.com/2389-research/snapboard/camera"
)

const helpLine = "c capture  ↑/↓ select  n caption  e edit  f frame  [/] or wheel filter  x delete  drag move  ✎ edit  q quit"

// mousePointer is the drag engine pointer id of the terminal mouse.
const mousePointer drag.PointerID = "tui:mouse"

// AppModel is the top-level Bubble Tea model for one board.
type AppModel struct {
	canvas    BoardCanvasModel
	list      CardListModel
	log       LogPanelModel
	statusBar StatusBarModel
	prompt    PromptModel

	session *board.Session
	camera  camera.Source
	events  chan core.Event
	ctx     context.Context

	dial     board.DialState
	dragging bool
	closed   bool
	width  int
	height int
}

// NewAppModel subscribes to the session and builds the panels. Call Close
// once the program exits.
func NewAppModel(ctx context.Context, s *board.Session, cam camera.Source) AppModel {
	return AppModel{
		canvas:    NewBoardCanvasModel(),
		list:      NewCardListModel(),
		log:       NewLogPanelModel(200),
		statusBar: NewStatusBarModel(),
		prompt:    NewPromptModel(),
		session:   s,
		camera:    cam,
		events:    s.Subscribe(),
		ctx:       ctx,
	}
}

// Close drops the model's board subscription.
func (m AppModel) Close() {
	m.session.Unsubscribe(m.events)
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		SnapshotCmd(m.session),
		WaitForEventCmd(m.events),
		TickCmd(100*time.Millisecond),
	)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case BoardEventMsg:
		return m.handleBoardEvent(msg)

	case SnapshotMsg:
		if msg.Err != nil {
			m.statusBar.SetMessage(msg.Err.Error(), true)
			return m, nil
		}
		m.list.SetCards(msg.Cards)
		m.canvas.SetCards(msg.Cards)
		m.dial = msg.Dial
		m.statusBar.SetBoard(msg.Cards, msg.Dial, msg.Camera)
		return m, nil

	case ActionResultMsg:
		if msg.Err != nil {
			m.statusBar.SetMessage(fmt.Sprintf("%s: %v", msg.Action, msg.Err), true)
		} else {
			m.statusBar.SetMessage(msg.Action+" ok", false)
		}
		return m, SnapshotCmd(m.session)

	case SubscriptionClosedMsg:
		m.closed = true
		m.statusBar.SetMessage("board closed", true)
		return m, nil

	case TickMsg:
		m.list.AdvanceSpinner()
		if m.closed {
			return m, nil
		}
		return m, TickCmd(100 * time.Millisecond)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

// handleBoardEvent logs the event and refreshes the board unless it only
// moved a tilt or the flash.
func (m AppModel) handleBoardEvent(msg BoardEventMsg) (tea.Model, tea.Cmd) {
	m.log.Append(msg.Event)
	next := WaitForEventCmd(m.events)
	switch p := msg.Event.Payload.(type) {
	case core.CardTiltedPayload, core.FlashPayload:
		return m, next
	case core.CardCreatedPayload:
		m.list.Select(p.Card.ID)
	}
	return m, tea.Batch(next, SnapshotCmd(m.session))
}

func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt.IsActive() {
		switch msg.Type {
		case tea.KeyEnter:
			kind, id, value := m.prompt.Submit()
			if kind == PromptEdit {
				if strings.TrimSpace(value) == "" {
					return m, nil
				}
				return m, EditCmd(m.session, id, value)
			}
			return m, ActionCmd("caption", func() error { return m.session.SetCaption(id, value) })
		case tea.KeyEsc:
			m.prompt.Cancel()
			return m, nil
		}
		m.prompt = m.prompt.Update(msg)
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.list.Move(-1)
	case "down", "j":
		m.list.Move(1)
	case "c":
		return m, CaptureCmd(m.ctx, m.session, m.camera)
	case "[", "]":
		return m, m.turnDial(msg.String())
	}

	card, ok := m.list.Selected()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "x", "delete":
		return m, ActionCmd("delete", func() error { return m.session.Delete(card.ID) })
	case "f":
		next := nextFrame(card.Frame)
		return m, ActionCmd("frame", func() error { return m.session.SetFrame(card.ID, next) })
	case "n":
		caption := ""
		if card.Caption != nil {
			caption = *card.Caption
		}
		m.prompt.Open(PromptCaption, card.ID, caption, nil)
	case "e":
		m.openEditPrompt(card.ID)
	}
	return m, nil
}

func (m *AppModel) openEditPrompt(id ulid.ULID) {
	var hints []string
	for _, p := range m.session.Catalog().Edits {
		hints = append(hints, fmt.Sprintf("%s: %s", p.Key, p.Label))
	}
	m.prompt.Open(PromptEdit, id, "", hints)
}

// handleMouse feeds the left button to the drag engine and the wheel to the
// filter dial. Pointer calls run inline so the engine sees them in order.
func (m AppModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.prompt.IsActive() {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		return m, m.spinDial(msg.Button == tea.MouseButtonWheelDown)
	}

	// Canvas content starts inside its border.
	col, row := msg.X-1, msg.Y-1
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !m.inCanvas(msg.X, msg.Y) {
			return m, nil
		}
		id, region, ok := m.canvas.HitTest(col, row)
		if !ok {
			return m, nil
		}
		m.list.Select(id)
		if err := m.session.PointerDown(mousePointer, id, BoardPoint(col, row), region); err != nil {
			m.statusBar.SetMessage(fmt.Sprintf("drag: %v", err), true)
			return m, nil
		}
		m.dragging = true
	case tea.MouseActionMotion:
		if !m.dragging {
			return m, nil
		}
		if err := m.session.PointerMove(mousePointer, BoardPoint(col, row)); err != nil {
			m.statusBar.SetMessage(fmt.Sprintf("drag: %v", err), true)
		}
	case tea.MouseActionRelease:
		if !m.dragging {
			return m, nil
		}
		m.dragging = false
		rel, err := m.session.PointerUp(mousePointer)
		if err != nil {
			m.statusBar.SetMessage(fmt.Sprintf("drag: %v", err), true)
			return m, nil
		}
		if rel.OpenEdit {
			m.openEditPrompt(rel.CardID)
		}
	}
	return m, nil
}

// spinDial turns the filter dial one option through the rotary engine.
func (m AppModel) spinDial(forward bool) tea.Cmd {
	n := len(m.session.Catalog().Filters)
	if n == 0 {
		return nil
	}
	step := 360 / float64(n)
	if !forward {
		step = -step
	}
	return ActionCmd("filter", func() error {
		if err := m.session.DialBegin(0); err != nil {
			return err
		}
		if err := m.session.DialMove(step); err != nil {
			return err
		}
		_, err := m.session.DialEnd()
		return err
	})
}

func (m AppModel) turnDial(key string) tea.Cmd {
	n := len(m.session.Catalog().Filters)
	if n == 0 {
		return nil
	}
	step := 1
	if key == "[" {
		step = -1
	}
	index := ((m.dial.Index+step)%n + n) % n
	return ActionCmd("filter", func() error {
		_, err := m.session.DialSet(index)
		return err
	})
}

func nextFrame(f core.Frame) core.Frame {
	for i, frame := range core.Frames {
		if frame == f {
			return core.Frames[(i+1)%len(core.Frames)]
		}
	}
	return core.Frames[0]
}

// panelLayout splits the screen: the canvas sits top-left over the card
// list, the event log fills the right.
type panelLayout struct {
	leftWidth, logWidth  int
	bodyHeight, canvasHt int
}

func (m AppModel) layout() panelLayout {
	body := m.height - 2 // status bar and help line
	left := m.width * 55 / 100
	return panelLayout{leftWidth: left, logWidth: m.width - left, bodyHeight: body, canvasHt: body * 3 / 5}
}

func (m AppModel) inCanvas(x, y int) bool {
	l := m.layout()
	return x > 0 && x < l.leftWidth-1 && y > 0 && y < l.canvasHt-1
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	l := m.layout()
	m.canvas.SetSize(l.leftWidth, l.canvasHt)
	if sel, ok := m.list.Selected(); ok {
		m.canvas.SetSelected(sel.ID)
	}
	m.list.SetSize(l.leftWidth, l.bodyHeight-l.canvasHt)
	m.log.SetSize(l.logWidth, l.bodyHeight)
	m.statusBar.SetWidth(m.width)

	left := lipgloss.JoinVertical(lipgloss.Left, m.canvas.View(), m.list.View())
	if m.prompt.IsActive() {
		left = lipgloss.JoinVertical(lipgloss.Left, left, m.prompt.View())
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.log.View())

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	b.WriteString("\n")
	b.WriteString(LogTimestampStyle.Render(helpLine))
	return b.String()
}
