// ABOUTME: Board canvas panel: cards drawn as boxes at their board positions, bottom of the stack first.
// ABOUTME: Maps terminal cells to board coordinates and hit-tests cells against the topmost card.
package tui

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/board/drag"
)

// Board pixels covered by one terminal cell. Cells are roughly twice as tall
// as they are wide.
const (
	cellWidthPx  = 16
	cellHeightPx = 36
	cardCols     = 11
	cardRows     = 7
)

// BoardCanvasModel renders the board spatially.
type BoardCanvasModel struct {
	cards    []board.CardView // bottom to top
	selected ulid.ULID
	width    int
	height   int
}

// NewBoardCanvasModel creates an empty canvas.
func NewBoardCanvasModel() BoardCanvasModel {
	return BoardCanvasModel{}
}

// SetCards replaces the cards from a bottom-to-top snapshot.
func (m *BoardCanvasModel) SetCards(bottomToTop []board.CardView) {
	m.cards = bottomToTop
}

// SetSelected highlights one card.
func (m *BoardCanvasModel) SetSelected(id ulid.ULID) { m.selected = id }

// SetSize sets the outer dimensions, border included.
func (m *BoardCanvasModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// innerSize is the drawable area inside the border.
func (m BoardCanvasModel) innerSize() (int, int) {
	return max(m.width-2, 0), max(m.height-2, 0)
}

// cardCell returns the cell of a card's top-left corner.
func cardCell(c board.CardView) (int, int) {
	return floorDiv(c.Position.X, cellWidthPx), floorDiv(c.Position.Y, cellHeightPx)
}

func floorDiv(v float64, unit int) int {
	n := int(v) / unit
	if v < 0 && int(v)%unit != 0 {
		n--
	}
	return n
}

// BoardPoint converts an inner cell to the board coordinate at its center.
func BoardPoint(col, row int) core.Point {
	return core.Point{
		X: float64(col*cellWidthPx) + cellWidthPx/2,
		Y: float64(row*cellHeightPx) + cellHeightPx/2,
	}
}

// HitTest finds the topmost card under an inner cell. On idle cards the cell
// left of the top-right corner is the edit affordance.
func (m BoardCanvasModel) HitTest(col, row int) (ulid.ULID, drag.Region, bool) {
	for i := len(m.cards) - 1; i >= 0; i-- {
		c := m.cards[i]
		x, y := cardCell(c)
		if col < x || col >= x+cardCols || row < y || row >= y+cardRows {
			continue
		}
		if c.Status == core.StatusIdle && row == y && col == x+cardCols-2 {
			return c.ID, drag.RegionEdit, true
		}
		return c.ID, drag.RegionBody, true
	}
	return ulid.ULID{}, drag.RegionBody, false
}

// View renders the panel.
func (m BoardCanvasModel) View() string {
	w, h := m.innerSize()
	grid := make([][]rune, h)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", w))
	}
	for _, c := range m.cards {
		m.drawCard(grid, c)
	}
	if len(m.cards) == 0 && h > 0 {
		put(grid, 1, 0, "Drag photos with the mouse.")
	}

	lines := make([]string, h)
	for r, row := range grid {
		lines[r] = string(row)
	}
	return BorderStyle.
		Width(max(w, 1)).
		Height(max(h, 1)).
		Render(strings.Join(lines, "\n"))
}

func (m BoardCanvasModel) drawCard(grid [][]rune, c board.CardView) {
	x, y := cardCell(c)
	h, v, tl, tr, bl, br := '─', '│', '┌', '┐', '└', '┘'
	if c.ID == m.selected {
		h, v, tl, tr, bl, br = '━', '┃', '┏', '┓', '┗', '┛'
	}
	for r := 0; r < cardRows; r++ {
		for col := 0; col < cardCols; col++ {
			ch := ' '
			switch {
			case r == 0 && col == 0:
				ch = tl
			case r == 0 && col == cardCols-1:
				ch = tr
			case r == cardRows-1 && col == 0:
				ch = bl
			case r == cardRows-1 && col == cardCols-1:
				ch = br
			case r == 0 || r == cardRows-1:
				ch = h
			case col == 0 || col == cardCols-1:
				ch = v
			}
			set(grid, x+col, y+r, ch)
		}
	}
	if c.Status == core.StatusIdle {
		set(grid, x+cardCols-2, y, '✎')
	}
	inner := cardCols - 2
	put(grid, x+1, y+1, clip(shortID(c.ID.String()), inner))
	put(grid, x+1, y+2, clip(string(c.Status), inner))
	if c.Filter != nil {
		put(grid, x+1, y+3, clip(*c.Filter, inner))
	}
	if c.Caption != nil {
		put(grid, x+1, y+cardRows-2, clip(fmt.Sprintf("%q", *c.Caption), inner))
	}
}

func set(grid [][]rune, x, y int, ch rune) {
	if y < 0 || y >= len(grid) || x < 0 || x >= len(grid[y]) {
		return
	}
	grid[y][x] = ch
}

func put(grid [][]rune, x, y int, s string) {
	for i, ch := range []rune(s) {
		set(grid, x+i, y, ch)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
