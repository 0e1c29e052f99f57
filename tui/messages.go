// ABOUTME: Bubble Tea message types used in the board TUI message loop.
// ABOUTME: Each type wraps a board event, snapshot or action result for tea.Msg.
package tui

import (
	"time"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
)

// BoardEventMsg wraps one event from the board's subscription.
type BoardEventMsg struct {
	Event core.Event
}

// SnapshotMsg carries a fresh copy of the board.
type SnapshotMsg struct {
	Cards  []board.CardView
	Dial   board.DialState
	Camera bool // true when the camera is unavailable
	Err    error
}

// ActionResultMsg reports how a user action went.
type ActionResultMsg struct {
	Action string
	Err    error
}

// SubscriptionClosedMsg signals the board shut down.
type SubscriptionClosedMsg struct{}

// TickMsg is sent periodically to refresh elapsed times.
type TickMsg struct {
	Time time.Time
}
