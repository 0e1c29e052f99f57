// ABOUTME: Bridge connecting the board Session to the Bubble Tea message loop.
// ABOUTME: tea.Cmd factories for event waits, snapshots, captures, edits and ticks.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/camera"
)

// WaitForEventCmd blocks on the subscription and yields the next event.
func WaitForEventCmd(events <-chan core.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return SubscriptionClosedMsg{}
		}
		return BoardEventMsg{Event: evt}
	}
}

// SnapshotCmd reads the whole board.
func SnapshotCmd(s *board.Session) tea.Cmd {
	return func() tea.Msg {
		cards, err := s.Cards()
		if err != nil {
			return SnapshotMsg{Err: err}
		}
		dial, err := s.Dial()
		return SnapshotMsg{Cards: cards, Dial: dial, Camera: s.CameraUnavailable(), Err: err}
	}
}

// CaptureCmd takes a still from cam and drops it on the board with the dial's
// filter.
func CaptureCmd(ctx context.Context, s *board.Session, cam camera.Source) tea.Cmd {
	return func() tea.Msg {
		if cam == nil {
			s.CaptureUnavailable("no camera configured")
			return ActionResultMsg{Action: "capture", Err: camera.ErrUnavailable}
		}
		img, err := cam.Capture(ctx)
		if err != nil {
			s.CaptureUnavailable(err.Error())
			return ActionResultMsg{Action: "capture", Err: err}
		}
		_, err = s.Capture(ctx, img, "")
		return ActionResultMsg{Action: "capture", Err: err}
	}
}

// EditCmd requests an AI edit. Text naming a catalog preset runs that preset.
// The result itself arrives as board events.
func EditCmd(s *board.Session, id ulid.ULID, text string) tea.Cmd {
	return func() tea.Msg {
		var err error
		if _, ok := s.Catalog().Preset(text); ok {
			_, err = s.RequestPreset(id, text)
		} else {
			_, err = s.RequestEdit(id, text)
		}
		return ActionResultMsg{Action: "edit", Err: err}
	}
}

// ActionCmd runs a quick board mutation off the UI goroutine.
func ActionCmd(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return ActionResultMsg{Action: action, Err: fn()}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
