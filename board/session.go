// ABOUTME: Session composes one board: store, loop, capture, drag, filter dial and edits.
// ABOUTME: It is the thread-safe API transports use; every call runs on the board's loop.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board/capture"
	"github.com/2389-research/snapboard/board/catalog"
	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/board/drag"
	"github.com/2389-research/snapboard/board/edit"
	"github.com/2389-research/snapboard/board/rotary"
)

// ErrUnknownOption indicates a filter or preset id missing from the catalog.
var ErrUnknownOption = errors.New("unknown catalog option")

// noFilter is the catalog id meaning "no filter applied".
const noFilter = "normal"

// Config gathers the tunable constants of a board.
type Config struct {
	Capture     capture.Config
	Drag        drag.Config
	EditTimeout time.Duration
	// InitialFilter is where the filter dial rests when the board opens.
	InitialFilter string
}

// DefaultConfig returns the standard board feel.
func DefaultConfig() Config {
	return Config{
		Capture:       capture.DefaultConfig(),
		Drag:          drag.DefaultConfig(),
		EditTimeout:   2 * time.Minute,
		InitialFilter: noFilter,
	}
}

// Options wires a Session.
type Options struct {
	Config  Config
	Blobs   blob.Store
	Editor  edit.Editor
	Catalog *catalog.Catalog
	// Store is a restored board; nil starts empty.
	Store *core.Store
	// NextSeq continues event numbering for a restored board.
	NextSeq uint64
	// Record, when set, receives every event synchronously as it is emitted,
	// including the resume transitions New applies to a restored board.
	Record    func(core.Event)
	Scheduler capture.Scheduler
	Rand      func() float64
	Logger    *slog.Logger
}

// CardView is a card as rendered: its persisted fields plus transient tilt.
type CardView struct {
	core.Card
	Tilt float64 `json:"tilt"`
}

// DialState is a snapshot of the filter dial.
type DialState struct {
	Index    int            `json:"index"`
	Filter   catalog.Filter `json:"filter"`
	Rotation float64        `json:"rotation"`
	Dragging bool           `json:"dragging"`
}

// Session is one live board.
type Session struct {
	loop    *core.Loop
	store   *core.Store
	capture *capture.Controller
	drag    *drag.Engine
	edits   *edit.Orchestrator
	dial    *rotary.Selector[catalog.Filter]
	blobs   blob.Store
	catalog *catalog.Catalog
	logger  *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	cameraDown atomic.Bool
}

// New starts a board. Cards restored mid-develop resume their timers; cards
// restored mid-edit return to idle since their edit cannot complete.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Blobs == nil {
		opts.Blobs = blob.NewMemory()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	store := opts.Store
	if store == nil {
		store = core.NewStore()
	}

	s := &Session{
		loop:    core.StartLoop(opts.NextSeq),
		store:   store,
		blobs:   opts.Blobs,
		catalog: opts.Catalog,
		logger:  opts.Logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if opts.Record != nil {
		s.loop.SetRecorder(opts.Record)
	}

	emit := func(p core.EventPayload) { s.loop.Emit(p) }
	dispatch := func(fn func()) {
		if !s.loop.Post(fn) {
			s.logger.Debug("dropped work after close", slog.String("component", "board.session"))
		}
	}
	post := func(fn func()) bool { return s.loop.Post(fn) }
	store.SetSink(emit)

	s.capture = capture.New(capture.Options{
		Store:     store,
		Dispatch:  dispatch,
		Emit:      emit,
		Scheduler: opts.Scheduler,
		Rand:      opts.Rand,
		Config:    opts.Config.Capture,
		Logger:    opts.Logger,
	})
	s.drag = drag.New(drag.Options{
		Store:  store,
		Emit:   emit,
		Rand:   opts.Rand,
		Config: opts.Config.Drag,
		Logger: opts.Logger,
	})
	s.edits = edit.New(edit.Options{
		Store:    store,
		Blobs:    opts.Blobs,
		Editor:   opts.Editor,
		Dispatch: post,
		Done:     s.loop.Done(),
		Emit:     emit,
		Timeout:  opts.Config.EditTimeout,
		Logger:   opts.Logger,
	})

	initial := 0
	if opts.Config.InitialFilter != "" {
		if i := opts.Catalog.FilterIndex(opts.Config.InitialFilter); i >= 0 {
			initial = i
		}
	}
	dial, err := rotary.New(opts.Catalog.Filters, initial, func(sel rotary.Selection[catalog.Filter]) {
		emit(core.SelectionChangedPayload{
			Index:       sel.Index,
			OptionID:    sel.Option.ID,
			Rotation:    sel.Rotation,
			Provisional: sel.Provisional,
		})
	})
	if err != nil {
		s.loop.Close()
		return nil, fmt.Errorf("filter dial: %w", err)
	}
	s.dial = dial

	err = s.do(func() error {
		for _, c := range store.List() {
			switch c.Status {
			case core.StatusDeveloping:
				s.capture.Schedule(c.ID)
			case core.StatusEditing:
				if err := store.Update(c.ID, core.CardPatch{Status: core.Ptr(core.StatusIdle)}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.loop.Close()
		return nil, fmt.Errorf("resume board: %w", err)
	}
	return s, nil
}

// do runs fn on the loop and returns its error.
func (s *Session) do(fn func() error) error {
	var err error
	if lerr := s.loop.Do(func() { err = fn() }); lerr != nil {
		return lerr
	}
	return err
}

// Capture stores img and ejects a developing card. An empty filter uses the
// dial's current selection. An empty image marks the camera unavailable.
func (s *Session) Capture(ctx context.Context, img blob.Image, filter string) (core.Card, error) {
	if img.Empty() {
		s.cameraDown.Store(true)
		_ = s.do(func() error {
			s.loop.Emit(core.CaptureUnavailablePayload{Reason: "no image payload"})
			return nil
		})
		return core.Card{}, core.ErrCaptureUnavailable
	}
	if filter != "" {
		if _, ok := s.catalog.Filter(filter); !ok {
			return core.Card{}, fmt.Errorf("%w: filter %q", ErrUnknownOption, filter)
		}
	}
	ref, err := s.blobs.Put(ctx, img)
	if err != nil {
		return core.Card{}, fmt.Errorf("store capture: %w", err)
	}
	s.cameraDown.Store(false)

	var card core.Card
	err = s.do(func() error {
		f := filter
		if f == "" {
			f = s.dial.Current().Option.ID
		}
		if f == noFilter {
			f = ""
		}
		var err error
		card, err = s.capture.Capture(ref, f)
		return err
	})
	return card, err
}

// Restore puts a saved photo back on the board. The card is captured from
// look.Content like a fresh still and takes look's filter, frame, caption and
// provenance in the same step, so it never appears half restored. The
// payload must already be in the board's blob store.
func (s *Session) Restore(ctx context.Context, look core.Card) (core.Card, error) {
	if look.Frame != "" && !look.Frame.Valid() {
		return core.Card{}, fmt.Errorf("%w: frame %q", ErrUnknownOption, look.Frame)
	}
	filter := ""
	if look.Filter != nil && *look.Filter != noFilter {
		filter = *look.Filter
		if _, ok := s.catalog.Filter(filter); !ok {
			return core.Card{}, fmt.Errorf("%w: filter %q", ErrUnknownOption, filter)
		}
	}
	if _, err := s.blobs.Get(ctx, look.Content); err != nil {
		return core.Card{}, fmt.Errorf("restore payload: %w", err)
	}

	patch := core.CardPatch{Provenance: look.Provenance}
	if look.Frame != "" {
		patch.Frame = core.Ptr(look.Frame)
	}
	if look.Caption != nil && strings.TrimSpace(*look.Caption) != "" {
		patch.Caption = core.To(*look.Caption)
	}

	var card core.Card
	err := s.do(func() error {
		captured, err := s.capture.Capture(look.Content, filter)
		if err != nil {
			return err
		}
		if err := s.store.Update(captured.ID, patch); err != nil {
			s.capture.Forget(captured.ID)
			s.store.Remove(captured.ID)
			return fmt.Errorf("restore look: %w", err)
		}
		card, _ = s.store.Get(captured.ID)
		return nil
	})
	if err == nil {
		s.cameraDown.Store(false)
	}
	return card, err
}

// CaptureUnavailable records that the camera could not supply an image.
func (s *Session) CaptureUnavailable(reason string) {
	s.cameraDown.Store(true)
	_ = s.do(func() error {
		s.loop.Emit(core.CaptureUnavailablePayload{Reason: reason})
		return nil
	})
}

// CameraUnavailable reports whether the last capture attempt had no image.
func (s *Session) CameraUnavailable() bool {
	return s.cameraDown.Load()
}

// Delete removes a card, cancelling its develop timer and any drag holding it.
func (s *Session) Delete(id ulid.ULID) error {
	return s.do(func() error {
		s.capture.Forget(id)
		s.drag.Forget(id)
		s.store.Remove(id)
		return nil
	})
}

// SetCaption sets or, when blank, clears a card's caption.
func (s *Session) SetCaption(id ulid.ULID, caption string) error {
	f := core.To(caption)
	if strings.TrimSpace(caption) == "" {
		f = core.Clear[string]()
	}
	return s.update(id, core.CardPatch{Caption: f})
}

// SetFrame changes a card's frame style.
func (s *Session) SetFrame(id ulid.ULID, frame core.Frame) error {
	if !frame.Valid() {
		return fmt.Errorf("%w: frame %q", ErrUnknownOption, frame)
	}
	return s.update(id, core.CardPatch{Frame: &frame})
}

// SetFilter applies a catalog filter to a card. Empty or "normal" clears it.
func (s *Session) SetFilter(id ulid.ULID, filter string) error {
	if filter == "" || filter == noFilter {
		return s.update(id, core.CardPatch{Filter: core.Clear[string]()})
	}
	if _, ok := s.catalog.Filter(filter); !ok {
		return fmt.Errorf("%w: filter %q", ErrUnknownOption, filter)
	}
	return s.update(id, core.CardPatch{Filter: core.To(filter)})
}

func (s *Session) update(id ulid.ULID, patch core.CardPatch) error {
	return s.do(func() error {
		if _, ok := s.store.Get(id); !ok {
			return &core.CardNotFoundError{CardID: id}
		}
		return s.store.Update(id, patch)
	})
}

// PointerDown starts a pointer interaction on a card.
func (s *Session) PointerDown(p drag.PointerID, id ulid.ULID, at core.Point, region drag.Region) error {
	return s.do(func() error { return s.drag.PointerDown(p, id, at, region) })
}

// PointerMove follows a pointer.
func (s *Session) PointerMove(p drag.PointerID, at core.Point) error {
	return s.do(func() error { return s.drag.PointerMove(p, at) })
}

// PointerUp ends a pointer interaction.
func (s *Session) PointerUp(p drag.PointerID) (drag.Release, error) {
	var rel drag.Release
	err := s.do(func() error {
		var err error
		rel, err = s.drag.PointerUp(p)
		return err
	})
	return rel, err
}

// PointerCancel aborts a pointer interaction.
func (s *Session) PointerCancel(p drag.PointerID) (drag.Release, error) {
	var rel drag.Release
	err := s.do(func() error {
		var err error
		rel, err = s.drag.PointerCancel(p)
		return err
	})
	return rel, err
}

// DialBegin starts turning the filter dial with the pointer at angle degrees.
func (s *Session) DialBegin(angle float64) error {
	return s.do(func() error {
		s.dial.Begin(angle)
		return nil
	})
}

// DialMove turns the dial; provisional selections are broadcast.
func (s *Session) DialMove(angle float64) error {
	return s.do(func() error {
		s.dial.Move(angle)
		return nil
	})
}

// DialEnd releases the dial and commits the filter under the mark.
func (s *Session) DialEnd() (DialState, error) {
	var st DialState
	err := s.do(func() error {
		s.dial.End()
		st = s.dialState()
		return nil
	})
	return st, err
}

// DialSet jumps the dial to option i.
func (s *Session) DialSet(i int) (DialState, error) {
	var st DialState
	err := s.do(func() error {
		s.dial.SetIndex(i)
		st = s.dialState()
		return nil
	})
	return st, err
}

// Dial returns the dial's current state.
func (s *Session) Dial() (DialState, error) {
	var st DialState
	err := s.do(func() error {
		st = s.dialState()
		return nil
	})
	return st, err
}

func (s *Session) dialState() DialState {
	cur := s.dial.Current()
	_, dragging := s.dial.State().(rotary.Dragging)
	return DialState{Index: cur.Index, Filter: cur.Option, Rotation: s.dial.Rotation(), Dragging: dragging}
}

// RequestEdit starts an AI edit of a card. The channel yields one outcome.
func (s *Session) RequestEdit(id ulid.ULID, instruction string) (<-chan edit.Outcome, error) {
	var out <-chan edit.Outcome
	err := s.do(func() error {
		var err error
		out, err = s.edits.Request(s.ctx, id, instruction)
		return err
	})
	return out, err
}

// RequestPreset starts an edit using a catalog preset's prompt.
func (s *Session) RequestPreset(id ulid.ULID, key string) (<-chan edit.Outcome, error) {
	preset, ok := s.catalog.Preset(key)
	if !ok {
		return nil, fmt.Errorf("%w: %w: preset %q", core.ErrEditRejected, ErrUnknownOption, key)
	}
	return s.RequestEdit(id, preset.Prompt)
}

// Cards returns every card bottom to top, with transient tilt.
func (s *Session) Cards() ([]CardView, error) {
	var out []CardView
	err := s.do(func() error {
		for _, c := range s.store.List() {
			out = append(out, CardView{Card: c, Tilt: s.drag.Tilt(c.ID)})
		}
		return nil
	})
	return out, err
}

// Card returns one card.
func (s *Session) Card(id ulid.ULID) (CardView, error) {
	var view CardView
	err := s.do(func() error {
		c, ok := s.store.Get(id)
		if !ok {
			return &core.CardNotFoundError{CardID: id}
		}
		view = CardView{Card: c, Tilt: s.drag.Tilt(id)}
		return nil
	})
	return view, err
}

// Image loads a card payload.
func (s *Session) Image(ctx context.Context, ref core.ContentRef) (blob.Image, error) {
	return s.blobs.Get(ctx, ref)
}

// Catalog returns the board's option catalog.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Subscribe returns a channel of board events.
func (s *Session) Subscribe() chan core.Event {
	return s.loop.Subscribe()
}

// Unsubscribe detaches a subscription.
func (s *Session) Unsubscribe(ch chan core.Event) {
	s.loop.Unsubscribe(ch)
}

// Close stops timers, abandons in-flight edits and shuts the loop down.
func (s *Session) Close() {
	_ = s.do(func() error {
		s.capture.Stop()
		return nil
	})
	s.cancel()
	s.loop.Close()
}
