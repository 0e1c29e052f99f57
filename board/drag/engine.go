// ABOUTME: Drag engine: per-pointer interaction state machine for moving, tilting and raising cards.
// ABOUTME: Tilt is transient while dragging; a moved release commits a small random toss to the base rotation.
package drag

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board/core"
)

// PointerID identifies one pointer stream. Transports make ids unique across clients.
type PointerID string

// Region is the part of a card a pointer went down on.
type Region int

const (
	// RegionBody starts a drag.
	RegionBody Region = iota
	// RegionControl is a nested control (delete, style buttons); the engine ignores it.
	RegionControl
	// RegionEdit is the edit affordance: a tap raises the card and opens the edit surface.
	RegionEdit
)

// ParseRegion maps a wire name to a Region.
func ParseRegion(s string) (Region, error) {
	switch s {
	case "", "body":
		return RegionBody, nil
	case "control":
		return RegionControl, nil
	case "edit":
		return RegionEdit, nil
	}
	return 0, fmt.Errorf("unknown pointer region %q", s)
}

// Config holds the presentation-tuned drag constants.
type Config struct {
	// TiltFactor converts horizontal drag distance into degrees of tilt.
	TiltFactor float64
	// MaxTilt clamps tilt to [-MaxTilt, +MaxTilt].
	MaxTilt float64
	// TossRange bounds the rotation perturbation committed on a moved release.
	TossRange float64
	// DeadZone is the displacement a pointer must exceed before a press counts as a move.
	DeadZone float64
}

// DefaultConfig returns the standard drag feel.
func DefaultConfig() Config {
	return Config{TiltFactor: 0.02, MaxTilt: 15, TossRange: 5}
}

// Release describes how an interaction ended.
type Release struct {
	CardID ulid.ULID `json:"card_id"`
	// Moved is true when the card was displaced and a toss was committed.
	Moved bool `json:"moved"`
	// Toss is the rotation delta committed on release.
	Toss float64 `json:"toss"`
	// OpenEdit is true when an edit-affordance tap completed.
	OpenEdit bool `json:"open_edit"`
}

type kind int

const (
	kindDrag kind = iota
	kindTap
)

type interaction struct {
	kind   kind
	card   ulid.ULID
	offset core.Point
	start  core.Point
	moved  bool
	tilt   float64
	seq    uint64
}

// Options wires an Engine to its board.
type Options struct {
	Store *core.Store
	// Emit publishes transient tilt changes.
	Emit func(core.EventPayload)
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand   func() float64
	Config Config
	Logger *slog.Logger
}

// Engine tracks every active pointer interaction of one board. All methods
// must run on the goroutine that owns the Store.
type Engine struct {
	store  *core.Store
	emit   func(core.EventPayload)
	rand   func() float64
	cfg    Config
	logger *slog.Logger

	active  map[PointerID]*interaction
	holders map[ulid.ULID]PointerID
	seq     uint64
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		store:   opts.Store,
		emit:    opts.Emit,
		rand:    opts.Rand,
		cfg:     opts.Config,
		logger:  opts.Logger,
		active:  make(map[PointerID]*interaction),
		holders: make(map[ulid.ULID]PointerID),
	}
	if e.emit == nil {
		e.emit = func(core.EventPayload) {}
	}
	if e.rand == nil {
		e.rand = rand.Float64
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// PointerDown starts an interaction on card at board position at.
func (e *Engine) PointerDown(p PointerID, id ulid.ULID, at core.Point, region Region) error {
	if region == RegionControl {
		return nil
	}
	if _, busy := e.active[p]; busy {
		return fmt.Errorf("%w: %s", core.ErrPointerBusy, p)
	}
	card, ok := e.store.Get(id)
	if !ok {
		return &core.CardNotFoundError{CardID: id}
	}

	e.seq++
	if region == RegionEdit {
		e.active[p] = &interaction{kind: kindTap, card: id, start: at, seq: e.seq}
		e.raise(id)
		return nil
	}

	if holder, held := e.holders[id]; held {
		return fmt.Errorf("%w: %s holds %s", core.ErrCardBusy, holder, id)
	}
	e.active[p] = &interaction{
		kind:   kindDrag,
		card:   id,
		offset: at.Sub(card.Position),
		start:  at,
		seq:    e.seq,
	}
	e.holders[id] = p
	e.raise(id)
	return nil
}

// PointerMove follows the pointer. Moves from pointers with no interaction are ignored.
func (e *Engine) PointerMove(p PointerID, at core.Point) error {
	in, ok := e.active[p]
	if !ok || in.kind != kindDrag {
		return nil
	}
	if _, exists := e.store.Get(in.card); !exists {
		e.drop(p, in)
		return nil
	}

	pos := at.Sub(in.offset)
	if err := e.store.Update(in.card, core.CardPatch{Position: &pos}); err != nil {
		return err
	}

	d := at.Sub(in.start)
	if !in.moved && math.Hypot(d.X, d.Y) > e.cfg.DeadZone {
		in.moved = true
	}
	if in.moved {
		e.setTilt(in, clamp(d.X*e.cfg.TiltFactor, e.cfg.MaxTilt))
	}
	return nil
}

// PointerUp ends the pointer's interaction. A moved drag commits a random toss.
func (e *Engine) PointerUp(p PointerID) (Release, error) {
	return e.finish(p, true)
}

// PointerCancel ends the interaction like PointerUp, but never opens the edit surface.
func (e *Engine) PointerCancel(p PointerID) (Release, error) {
	return e.finish(p, false)
}

func (e *Engine) finish(p PointerID, completed bool) (Release, error) {
	in, ok := e.active[p]
	if !ok {
		return Release{}, nil
	}
	e.drop(p, in)
	rel := Release{CardID: in.card}

	if in.kind == kindTap {
		_, exists := e.store.Get(in.card)
		rel.OpenEdit = completed && exists
		return rel, nil
	}

	e.setTilt(in, 0)
	if !in.moved {
		return rel, nil
	}
	card, exists := e.store.Get(in.card)
	if !exists {
		return rel, nil
	}
	toss := (e.rand()*2 - 1) * e.cfg.TossRange
	if err := e.store.Update(in.card, core.CardPatch{Rotation: core.Ptr(card.Rotation + toss)}); err != nil {
		return rel, err
	}
	rel.Moved = true
	rel.Toss = toss
	e.logger.Debug("card tossed",
		slog.String("component", "board.drag"),
		slog.String("card_id", in.card.String()),
		slog.Float64("toss", toss))
	return rel, nil
}

// Tilt returns the transient tilt of a card, zero when it is not being dragged.
func (e *Engine) Tilt(id ulid.ULID) float64 {
	if p, held := e.holders[id]; held {
		return e.active[p].tilt
	}
	return 0
}

// Dragging reports whether some pointer currently drags the card.
func (e *Engine) Dragging(id ulid.ULID) bool {
	_, held := e.holders[id]
	return held
}

// Active returns the number of pointers with an interaction in progress.
func (e *Engine) Active() int {
	return len(e.active)
}

// Forget drops every interaction touching a card that left the board.
func (e *Engine) Forget(id ulid.ULID) {
	for p, in := range e.active {
		if in.card == id {
			e.drop(p, in)
		}
	}
}

// raise brings id to the front, then puts cards held by other drags back on top
// in the order their drags started.
func (e *Engine) raise(id ulid.ULID) {
	e.store.BringToFront(id)

	var held []*interaction
	for _, in := range e.active {
		if in.kind == kindDrag && in.card != id {
			held = append(held, in)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].seq < held[j].seq })
	for _, in := range held {
		e.store.BringToFront(in.card)
	}
}

func (e *Engine) drop(p PointerID, in *interaction) {
	delete(e.active, p)
	if in.kind == kindDrag && e.holders[in.card] == p {
		delete(e.holders, in.card)
	}
}

func (e *Engine) setTilt(in *interaction, tilt float64) {
	if tilt == in.tilt {
		return
	}
	in.tilt = tilt
	e.emit(core.CardTiltedPayload{CardID: in.card, Tilt: tilt})
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
