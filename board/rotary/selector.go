// ABOUTME: Rotary selector: maps continuous angular drag onto a ring of discrete options.
// ABOUTME: Emits provisional selections while dragging and snaps to the chosen option on release.
package rotary

import (
	"errors"
	"math"
)

// ErrNoOptions indicates a selector was built with an empty option ring.
var ErrNoOptions = errors.New("rotary selector needs at least one option")

// State is the selector's interaction state: Idle or Dragging.
type State interface {
	rotaryState()
}

// Idle means no drag is in progress.
type Idle struct{}

// Dragging holds the baselines captured when the drag began.
type Dragging struct {
	BaselineAngle    float64
	BaselineRotation float64
	LiveIndex        int
}

func (Idle) rotaryState()     {}
func (Dragging) rotaryState() {}

// Selection is an option choice reported to the consumer.
type Selection[T any] struct {
	Index       int
	Option      T
	Rotation    float64
	Provisional bool
}

// Selector is a ring of options with a rotation in degrees. It is not safe for concurrent use.
type Selector[T any] struct {
	options  []T
	rotation float64
	index    int
	state    State
	onSelect func(Selection[T])
}

// New builds a selector resting on option initial. onSelect may be nil.
func New[T any](options []T, initial int, onSelect func(Selection[T])) (*Selector[T], error) {
	if len(options) == 0 {
		return nil, ErrNoOptions
	}
	s := &Selector[T]{
		options:  append([]T(nil), options...),
		state:    Idle{},
		onSelect: onSelect,
	}
	s.index = wrap(initial, len(options))
	s.rotation = s.CanonicalRotation(s.index)
	return s, nil
}

// Step returns the angular width of one option.
func (s *Selector[T]) Step() float64 {
	return 360 / float64(len(s.options))
}

// Len returns the number of options.
func (s *Selector[T]) Len() int { return len(s.options) }

// Options returns a copy of the option ring.
func (s *Selector[T]) Options() []T { return append([]T(nil), s.options...) }

// Rotation returns the current wheel rotation in degrees.
func (s *Selector[T]) Rotation() float64 { return s.rotation }

// State returns the current interaction state.
func (s *Selector[T]) State() State { return s.state }

// Current returns the committed selection.
func (s *Selector[T]) Current() Selection[T] {
	return Selection[T]{Index: s.index, Option: s.options[s.index], Rotation: s.rotation}
}

// IndexFor maps a rotation to an option index. Adding any multiple of 360 gives the same index.
func (s *Selector[T]) IndexFor(rotation float64) int {
	n := len(s.options)
	if n == 1 {
		return 0
	}
	i := int(math.Round((normalize(rotation) + 90) / s.Step()))
	return wrap(i, n)
}

// CanonicalRotation is the rotation that centers option i under the pointer mark.
func (s *Selector[T]) CanonicalRotation(i int) float64 {
	return float64(i)*s.Step() - 90
}

// Begin starts a drag with the pointer at angle degrees around the wheel center.
// A Begin while already dragging re-baselines.
func (s *Selector[T]) Begin(angle float64) {
	live := s.index
	if d, ok := s.state.(Dragging); ok {
		live = d.LiveIndex
	}
	s.state = Dragging{BaselineAngle: angle, BaselineRotation: s.rotation, LiveIndex: live}
}

// Move rotates the wheel with the pointer. It reports a provisional selection
// whenever the option under the mark changes. Moves while idle are ignored.
func (s *Selector[T]) Move(angle float64) (Selection[T], bool) {
	d, ok := s.state.(Dragging)
	if !ok {
		return Selection[T]{}, false
	}
	s.rotation = d.BaselineRotation + (angle - d.BaselineAngle)
	i := s.IndexFor(s.rotation)
	if i == d.LiveIndex {
		return Selection[T]{}, false
	}
	d.LiveIndex = i
	s.state = d
	sel := Selection[T]{Index: i, Option: s.options[i], Rotation: s.rotation, Provisional: true}
	s.notify(sel)
	return sel, true
}

// End releases the wheel, snapping it to the live option and committing it.
// End while idle returns the current selection without notifying.
func (s *Selector[T]) End() Selection[T] {
	d, ok := s.state.(Dragging)
	if !ok {
		return s.Current()
	}
	s.state = Idle{}
	s.index = d.LiveIndex
	s.rotation = s.CanonicalRotation(s.index)
	sel := s.Current()
	s.notify(sel)
	return sel
}

// SetIndex jumps straight to option i (wrapping) and commits it.
func (s *Selector[T]) SetIndex(i int) Selection[T] {
	s.state = Idle{}
	s.index = wrap(i, len(s.options))
	s.rotation = s.CanonicalRotation(s.index)
	sel := s.Current()
	s.notify(sel)
	return sel
}

func (s *Selector[T]) notify(sel Selection[T]) {
	if s.onSelect != nil {
		s.onSelect(sel)
	}
}

// AngleOf returns the pointer's angle around center in degrees, 0 pointing
// along +X and increasing toward +Y (clockwise on screen).
func AngleOf(centerX, centerY, pointerX, pointerY float64) float64 {
	return math.Atan2(pointerY-centerY, pointerX-centerX) * 180 / math.Pi
}

func normalize(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	return r
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
