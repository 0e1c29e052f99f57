// ABOUTME: Card is one polaroid on the board: position, base rotation, content and lifecycle status.
// ABOUTME: Style attributes (frame, filter, caption) and edit provenance travel with the card.
package core

import (
	"crypto/rand"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// MaxCaptionRunes is the longest caption a card keeps. Longer input is clipped
// to its first MaxCaptionRunes characters.
const MaxCaptionRunes = 30

// Point is a position in board coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// ContentRef is an opaque handle to a card's image payload.
type ContentRef string

// IsZero reports whether the reference is empty.
func (r ContentRef) IsZero() bool { return r == "" }

func (r ContentRef) String() string { return string(r) }

// Frame is the paper style drawn around a card's image.
type Frame string

const (
	FrameClassic  Frame = "classic"
	FrameBlack    Frame = "black"
	FrameColorful Frame = "colorful"
	FrameVintage  Frame = "vintage"
)

// Frames lists every frame style in display order.
var Frames = []Frame{FrameClassic, FrameBlack, FrameColorful, FrameVintage}

// Valid reports whether f is a known frame style.
func (f Frame) Valid() bool {
	switch f {
	case FrameClassic, FrameBlack, FrameColorful, FrameVintage:
		return true
	}
	return false
}

// ParseFrame converts a frame name into a Frame.
func ParseFrame(s string) (Frame, error) {
	f := Frame(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown frame style %q", s)
	}
	return f, nil
}

// Card is a single photo on the board.
type Card struct {
	ID         ulid.ULID  `json:"id"`
	Position   Point      `json:"position"`
	Rotation   float64    `json:"rotation"`
	Content    ContentRef `json:"content"`
	Status     Status     `json:"status"`
	Frame      Frame      `json:"frame"`
	Filter     *string    `json:"filter,omitempty"`
	Caption    *string    `json:"caption,omitempty"`
	Provenance *string    `json:"provenance,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewULID returns a fresh card id. Ids sort by creation time.
func NewULID() ulid.ULID {
	return ulid.MustNew(ulid.Now(), rand.Reader)
}

// NewCard builds a freshly captured card in the developing state.
func NewCard(content ContentRef, at Point, rotation float64) Card {
	return Card{
		ID:        NewULID(),
		Position:  at,
		Rotation:  rotation,
		Content:   content,
		Status:    StatusDeveloping,
		Frame:     FrameClassic,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy so callers never alias the store's pointers.
func (c Card) Clone() Card {
	c.Filter = cloneString(c.Filter)
	c.Caption = cloneString(c.Caption)
	c.Provenance = cloneString(c.Provenance)
	return c
}

// validate checks the fields a card must carry to enter the store.
func (c Card) validate() error {
	switch {
	case c.ID == (ulid.ULID{}):
		return fmt.Errorf("%w: missing id", ErrInvalidCard)
	case c.Content.IsZero():
		return fmt.Errorf("%w: missing content", ErrInvalidCard)
	case c.Status == "":
		return fmt.Errorf("%w: missing status", ErrInvalidCard)
	case c.Status != StatusDeveloping:
		return fmt.Errorf("%w: new cards must be %s, got %s", ErrInvalidCard, StatusDeveloping, c.Status)
	case c.Frame != "" && !c.Frame.Valid():
		return fmt.Errorf("%w: unknown frame %q", ErrInvalidCard, c.Frame)
	}
	return nil
}

// TruncateCaption keeps the first MaxCaptionRunes characters of s.
func TruncateCaption(s string) string {
	if utf8.RuneCountInString(s) <= MaxCaptionRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxCaptionRunes {
			return s[:i]
		}
		n++
	}
	return s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
