// ABOUTME: Store is the board's ordered card collection: create, update, bring-to-front, remove, list.
// ABOUTME: It is single-threaded; the session loop owns it and every mutation reports one event to the sink.
package core

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Store holds the cards of one board in stacking order.
// It is not safe for concurrent use; run it on a Loop.
type Store struct {
	cards   *ZOrder[ulid.ULID, Card]
	retired map[ulid.ULID]struct{}
	sink    func(EventPayload)
}

// NewStore creates an empty board.
func NewStore() *Store {
	return &Store{
		cards:   NewZOrder[ulid.ULID, Card](),
		retired: make(map[ulid.ULID]struct{}),
	}
}

// SetSink registers the function that receives one payload per state change.
func (s *Store) SetSink(fn func(EventPayload)) {
	s.sink = fn
}

func (s *Store) emit(p EventPayload) {
	if s.sink != nil {
		s.sink(p)
	}
}

// Create places a new card on top of the stack.
func (s *Store) Create(c Card) error {
	if err := c.validate(); err != nil {
		return err
	}
	if _, used := s.retired[c.ID]; used || s.cards.Has(c.ID) {
		return fmt.Errorf("%w: id %s already used", ErrInvalidCard, c.ID)
	}
	c = c.Clone()
	if c.Frame == "" {
		c.Frame = FrameClassic
	}
	if c.Caption != nil {
		c.Caption = Ptr(TruncateCaption(*c.Caption))
	}
	s.cards.Set(c.ID, c)
	s.emit(CardCreatedPayload{Card: c.Clone()})
	return nil
}

// Update merges patch into the card with the given id. A missing id is a no-op.
// The patch is applied whole or not at all.
func (s *Store) Update(id ulid.ULID, patch CardPatch) error {
	cur, ok := s.cards.Get(id)
	if !ok || patch.IsEmpty() {
		return nil
	}
	if patch.Status != nil && !cur.Status.CanTransition(*patch.Status) {
		return fmt.Errorf("%w: %s -> %s on card %s", ErrIllegalTransition, cur.Status, *patch.Status, id)
	}
	if patch.Frame != nil && !patch.Frame.Valid() {
		return fmt.Errorf("%w: unknown frame %q", ErrInvalidCard, *patch.Frame)
	}
	if patch.Content != nil && patch.Content.IsZero() {
		return fmt.Errorf("%w: empty content", ErrInvalidCard)
	}
	if patch.Caption.Set && patch.Caption.Valid {
		patch.Caption.Value = TruncateCaption(patch.Caption.Value)
	}

	next := cur.Clone()
	if patch.Position != nil {
		next.Position = *patch.Position
	}
	if patch.Rotation != nil {
		next.Rotation = *patch.Rotation
	}
	if patch.Content != nil {
		next.Content = *patch.Content
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Frame != nil {
		next.Frame = *patch.Frame
	}
	next.Filter = patch.Filter.apply(next.Filter)
	next.Caption = patch.Caption.apply(next.Caption)
	if patch.Provenance != nil {
		next.Provenance = Ptr(*patch.Provenance)
	}

	s.cards.Set(id, next)
	s.emit(CardUpdatedPayload{CardID: id, Patch: patch})
	return nil
}

// BringToFront makes the card topmost. Missing or already-topmost cards are left alone.
func (s *Store) BringToFront(id ulid.ULID) {
	if s.cards.MoveToBack(id) {
		s.emit(CardRaisedPayload{CardID: id})
	}
}

// Remove deletes the card. Its id is never handed out again.
func (s *Store) Remove(id ulid.ULID) {
	if !s.cards.Has(id) {
		return
	}
	s.cards.Delete(id)
	s.retired[id] = struct{}{}
	s.emit(CardRemovedPayload{CardID: id})
}

// Get returns a copy of the card.
func (s *Store) Get(id ulid.ULID) (Card, bool) {
	c, ok := s.cards.Get(id)
	if !ok {
		return Card{}, false
	}
	return c.Clone(), true
}

// List returns copies of every card, bottom of the stack first.
func (s *Store) List() []Card {
	out := make([]Card, 0, s.cards.Len())
	s.cards.Range(func(_ ulid.ULID, c Card) bool {
		out = append(out, c.Clone())
		return true
	})
	return out
}

// Order returns card ids bottom to top.
func (s *Store) Order() []ulid.ULID {
	return s.cards.Keys()
}

// Top returns the id of the topmost card.
func (s *Store) Top() (ulid.ULID, bool) {
	return s.cards.Top()
}

// Len returns the number of cards on the board.
func (s *Store) Len() int {
	return s.cards.Len()
}

// Apply replays a recorded payload against the store. Non-durable payloads are ignored.
func (s *Store) Apply(p EventPayload) error {
	switch e := p.(type) {
	case CardCreatedPayload:
		return s.Create(e.Card)
	case CardUpdatedPayload:
		return s.Update(e.CardID, e.Patch)
	case CardRaisedPayload:
		s.BringToFront(e.CardID)
	case CardRemovedPayload:
		s.Remove(e.CardID)
	}
	return nil
}
