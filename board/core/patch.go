// ABOUTME: CardPatch is a partial card update; Field[T] distinguishes leave, clear and set.
// ABOUTME: Patches travel inside CardUpdated events, so absent fields are omitted on the wire.
package core

import (
	"bytes"
	"encoding/json"
)

// Field is a patchable optional attribute.
//
//   - Set=false:             leave the attribute alone
//   - Set=true, Valid=false: clear it
//   - Set=true, Valid=true:  replace it with Value
type Field[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Keep returns a Field that leaves the attribute untouched.
func Keep[T any]() Field[T] { return Field[T]{} }

// Clear returns a Field that removes the attribute.
func Clear[T any]() Field[T] { return Field[T]{Set: true} }

// To returns a Field that sets the attribute to v.
func To[T any](v T) Field[T] { return Field[T]{Set: true, Valid: true, Value: v} }

// apply resolves the field against the current pointer value.
func (f Field[T]) apply(cur *T) *T {
	if !f.Set {
		return cur
	}
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// MarshalJSON emits null for a cleared field and the value otherwise.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON marks the field as present; null clears.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Valid = false
		return nil
	}
	f.Valid = true
	return json.Unmarshal(data, &f.Value)
}

// CardPatch is a partial update. Nil pointers and unset Fields leave the card alone.
// Provenance can only be set, never cleared.
type CardPatch struct {
	Position   *Point
	Rotation   *float64
	Content    *ContentRef
	Status     *Status
	Frame      *Frame
	Filter     Field[string]
	Caption    Field[string]
	Provenance *string
}

// IsEmpty reports whether the patch changes nothing.
func (p CardPatch) IsEmpty() bool {
	return p.Position == nil && p.Rotation == nil && p.Content == nil &&
		p.Status == nil && p.Frame == nil && !p.Filter.Set && !p.Caption.Set &&
		p.Provenance == nil
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T { return &v }

// cardPatchJSON is the wire format. Optional fields are raw so absent ones drop out.
type cardPatchJSON struct {
	Position   *Point           `json:"position,omitempty"`
	Rotation   *float64         `json:"rotation,omitempty"`
	Content    *ContentRef      `json:"content,omitempty"`
	Status     *Status          `json:"status,omitempty"`
	Frame      *Frame           `json:"frame,omitempty"`
	Filter     *json.RawMessage `json:"filter,omitempty"`
	Caption    *json.RawMessage `json:"caption,omitempty"`
	Provenance *string          `json:"provenance,omitempty"`
}

// MarshalJSON omits untouched fields and writes null for cleared ones.
func (p CardPatch) MarshalJSON() ([]byte, error) {
	j := cardPatchJSON{
		Position:   p.Position,
		Rotation:   p.Rotation,
		Content:    p.Content,
		Status:     p.Status,
		Frame:      p.Frame,
		Provenance: p.Provenance,
	}
	var err error
	if j.Filter, err = rawField(p.Filter); err != nil {
		return nil, err
	}
	if j.Caption, err = rawField(p.Caption); err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// UnmarshalJSON restores a patch; keys that are missing stay untouched.
func (p *CardPatch) UnmarshalJSON(data []byte) error {
	var j struct {
		Position   *Point        `json:"position"`
		Rotation   *float64      `json:"rotation"`
		Content    *ContentRef   `json:"content"`
		Status     *Status       `json:"status"`
		Frame      *Frame        `json:"frame"`
		Filter     Field[string] `json:"filter"`
		Caption    Field[string] `json:"caption"`
		Provenance *string       `json:"provenance"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*p = CardPatch{
		Position:   j.Position,
		Rotation:   j.Rotation,
		Content:    j.Content,
		Status:     j.Status,
		Frame:      j.Frame,
		Filter:     j.Filter,
		Caption:    j.Caption,
		Provenance: j.Provenance,
	}
	return nil
}

func rawField[T any](f Field[T]) (*json.RawMessage, error) {
	if !f.Set {
		return nil, nil
	}
	data, err := f.MarshalJSON()
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage(data)
	return &raw, nil
}
