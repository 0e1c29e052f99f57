// ABOUTME: Event is the envelope for board changes, wrapping EventPayload variants.
// ABOUTME: Payloads serialize as a tagged union with a "type" discriminator.
package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is the immutable envelope for one board change.
type Event struct {
	Seq       uint64       `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   EventPayload `json:"-"`
}

type eventJSON struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON serializes the Event with its payload inlined.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := MarshalEventPayload(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return json.Marshal(eventJSON{Seq: e.Seq, Timestamp: e.Timestamp, Payload: payload})
}

// UnmarshalJSON deserializes the Event with its payload.
func (e *Event) UnmarshalJSON(data []byte) error {
	var j eventJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	payload, err := UnmarshalEventPayload(j.Payload)
	if err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}
	e.Seq = j.Seq
	e.Timestamp = j.Timestamp
	e.Payload = payload
	return nil
}

// EventPayload is the sealed set of board event variants.
type EventPayload interface {
	EventPayloadType() string
	eventPayloadSeal()
}

// CardCreatedPayload carries a newly captured card.
type CardCreatedPayload struct {
	Card Card `json:"card"`
}

func (p CardCreatedPayload) EventPayloadType() string { return "CardCreated" }
func (p CardCreatedPayload) eventPayloadSeal()        {}

// CardUpdatedPayload carries the normalized patch applied to a card.
type CardUpdatedPayload struct {
	CardID ulid.ULID `json:"card_id"`
	Patch  CardPatch `json:"patch"`
}

func (p CardUpdatedPayload) EventPayloadType() string { return "CardUpdated" }
func (p CardUpdatedPayload) eventPayloadSeal()        {}

// CardRaisedPayload indicates a card moved to the top of the stack.
type CardRaisedPayload struct {
	CardID ulid.ULID `json:"card_id"`
}

func (p CardRaisedPayload) EventPayloadType() string { return "CardRaised" }
func (p CardRaisedPayload) eventPayloadSeal()        {}

// CardRemovedPayload indicates a card left the board.
type CardRemovedPayload struct {
	CardID ulid.ULID `json:"card_id"`
}

func (p CardRemovedPayload) EventPayloadType() string { return "CardRemoved" }
func (p CardRemovedPayload) eventPayloadSeal()        {}

// CardTiltedPayload reports the transient drag tilt of a card. Zero means at rest.
type CardTiltedPayload struct {
	CardID ulid.ULID `json:"card_id"`
	Tilt   float64   `json:"tilt"`
}

func (p CardTiltedPayload) EventPayloadType() string { return "CardTilted" }
func (p CardTiltedPayload) eventPayloadSeal()        {}

// FlashPayload toggles the capture flash.
type FlashPayload struct {
	On bool `json:"on"`
}

func (p FlashPayload) EventPayloadType() string { return "Flash" }
func (p FlashPayload) eventPayloadSeal()        {}

// EditFailedPayload reports that an edit collaborator call failed.
type EditFailedPayload struct {
	CardID      ulid.ULID `json:"card_id"`
	Instruction string    `json:"instruction"`
	Reason      string    `json:"reason"`
}

func (p EditFailedPayload) EventPayloadType() string { return "EditFailed" }
func (p EditFailedPayload) eventPayloadSeal()        {}

// CaptureUnavailablePayload reports that the capture source produced nothing.
type CaptureUnavailablePayload struct {
	Reason string `json:"reason"`
}

func (p CaptureUnavailablePayload) EventPayloadType() string { return "CaptureUnavailable" }
func (p CaptureUnavailablePayload) eventPayloadSeal()        {}

// SelectionChangedPayload reports the rotary filter wheel's current choice.
type SelectionChangedPayload struct {
	Index       int     `json:"index"`
	OptionID    string  `json:"option_id"`
	Rotation    float64 `json:"rotation"`
	Provisional bool    `json:"provisional"`
}

func (p SelectionChangedPayload) EventPayloadType() string { return "SelectionChanged" }
func (p SelectionChangedPayload) eventPayloadSeal()        {}

// Durable reports whether the payload changes board state and belongs in the journal.
// Flash, tilt and selection events are presentation signals only.
func Durable(p EventPayload) bool {
	switch p.(type) {
	case CardCreatedPayload, CardUpdatedPayload, CardRaisedPayload, CardRemovedPayload:
		return true
	}
	return false
}

// MarshalEventPayload serializes a payload with its "type" discriminator.
func MarshalEventPayload(p EventPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil event payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	typeJSON, _ := json.Marshal(p.EventPayloadType())
	m["type"] = typeJSON
	return json.Marshal(m)
}

// UnmarshalEventPayload deserializes a payload using its "type" discriminator.
func UnmarshalEventPayload(data []byte) (EventPayload, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal event payload type: %w", err)
	}

	switch envelope.Type {
	case "CardCreated":
		return decodePayload[CardCreatedPayload](data)
	case "CardUpdated":
		return decodePayload[CardUpdatedPayload](data)
	case "CardRaised":
		return decodePayload[CardRaisedPayload](data)
	case "CardRemoved":
		return decodePayload[CardRemovedPayload](data)
	case "CardTilted":
		return decodePayload[CardTiltedPayload](data)
	case "Flash":
		return decodePayload[FlashPayload](data)
	case "EditFailed":
		return decodePayload[EditFailedPayload](data)
	case "CaptureUnavailable":
		return decodePayload[CaptureUnavailablePayload](data)
	case "SelectionChanged":
		return decodePayload[SelectionChangedPayload](data)
	default:
		return nil, fmt.Errorf("unknown event payload type: %q", envelope.Type)
	}
}

func decodePayload[T EventPayload](data []byte) (EventPayload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}
