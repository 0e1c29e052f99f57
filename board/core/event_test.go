// ABOUTME: Tests for event envelopes and the tri-state patch wire format.
// ABOUTME: Journal replay depends on cleared and untouched patch fields staying distinct.
package core_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/2389-research/snapboard/board/core"
)

func TestCardUpdatedEvent_PreservesPatchFieldStates(t *testing.T) {
	id := core.NewULID()
	ev := core.Event{
		Seq: 7,
		Payload: core.CardUpdatedPayload{
			CardID: id,
			Patch: core.CardPatch{
				Rotation: core.Ptr(-2.5),
				Caption:  core.Clear[string](),
				Filter:   core.To("moon"),
			},
		},
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), `"position"`) {
		t.Errorf("untouched field leaked onto the wire: %s", data)
	}
	if !strings.Contains(string(data), `"caption":null`) {
		t.Errorf("cleared caption missing from wire: %s", data)
	}

	var back core.Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	p, ok := back.Payload.(core.CardUpdatedPayload)
	if !ok {
		t.Fatalf("payload = %T", back.Payload)
	}
	if p.CardID != id || back.Seq != 7 {
		t.Errorf("envelope mismatch: %+v", back)
	}
	if p.Patch.Position != nil {
		t.Error("position became set")
	}
	if !p.Patch.Caption.Set || p.Patch.Caption.Valid {
		t.Errorf("caption state = %+v, want cleared", p.Patch.Caption)
	}
	if !p.Patch.Filter.Valid || p.Patch.Filter.Value != "moon" {
		t.Errorf("filter = %+v", p.Patch.Filter)
	}
	if p.Patch.Frame != nil || p.Patch.Status != nil {
		t.Error("unset pointer fields became set")
	}
}

func TestUnmarshalEventPayload_UnknownType(t *testing.T) {
	if _, err := core.UnmarshalEventPayload([]byte(`{"type":"Nope"}`)); err == nil {
		t.Fatal("expected error for unknown payload type")
	}
}

func TestDurable(t *testing.T) {
	if !core.Durable(core.CardRaisedPayload{}) {
		t.Error("CardRaised should be durable")
	}
	if core.Durable(core.FlashPayload{On: true}) {
		t.Error("Flash should not be durable")
	}
	if core.Durable(core.CardTiltedPayload{}) {
		t.Error("CardTilted should not be durable")
	}
}
