// ABOUTME: Tests for the drag engine.
// ABOUTME: Covers commit policy, tilt clamping, controls, edit taps and multi-pointer z-order.
package drag_test

import (
	"errors"
	"math"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/snapboard/board/core"
	"github.com/2389-research/snapboard/board/drag"
)

type rig struct {
	store  *core.Store
	engine *drag.Engine
	tilts  []core.CardTiltedPayload
}

func newRig(t *testing.T, r float64, cfg drag.Config) *rig {
	t.Helper()
	g := &rig{store: core.NewStore()}
	g.engine = drag.New(drag.Options{
		Store: g.store,
		Emit: func(p core.EventPayload) {
			if tp, ok := p.(core.CardTiltedPayload); ok {
				g.tilts = append(g.tilts, tp)
			}
		},
		Rand:   func() float64 { return r },
		Config: cfg,
	})
	return g
}

func (g *rig) add(t *testing.T, at core.Point, rotation float64) ulid.ULID {
	t.Helper()
	c := core.NewCard("sha256:aa", at, rotation)
	if err := g.store.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c.ID
}

func TestDrag_TapWithoutMovementKeepsRotation(t *testing.T) {
	g := newRig(t, 0.9, drag.DefaultConfig())
	id := g.add(t, core.Point{X: 10, Y: 10}, 2)

	if err := g.engine.PointerDown("p1", id, core.Point{X: 20, Y: 20}, drag.RegionBody); err != nil {
		t.Fatalf("PointerDown: %v", err)
	}
	rel, err := g.engine.PointerUp("p1")
	if err != nil {
		t.Fatalf("PointerUp: %v", err)
	}
	if rel.Moved {
		t.Error("release reported movement")
	}
	got, _ := g.store.Get(id)
	if got.Rotation != 2 {
		t.Errorf("rotation = %v, want unchanged 2", got.Rotation)
	}
}

func TestDrag_MovedReleaseCommitsBoundedToss(t *testing.T) {
	for _, r := range []float64{0, 0.5, 0.999} {
		g := newRig(t, r, drag.DefaultConfig())
		id := g.add(t, core.Point{X: 0, Y: 0}, 1)

		_ = g.engine.PointerDown("p1", id, core.Point{X: 10, Y: 10}, drag.RegionBody)
		_ = g.engine.PointerMove("p1", core.Point{X: 60, Y: 10})
		if tilt := g.engine.Tilt(id); tilt != 1 {
			t.Errorf("tilt while dragging = %v, want 50*0.02 = 1", tilt)
		}
		rel, _ := g.engine.PointerUp("p1")

		got, _ := g.store.Get(id)
		delta := got.Rotation - 1
		if delta < -5 || delta > 5 {
			t.Errorf("rand %v: toss %v outside [-5, 5]", r, delta)
		}
		if !rel.Moved || math.Abs(rel.Toss-delta) > 1e-9 {
			t.Errorf("release = %+v, rotation delta %v", rel, delta)
		}
		if g.engine.Tilt(id) != 0 {
			t.Error("tilt not reset after release")
		}
		if got.Position != (core.Point{X: 50, Y: 0}) {
			t.Errorf("position = %+v, want pointer minus grab offset", got.Position)
		}
	}
}

func TestDrag_TiltIsClampedAndTransient(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	id := g.add(t, core.Point{}, 0)

	_ = g.engine.PointerDown("p1", id, core.Point{}, drag.RegionBody)
	_ = g.engine.PointerMove("p1", core.Point{X: 5000})
	if tilt := g.engine.Tilt(id); tilt != 15 {
		t.Errorf("tilt = %v, want clamp 15", tilt)
	}
	_ = g.engine.PointerMove("p1", core.Point{X: -5000})
	if tilt := g.engine.Tilt(id); tilt != -15 {
		t.Errorf("tilt = %v, want clamp -15", tilt)
	}
	got, _ := g.store.Get(id)
	if got.Rotation != 0 {
		t.Errorf("tilt leaked into base rotation: %v", got.Rotation)
	}
	_, _ = g.engine.PointerCancel("p1")
	last := g.tilts[len(g.tilts)-1]
	if last.Tilt != 0 {
		t.Errorf("last tilt signal = %v, want 0", last.Tilt)
	}
}

func TestDrag_ControlRegionIsIgnored(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	a := g.add(t, core.Point{}, 0)
	b := g.add(t, core.Point{}, 0)

	if err := g.engine.PointerDown("p1", a, core.Point{}, drag.RegionControl); err != nil {
		t.Fatalf("PointerDown: %v", err)
	}
	if top, _ := g.store.Top(); top != b {
		t.Error("control press changed z-order")
	}
	if g.engine.Active() != 0 {
		t.Error("control press started an interaction")
	}
}

func TestDrag_EditTapRaisesAndOpens(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	a := g.add(t, core.Point{}, 4)
	_ = g.add(t, core.Point{}, 0)

	_ = g.engine.PointerDown("p1", a, core.Point{}, drag.RegionEdit)
	if top, _ := g.store.Top(); top != a {
		t.Error("edit tap did not raise the card")
	}
	_ = g.engine.PointerMove("p1", core.Point{X: 300})
	rel, _ := g.engine.PointerUp("p1")
	if !rel.OpenEdit || rel.CardID != a {
		t.Errorf("release = %+v, want OpenEdit on %s", rel, a)
	}
	got, _ := g.store.Get(a)
	if got.Rotation != 4 || got.Position != (core.Point{}) {
		t.Errorf("edit tap perturbed the card: %+v", got)
	}
}

func TestDrag_CancelledEditTapDoesNotOpen(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	a := g.add(t, core.Point{}, 0)
	_ = g.engine.PointerDown("p1", a, core.Point{}, drag.RegionEdit)
	rel, _ := g.engine.PointerCancel("p1")
	if rel.OpenEdit {
		t.Error("cancelled tap opened the edit surface")
	}
}

func TestDrag_OnePointerOneInteraction(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	a := g.add(t, core.Point{}, 0)
	b := g.add(t, core.Point{}, 0)

	_ = g.engine.PointerDown("p1", a, core.Point{}, drag.RegionBody)
	if err := g.engine.PointerDown("p1", b, core.Point{}, drag.RegionBody); !errors.Is(err, core.ErrPointerBusy) {
		t.Errorf("second down on same pointer err = %v, want ErrPointerBusy", err)
	}
	if err := g.engine.PointerDown("p2", a, core.Point{}, drag.RegionBody); !errors.Is(err, core.ErrCardBusy) {
		t.Errorf("grab of held card err = %v, want ErrCardBusy", err)
	}
}

func TestDrag_ActiveDragStaysOnTopOfOtherDrags(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	a := g.add(t, core.Point{}, 0)
	b := g.add(t, core.Point{}, 0)
	c := g.add(t, core.Point{}, 0)

	_ = g.engine.PointerDown("p1", a, core.Point{}, drag.RegionBody)
	_ = g.engine.PointerDown("p2", b, core.Point{}, drag.RegionBody)

	order := g.store.Order()
	want := []ulid.ULID{c, b, a}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	_, _ = g.engine.PointerUp("p1")
	_ = g.engine.PointerDown("p1", c, core.Point{}, drag.RegionBody)
	if top, _ := g.store.Top(); top != b {
		t.Errorf("top = %s, want still-dragged %s", top, b)
	}
}

func TestDrag_DeadZoneSuppressesJitter(t *testing.T) {
	cfg := drag.DefaultConfig()
	cfg.DeadZone = 4
	g := newRig(t, 0.9, cfg)
	id := g.add(t, core.Point{}, 0)

	_ = g.engine.PointerDown("p1", id, core.Point{}, drag.RegionBody)
	_ = g.engine.PointerMove("p1", core.Point{X: 2, Y: 2})
	rel, _ := g.engine.PointerUp("p1")
	if rel.Moved {
		t.Error("movement inside the dead zone counted as a drag")
	}
}

func TestDrag_ForgetDropsInteraction(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	id := g.add(t, core.Point{}, 0)
	_ = g.engine.PointerDown("p1", id, core.Point{}, drag.RegionBody)
	g.store.Remove(id)
	g.engine.Forget(id)

	if g.engine.Active() != 0 || g.engine.Dragging(id) {
		t.Fatal("interaction survived Forget")
	}
	if err := g.engine.PointerMove("p1", core.Point{X: 9}); err != nil {
		t.Errorf("stray move: %v", err)
	}
}

func TestDrag_UnknownCard(t *testing.T) {
	g := newRig(t, 0.5, drag.DefaultConfig())
	var nf *core.CardNotFoundError
	err := g.engine.PointerDown("p1", core.NewULID(), core.Point{}, drag.RegionBody)
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want CardNotFoundError", err)
	}
}
