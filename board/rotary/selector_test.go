// ABOUTME: Tests for the rotary selector.
// ABOUTME: Covers angle math, snapping, wraparound, provisional selections and the single-option ring.
package rotary_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/2389-research/snapboard/board/rotary"
)

func ring(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("opt-%d", i)
	}
	return out
}

func TestNew_RejectsEmptyRing(t *testing.T) {
	if _, err := rotary.New[string](nil, 0, nil); !errors.Is(err, rotary.ErrNoOptions) {
		t.Fatalf("err = %v, want ErrNoOptions", err)
	}
}

func TestNew_RestsOnInitialOption(t *testing.T) {
	s, _ := rotary.New(ring(24), 5, nil)
	if s.Current().Index != 5 {
		t.Errorf("index = %d, want 5", s.Current().Index)
	}
	if s.IndexFor(s.Rotation()) != 5 {
		t.Errorf("resting rotation %v does not map back to 5", s.Rotation())
	}
	if _, idle := s.State().(rotary.Idle); !idle {
		t.Errorf("state = %T, want Idle", s.State())
	}
}

func TestSnapIsStableUnderReevaluation(t *testing.T) {
	var final rotary.Selection[string]
	s, _ := rotary.New(ring(24), 0, func(sel rotary.Selection[string]) {
		if !sel.Provisional {
			final = sel
		}
	})

	s.Begin(0)
	s.Move(187 + 90)
	sel := s.End()

	if math.Abs(s.Rotation()-187) < 1e-9 {
		t.Fatal("rotation was not snapped")
	}
	if got := s.IndexFor(187); got != sel.Index {
		t.Errorf("IndexFor(187) = %d, release chose %d", got, sel.Index)
	}
	once := s.IndexFor(s.Rotation())
	twice := s.IndexFor(s.CanonicalRotation(once))
	if once != sel.Index || twice != once {
		t.Errorf("snap unstable: release %d, once %d, twice %d", sel.Index, once, twice)
	}
	if sel.Index != 18 {
		t.Errorf("index = %d, want round(277/15) = 18", sel.Index)
	}
	if s.Rotation() != 18*15-90 {
		t.Errorf("rotation = %v, want %v", s.Rotation(), 18*15-90)
	}
	if final.Index != 18 || final.Option != "opt-18" {
		t.Errorf("final selection = %+v", final)
	}
}

func TestIndexFor_WrapsAround(t *testing.T) {
	s, _ := rotary.New(ring(4), 0, nil)
	if a, b := s.IndexFor(725), s.IndexFor(5); a != b {
		t.Errorf("IndexFor(725) = %d, IndexFor(5) = %d", a, b)
	}
	for _, rot := range []float64{-1000, -360, -91, 0, 44, 359.9, 7200} {
		a, b := s.IndexFor(rot), s.IndexFor(rot+360*3)
		if a != b {
			t.Errorf("IndexFor(%v) = %d but +1080 gives %d", rot, a, b)
		}
		if a < 0 || a >= 4 {
			t.Errorf("IndexFor(%v) = %d out of range", rot, a)
		}
	}
}

func TestDragAccumulatingFullTurns(t *testing.T) {
	long, _ := rotary.New(ring(4), 0, nil)
	short, _ := rotary.New(ring(4), 0, nil)

	long.Begin(0)
	for a := 0.0; a <= 725; a += 5 {
		long.Move(a)
	}
	short.Begin(0)
	short.Move(5)

	if l, s := long.End().Index, short.End().Index; l != s {
		t.Errorf("725° drag chose %d, 5° drag chose %d", l, s)
	}
}

func TestMove_ReportsOnlyIndexChanges(t *testing.T) {
	var provisional []int
	s, _ := rotary.New(ring(24), 0, func(sel rotary.Selection[string]) {
		if sel.Provisional {
			provisional = append(provisional, sel.Index)
		}
	})
	s.Begin(0)
	s.Move(3)
	s.Move(6)
	s.Move(10)
	s.Move(31)

	if len(provisional) != 2 || provisional[0] != 1 || provisional[1] != 2 {
		t.Errorf("provisional = %v, want [1 2]", provisional)
	}
	d, ok := s.State().(rotary.Dragging)
	if !ok || d.LiveIndex != 2 {
		t.Errorf("state = %+v", s.State())
	}
	if s.Current().Index != 0 {
		t.Error("committed index changed before release")
	}
}

func TestMove_WhileIdleIsIgnored(t *testing.T) {
	s, _ := rotary.New(ring(8), 0, nil)
	if _, changed := s.Move(100); changed {
		t.Error("idle move changed selection")
	}
	if s.Rotation() != -90 {
		t.Errorf("rotation = %v, want -90", s.Rotation())
	}
}

func TestSingleOptionAlwaysResolvesToZero(t *testing.T) {
	s, _ := rotary.New(ring(1), 0, nil)
	for _, rot := range []float64{-720, -90, 0, 179, 180, 181, 1e6} {
		if got := s.IndexFor(rot); got != 0 {
			t.Errorf("IndexFor(%v) = %d, want 0", rot, got)
		}
	}
	s.Begin(0)
	s.Move(250)
	if sel := s.End(); sel.Index != 0 {
		t.Errorf("release index = %d", sel.Index)
	}
}

func TestSetIndexWraps(t *testing.T) {
	s, _ := rotary.New(ring(24), 0, nil)
	if sel := s.SetIndex(-1); sel.Index != 23 {
		t.Errorf("SetIndex(-1) = %d, want 23", sel.Index)
	}
	if sel := s.SetIndex(25); sel.Index != 1 {
		t.Errorf("SetIndex(25) = %d, want 1", sel.Index)
	}
}

func TestAngleOf(t *testing.T) {
	tests := []struct {
		px, py, want float64
	}{
		{1, 0, 0},
		{0, 1, 90},
		{-1, 0, 180},
		{0, -1, -90},
	}
	for _, tt := range tests {
		if got := rotary.AngleOf(0, 0, tt.px, tt.py); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AngleOf(%v,%v) = %v, want %v", tt.px, tt.py, got, tt.want)
		}
	}
}
