package lattice

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/accelsim/internal/dynamo"
)

// racetrack returns the four elements of a clockwise ring: two half-circle
// dipoles of radius 10 joined by two 20 m FODO cells.
func racetrack(t *testing.T) []Element {
	t.Helper()
	return []Element{
		mustElement(t)(NewDipole(v(-10, 10, 0), v(10, 10, 0), 0.05, 0.1, 1)),
		mustElement(t)(NewFrodo(v(10, 10, 0), v(10, -10, 0), 0.05, 0.5, 2, 6)),
		mustElement(t)(NewDipole(v(10, -10, 0), v(-10, -10, 0), 0.05, 0.1, 1)),
		mustElement(t)(NewFrodo(v(-10, -10, 0), v(-10, 10, 0), 0.05, 0.5, 2, 6)),
	}
}

func closedRing(t *testing.T, mode dynamo.ProgressMode) *Ring {
	t.Helper()
	r := NewRing(mode)
	for _, e := range racetrack(t) {
		if _, err := r.Add(e); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	return r
}

func TestRingAdd(t *testing.T) {
	r := NewRing(dynamo.Exact)
	elems := racetrack(t)

	if _, err := r.Add(elems[0]); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if _, err := r.Add(elems[2]); !errors.Is(err, dynamo.ErrNotTouching) {
		t.Fatalf("expected not touching error, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("rejected element was stored, len=%d", r.Len())
	}

	h, err := r.Add(elems[1])
	if err != nil {
		t.Fatalf("touching add failed: %v", err)
	}
	if r.Next(0) != h || r.Prev(h) != 0 {
		t.Errorf("elements not linked: next(0)=%d prev(%d)=%d", r.Next(0), h, r.Prev(h))
	}
	if r.Prev(0).Valid() || r.Next(h).Valid() {
		t.Error("open chain should have no outer links")
	}
}

func TestRingClose(t *testing.T) {
	r := NewRing(dynamo.Exact)
	elems := racetrack(t)

	if err := r.Close(); !errors.Is(err, dynamo.ErrIncompleteLoop) {
		t.Errorf("expected incomplete loop on empty ring, got %v", err)
	}

	r.Add(elems[0])
	if err := r.Close(); !errors.Is(err, dynamo.ErrIncompleteLoop) {
		t.Errorf("expected incomplete loop with one element, got %v", err)
	}

	r.Add(elems[1])
	r.Add(elems[2])
	if err := r.Close(); !errors.Is(err, dynamo.ErrIncompleteLoop) {
		t.Errorf("expected incomplete loop on open ring, got %v", err)
	}

	r.Add(elems[3])
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !r.Closed() || r.Next(3) != 0 || r.Prev(0) != 3 {
		t.Error("ring not closed")
	}

	wantLength := 2*10*math.Pi + 2*20
	if math.Abs(r.TotalLength()-wantLength) > 1e-9 {
		t.Errorf("expected length %f, got %f", wantLength, r.TotalLength())
	}
}

func TestRingAddCopiesElement(t *testing.T) {
	r := NewRing(dynamo.Exact)
	e := racetrack(t)[1]
	r.Add(e)
	e.cell.parts[0].gradient = 42

	if r.At(0).Parts()[0].Gradient() == 42 {
		t.Error("ring shares storage with the caller's element")
	}
}

func TestRingReassign(t *testing.T) {
	for _, mode := range []dynamo.ProgressMode{dynamo.Exact, dynamo.Approximate} {
		t.Run(mode.String(), func(t *testing.T) {
			r := closedRing(t, mode)

			if h, ok := r.Reassign(0, v(0, 20, 0)); !ok || h != 0 {
				t.Errorf("inside point moved to %d (ok=%v)", h, ok)
			}
			if h, ok := r.Reassign(0, v(10, 9, 0)); !ok || h != 1 {
				t.Errorf("expected move to next element, got %d (ok=%v)", h, ok)
			}
			if h, ok := r.Reassign(0, v(-10, 9, 0)); !ok || h != 3 {
				t.Errorf("expected move to previous element, got %d (ok=%v)", h, ok)
			}
		})
	}

	open := NewRing(dynamo.Exact)
	open.Add(racetrack(t)[0])
	if _, ok := open.Reassign(0, v(-10, 9, 0)); ok {
		t.Error("expected particle before the first element of an open chain to be outside")
	}
	if h, ok := open.Reassign(NoElement, v(0, 20, 0)); ok || h.Valid() {
		t.Error("invalid handle should stay outside")
	}
}

func TestRingAdmit(t *testing.T) {
	r := NewRing(dynamo.Exact)
	if _, err := r.Admit(v(0, 20, 0)); !errors.Is(err, dynamo.ErrNoElements) {
		t.Errorf("expected no elements error, got %v", err)
	}

	r = closedRing(t, dynamo.Exact)
	tests := []struct {
		name string
		pos  dynamo.Vector3D
		want Handle
	}{
		{"top arc", v(0, 20, 0), 0},
		{"right cell", v(10.01, 0, 0), 1},
		{"bottom arc", v(0, -20, 0.01), 2},
		{"left cell", v(-10, 0, 0), 3},
		{"shared endpoint picks first", v(-10, 10, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := r.Admit(tt.pos)
			if err != nil {
				t.Fatalf("admit failed: %v", err)
			}
			if h != tt.want {
				t.Errorf("expected element %d, got %d", tt.want, h)
			}
		})
	}

	if _, err := r.Admit(v(0, 0, 0)); !errors.Is(err, dynamo.ErrNotInAccelerator) {
		t.Errorf("expected not in accelerator, got %v", err)
	}
	if _, err := r.Admit(v(0, 20.2, 0)); !errors.Is(err, dynamo.ErrNotInAccelerator) {
		t.Errorf("expected wall point to be rejected, got %v", err)
	}
}

func TestRingProgress(t *testing.T) {
	r := closedRing(t, dynamo.Exact)

	tests := []struct {
		pos  dynamo.Vector3D
		want float64
	}{
		{v(-10, 10, 0), 0},
		{v(10, 10, 0), 0.25},
		{v(10, -10, 0), 0.5},
		{v(-10, -10, 0), 0.75},
		{v(0, 20, 3), 0.125},
	}
	for _, tt := range tests {
		if got := r.Progress(tt.pos); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("progress(%v) = %g, want %g", tt.pos, got, tt.want)
		}
	}
}

func TestRingPosAtProgress(t *testing.T) {
	r := closedRing(t, dynamo.Exact)

	start, err := r.PosAtProgress(0)
	if err != nil {
		t.Fatalf("pos at progress failed: %v", err)
	}
	if !start.ApproxEqual(v(-10, 10, 0)) {
		t.Errorf("expected first entry, got %v", start)
	}

	end, _ := r.PosAtProgress(1)
	if !end.ApproxEqual(v(-10, 10, 0)) {
		t.Errorf("expected closed ring to end at the first entry, got %v", end)
	}

	// half of the first dipole
	p := 5 * math.Pi / r.TotalLength()
	top, _ := r.PosAtProgress(p)
	if !top.ApproxEqual(v(0, 20, 0)) {
		t.Errorf("expected top of the arc, got %v", top)
	}
	vel, _ := r.VelAtProgress(p, true)
	if !vel.ApproxEqual(dynamo.UnitX) {
		t.Errorf("expected +x tangent, got %v", vel)
	}

	// middle of the right cell
	p = (10*math.Pi + 10) / r.TotalLength()
	mid, _ := r.PosAtProgress(p)
	if !mid.ApproxEqual(v(10, 0, 0)) {
		t.Errorf("expected middle of right cell, got %v", mid)
	}

	if _, err := r.PosAtProgress(1.5); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected bounds error, got %v", err)
	}
	if _, err := NewRing(dynamo.Exact).VelAtProgress(0.5, true); !errors.Is(err, dynamo.ErrNoElements) {
		t.Errorf("expected no elements error, got %v", err)
	}
}

func TestRingClear(t *testing.T) {
	r := closedRing(t, dynamo.Exact)
	r.Clear()

	if r.Len() != 0 || r.Closed() || r.TotalLength() != 0 {
		t.Error("ring not cleared")
	}
	if r.At(0) != nil {
		t.Error("expected nil element after clear")
	}
	if !r.Field(0, v(0, 20, 0)).ApproxEqual(dynamo.Zero) {
		t.Error("expected zero field for a cleared handle")
	}
}

func TestRingString(t *testing.T) {
	s := closedRing(t, dynamo.Exact).String()
	if !strings.Contains(s, "closed") || strings.Count(s, "\n") != 5 {
		t.Errorf("unexpected ring dump:\n%s", s)
	}
}
