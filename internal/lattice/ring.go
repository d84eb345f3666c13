package lattice

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/accelsim/internal/dynamo"
)

// Handle addresses an element inside a Ring.
type Handle int

// NoElement is the handle of a particle that is not inside any element.
const NoElement Handle = -1

func (h Handle) Valid() bool { return h >= 0 }

// Ring owns the elements of one accelerator and their prev/next links.
// It is an open chain until Close succeeds.
type Ring struct {
	elems  []Element
	prev   []Handle
	next   []Handle
	length float64
	mode   dynamo.ProgressMode
	closed bool
}

func NewRing(mode dynamo.ProgressMode) *Ring {
	return &Ring{mode: mode}
}

func (r *Ring) Mode() dynamo.ProgressMode { return r.mode }
func (r *Ring) Len() int                  { return len(r.elems) }
func (r *Ring) Closed() bool              { return r.closed }
func (r *Ring) TotalLength() float64      { return r.length }

// At returns the element behind h, or nil for an invalid handle.
func (r *Ring) At(h Handle) *Element {
	if !r.valid(h) {
		return nil
	}
	return &r.elems[h]
}

func (r *Ring) Prev(h Handle) Handle {
	if !r.valid(h) {
		return NoElement
	}
	return r.prev[h]
}

func (r *Ring) Next(h Handle) Handle {
	if !r.valid(h) {
		return NoElement
	}
	return r.next[h]
}

func (r *Ring) valid(h Handle) bool {
	return r != nil && h >= 0 && int(h) < len(r.elems)
}

// Add appends a copy of e after the current last element.
func (r *Ring) Add(e Element) (Handle, error) {
	if n := len(r.elems); n > 0 {
		last := &r.elems[n-1]
		if !last.posOut.ApproxEqual(e.posIn) {
			return NoElement, fmt.Errorf("%w: exit %v, entry %v", dynamo.ErrNotTouching, last.posOut, e.posIn)
		}
		if r.closed {
			r.unlink(Handle(n-1), 0)
			r.closed = false
		}
	}

	h := Handle(len(r.elems))
	r.elems = append(r.elems, e.Clone())
	r.prev = append(r.prev, NoElement)
	r.next = append(r.next, NoElement)
	r.length += e.length
	if h > 0 {
		r.Link(h-1, h)
	}
	return h, nil
}

// Link makes b the successor of a.
func (r *Ring) Link(a, b Handle) {
	if !r.valid(a) || !r.valid(b) {
		return
	}
	r.next[a] = b
	r.prev[b] = a
}

func (r *Ring) unlink(a, b Handle) {
	if r.valid(a) && r.next[a] == b {
		r.next[a] = NoElement
	}
	if r.valid(b) && r.prev[b] == a {
		r.prev[b] = NoElement
	}
}

// Close links the last element back to the first.
func (r *Ring) Close() error {
	n := len(r.elems)
	if n < 2 {
		return fmt.Errorf("%w: need at least 2 elements, have %d", dynamo.ErrIncompleteLoop, n)
	}
	if !r.elems[n-1].posOut.ApproxEqual(r.elems[0].posIn) {
		return fmt.Errorf("%w: exit %v, entry %v", dynamo.ErrIncompleteLoop, r.elems[n-1].posOut, r.elems[0].posIn)
	}
	r.Link(Handle(n-1), 0)
	r.closed = true
	return nil
}

// Clear unlinks every element and drops the arena.
func (r *Ring) Clear() {
	for i := range r.elems {
		r.unlink(Handle(i), r.next[i])
	}
	r.elems = nil
	r.prev = nil
	r.next = nil
	r.length = 0
	r.closed = false
}

// Field returns the field of element h at pos; zero outside the ring.
func (r *Ring) Field(h Handle, pos dynamo.Vector3D) dynamo.Vector3D {
	e := r.At(h)
	if e == nil {
		return dynamo.Zero
	}
	return e.Field(pos, r.mode)
}

// InWall reports whether pos hits the bore of element h.
func (r *Ring) InWall(h Handle, pos dynamo.Vector3D) bool {
	e := r.At(h)
	if e == nil {
		return false
	}
	return e.InWall(pos, r.mode)
}

// Reassign moves a particle at pos from element h to its neighbour when its
// progress left [0, 1]. It reports false when the neighbour does not exist.
func (r *Ring) Reassign(h Handle, pos dynamo.Vector3D) (Handle, bool) {
	e := r.At(h)
	if e == nil {
		return NoElement, false
	}
	p := e.Progress(pos, r.mode)
	switch {
	case p < 0:
		if prev := r.prev[h]; prev.Valid() {
			return prev, true
		}
		return h, false
	case p > 1:
		if next := r.next[h]; next.Valid() {
			return next, true
		}
		return h, false
	default:
		return h, true
	}
}

// Admit returns the first element whose span and bore contain pos.
func (r *Ring) Admit(pos dynamo.Vector3D) (Handle, error) {
	if len(r.elems) == 0 {
		return NoElement, dynamo.ErrNoElements
	}
	for i := range r.elems {
		if r.elems[i].Contains(pos, r.mode) {
			return Handle(i), nil
		}
	}
	return NoElement, fmt.Errorf("%w: %v", dynamo.ErrNotInAccelerator, pos)
}

// Progress returns the clockwise angle between pos and the first entry,
// around the origin, normalized to [0, 1).
func (r *Ring) Progress(pos dynamo.Vector3D) float64 {
	if len(r.elems) == 0 {
		return 0
	}
	first := r.elems[0].posIn.Horizontal()
	cross := dynamo.TripleProduct(dynamo.UnitZ, first, pos)
	theta := math.Atan2(-cross, first.Dot(pos.Horizontal()))
	if theta < 0 {
		theta += 2 * math.Pi
	}
	p := theta / (2 * math.Pi)
	if p >= 1 {
		return 0
	}
	return p
}

func (r *Ring) locate(progress float64) (*Element, float64, error) {
	if len(r.elems) == 0 {
		return nil, 0, dynamo.ErrNoElements
	}
	if progress < 0 || progress > 1 || math.IsNaN(progress) {
		return nil, 0, fmt.Errorf("%w: ring progress %g", dynamo.ErrParameterBounds, progress)
	}

	target := progress * r.length
	acc := 0.0
	last := len(r.elems) - 1
	for i := range r.elems {
		e := &r.elems[i]
		if target <= acc+e.length || i == last {
			return e, (target - acc) / e.length, nil
		}
		acc += e.length
	}
	return nil, 0, dynamo.ErrNoElements
}

// PosAtProgress returns the ideal position at a global progress in [0, 1].
func (r *Ring) PosAtProgress(progress float64) (dynamo.Vector3D, error) {
	e, local, err := r.locate(progress)
	if err != nil {
		return dynamo.Zero, err
	}
	return e.PosAtProgress(local), nil
}

// VelAtProgress returns the ideal unit velocity at a global progress in [0, 1].
func (r *Ring) VelAtProgress(progress float64, clockwise bool) (dynamo.Vector3D, error) {
	e, local, err := r.locate(progress)
	if err != nil {
		return dynamo.Zero, err
	}
	return e.VelAtProgress(local, clockwise), nil
}

func (r *Ring) String() string {
	var sb strings.Builder
	state := "open"
	if r.closed {
		state = "closed"
	}
	fmt.Fprintf(&sb, "ring %s elements=%d length=%.6g mode=%s\n", state, len(r.elems), r.length, r.mode)
	for i := range r.elems {
		fmt.Fprintf(&sb, "  [%3d] prev=%3d next=%3d %s\n", i, r.prev[i], r.next[i], r.elems[i].String())
	}
	return sb.String()
}
