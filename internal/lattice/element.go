package lattice

import (
	"fmt"
	"math"

	"github.com/san-kum/accelsim/internal/dynamo"
)

type Kind int

const (
	Straight Kind = iota
	Dipole
	Quadrupole
	Frodo
)

func (k Kind) String() string {
	switch k {
	case Straight:
		return "straight"
	case Dipole:
		return "dipole"
	case Quadrupole:
		return "quadrupole"
	case Frodo:
		return "frodo"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Element is one fixed segment of the lattice. The zero value is not usable;
// build elements with NewStraight, NewDipole, NewQuadrupole or NewFrodo.
type Element struct {
	kind   Kind
	posIn  dynamo.Vector3D
	posOut dynamo.Vector3D
	radius float64

	// straight axis, used by every kind except Dipole
	dir    dynamo.Vector3D
	normal dynamo.Vector3D
	length float64

	// field intensity of Quadrupole and Frodo
	gradient float64

	arc  *arc
	cell *cell
}

type arc struct {
	curvature float64
	field     float64
	bend      float64
	center    dynamo.Vector3D
	angleIn   float64
	angleOut  float64
	total     float64
}

type cell struct {
	quadLength  float64
	driftLength float64
	parts       []Element
	starts      []float64
}

func newBase(kind Kind, posIn, posOut dynamo.Vector3D, radius float64) (Element, error) {
	e := Element{kind: kind, posIn: posIn, posOut: posOut, radius: radius}
	if err := checkOrientation(posIn, posOut, radius); err != nil {
		return Element{}, &dynamo.GeometryError{Element: kind.String(), PosIn: posIn, PosOut: posOut, Wrapped: err}
	}

	d := posOut.Sub(posIn)
	e.length = d.Norm()
	e.dir, _ = d.Normalize()
	e.normal, _ = dynamo.UnitZ.Cross(d).Normalize()
	return e, nil
}

func checkOrientation(posIn, posOut dynamo.Vector3D, radius float64) error {
	if radius <= 0 || math.IsNaN(radius) {
		return dynamo.ErrParameterBounds
	}
	scale := posIn.Horizontal().Norm() * posOut.Horizontal().Norm()
	turn := dynamo.TripleProduct(dynamo.UnitZ, posIn, posOut)
	if scale < dynamo.Epsilon || math.Abs(turn) <= dynamo.Epsilon*scale {
		return dynamo.ErrCollinear
	}
	if turn > 0 {
		return dynamo.ErrWrongDirection
	}
	return nil
}

func NewStraight(posIn, posOut dynamo.Vector3D, radius float64) (Element, error) {
	return newBase(Straight, posIn, posOut, radius)
}

// NewQuadrupole builds a quadrupole with field intensity gradient (T/m).
// A positive gradient focuses positive charges horizontally.
func NewQuadrupole(posIn, posOut dynamo.Vector3D, radius, gradient float64) (Element, error) {
	e, err := newBase(Quadrupole, posIn, posOut, radius)
	if err != nil {
		return Element{}, err
	}
	e.gradient = gradient
	return e, nil
}

// NewDipole builds a bending magnet. Positive curvature bends clockwise from
// entry to exit; field is the vertical field strength in tesla.
func NewDipole(posIn, posOut dynamo.Vector3D, radius, curvature, field float64) (Element, error) {
	e, err := newBase(Dipole, posIn, posOut, radius)
	if err != nil {
		return Element{}, err
	}
	a, err := newArc(posIn, posOut, curvature, field)
	if err != nil {
		return Element{}, &dynamo.GeometryError{Element: Dipole.String(), PosIn: posIn, PosOut: posOut, Wrapped: err}
	}
	e.arc = a
	e.length = a.bend * math.Abs(a.total)
	return e, nil
}

func newArc(posIn, posOut dynamo.Vector3D, curvature, field float64) (*arc, error) {
	if math.Abs(curvature) < dynamo.Epsilon {
		return nil, dynamo.ErrParameterBounds
	}

	bend := 1 / math.Abs(curvature)
	chord := posOut.Sub(posIn).Horizontal()
	half := chord.Norm() / 2
	if half > bend*(1+dynamo.Tolerance) {
		return nil, dynamo.ErrParameterBounds
	}

	right, err := chord.Cross(dynamo.UnitZ).Normalize()
	if err != nil {
		return nil, err
	}
	offset := math.Sqrt(math.Max(0, bend*bend-half*half))
	side := 1.0
	if curvature < 0 {
		side = -1
	}

	mid := posIn.Add(posOut).Scale(0.5)
	mid.Z = posIn.Z
	center := mid.Add(right.Scale(side * offset))

	a := &arc{
		curvature: curvature,
		field:     field,
		bend:      bend,
		center:    center,
		angleIn:   azimuth(posIn.Sub(center)),
		angleOut:  azimuth(posOut.Sub(center)),
	}

	if curvature > 0 {
		a.total = -wrapPositive(a.angleIn - a.angleOut)
	} else {
		a.total = wrapPositive(a.angleOut - a.angleIn)
	}
	return a, nil
}

// NewFrodo builds a FODO cell: a focalizer quadrupole of quadLength, a drift of
// driftLength, a defocalizer quadrupole of quadLength and a trailing drift
// covering the rest of the span.
func NewFrodo(posIn, posOut dynamo.Vector3D, radius, gradient, quadLength, driftLength float64) (Element, error) {
	e, err := newBase(Frodo, posIn, posOut, radius)
	if err != nil {
		return Element{}, err
	}
	e.gradient = gradient

	if quadLength <= 0 || driftLength < 0 || 2*quadLength+driftLength > e.length+dynamo.Tolerance {
		return Element{}, &dynamo.GeometryError{Element: Frodo.String(), PosIn: posIn, PosOut: posOut, Wrapped: dynamo.ErrParameterBounds}
	}

	c := &cell{quadLength: quadLength, driftLength: driftLength}
	at := func(dist float64) dynamo.Vector3D { return posIn.Add(e.dir.Scale(dist)) }

	type stage struct {
		kind     Kind
		from, to float64
		gradient float64
	}
	stages := []stage{
		{Quadrupole, 0, quadLength, gradient},
		{Straight, quadLength, quadLength + driftLength, 0},
		{Quadrupole, quadLength + driftLength, 2*quadLength + driftLength, -gradient},
		{Straight, 2*quadLength + driftLength, e.length, 0},
	}

	for _, s := range stages {
		if s.to-s.from < dynamo.Tolerance {
			continue
		}
		in, out := at(s.from), at(s.to)
		if s.to >= e.length-dynamo.Tolerance {
			out = posOut
		}
		var part Element
		if s.kind == Quadrupole {
			part, err = NewQuadrupole(in, out, radius, s.gradient)
		} else {
			part, err = NewStraight(in, out, radius)
		}
		if err != nil {
			return Element{}, err
		}
		c.parts = append(c.parts, part)
		c.starts = append(c.starts, s.from)
	}

	e.cell = c
	return e, nil
}

// Clone returns an independent copy of e.
func (e *Element) Clone() Element {
	c := *e
	if e.arc != nil {
		a := *e.arc
		c.arc = &a
	}
	if e.cell != nil {
		cl := *e.cell
		cl.parts = make([]Element, len(e.cell.parts))
		for i, p := range e.cell.parts {
			cl.parts[i] = p.Clone()
		}
		cl.starts = append([]float64(nil), e.cell.starts...)
		c.cell = &cl
	}
	return c
}

func (e *Element) Kind() Kind              { return e.kind }
func (e *Element) PosIn() dynamo.Vector3D  { return e.posIn }
func (e *Element) PosOut() dynamo.Vector3D { return e.posOut }
func (e *Element) Radius() float64         { return e.radius }
func (e *Element) Gradient() float64       { return e.gradient }
func (e *Element) Length() float64         { return e.length }
func (e *Element) IsDipole() bool          { return e.arc != nil }
func (e *Element) Parts() []Element        { return partsOf(e) }
func (e *Element) Center() dynamo.Vector3D { return arcOf(e).center }
func (e *Element) Curvature() float64      { return arcOf(e).curvature }
func (e *Element) FieldStrength() float64  { return arcOf(e).field }
func (e *Element) BendRadius() float64     { return arcOf(e).bend }
func (e *Element) InputAngle() float64     { return arcOf(e).angleIn }
func (e *Element) OutputAngle() float64    { return arcOf(e).angleOut }
func (e *Element) TotalAngle() float64     { return arcOf(e).total }

func arcOf(e *Element) arc {
	if e.arc == nil {
		return arc{}
	}
	return *e.arc
}

func partsOf(e *Element) []Element {
	if e.cell == nil {
		return nil
	}
	return e.cell.parts
}

func azimuth(v dynamo.Vector3D) float64 {
	return math.Atan2(v.Y, v.X)
}

// wrapPositive maps an angle into (0, 2π].
func wrapPositive(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a
}
