package lattice

import (
	"fmt"
	"math"

	"github.com/san-kum/accelsim/internal/dynamo"
)

// Field returns the magnetic field (tesla) at pos.
func (e *Element) Field(pos dynamo.Vector3D, mode dynamo.ProgressMode) dynamo.Vector3D {
	switch e.kind {
	case Dipole:
		return dynamo.UnitZ.Scale(e.arc.field)
	case Quadrupole:
		x, z := e.Transverse(pos, mode)
		return e.normal.Scale(e.gradient * z).Add(dynamo.UnitZ.Scale(e.gradient * x))
	case Frodo:
		return e.part(pos, mode).Field(pos, mode)
	default:
		return dynamo.Zero
	}
}

// NormalDirection returns the horizontal unit vector perpendicular to the
// trajectory, pointing out of the ring.
func (e *Element) NormalDirection(pos dynamo.Vector3D) dynamo.Vector3D {
	if e.kind != Dipole {
		return e.normal
	}
	n, err := pos.Sub(e.arc.center).Horizontal().Normalize()
	if err != nil {
		return dynamo.Zero
	}
	if e.arc.curvature < 0 {
		return n.Neg()
	}
	return n
}

// Progress locates pos along the element: 0 at entry, 1 at exit, <0 before
// and >1 after. In Approximate mode only the sentinel values ProgressBefore,
// ProgressEntry, ProgressInside and ProgressAfter are returned.
func (e *Element) Progress(pos dynamo.Vector3D, mode dynamo.ProgressMode) float64 {
	if mode == dynamo.Approximate {
		return e.approxProgress(pos)
	}
	switch e.kind {
	case Dipole:
		return e.arcProgress(pos)
	case Frodo:
		i := e.partAt(pos, mode)
		p := &e.cell.parts[i]
		return (e.cell.starts[i] + p.lineProgress(pos)*p.length) / e.length
	default:
		return e.lineProgress(pos)
	}
}

func (e *Element) lineProgress(pos dynamo.Vector3D) float64 {
	return pos.Sub(e.posIn).Dot(e.dir) / e.length
}

func (e *Element) arcProgress(pos dynamo.Vector3D) float64 {
	a := e.arc
	span := math.Abs(a.total)
	phi := azimuth(pos.Sub(a.center))

	var delta float64
	if a.total < 0 {
		delta = math.Mod(a.angleIn-phi, 2*math.Pi)
	} else {
		delta = math.Mod(phi-a.angleIn, 2*math.Pi)
	}
	if delta < 0 {
		delta += 2 * math.Pi
	}
	// the unused part of the circle is split evenly before and after the arc
	if delta > span+(2*math.Pi-span)/2 {
		delta -= 2 * math.Pi
	}
	return delta / span
}

func (e *Element) approxProgress(pos dynamo.Vector3D) float64 {
	fromIn := dynamo.TripleProduct(dynamo.UnitZ, e.posIn, pos)
	toOut := dynamo.TripleProduct(dynamo.UnitZ, pos, e.posOut)
	scale := e.posIn.Horizontal().Norm() * pos.Horizontal().Norm()

	onEntryRay := math.Abs(fromIn) <= dynamo.Tolerance*scale && e.posIn.Horizontal().Dot(pos) > 0
	switch {
	case onEntryRay:
		return dynamo.ProgressEntry
	case fromIn < 0 && toOut < 0:
		return dynamo.ProgressInside
	case fromIn < 0:
		return dynamo.ProgressAfter
	case toOut < 0:
		return dynamo.ProgressBefore
	}

	in, _ := e.posIn.Horizontal().Normalize()
	out, _ := e.posOut.Horizontal().Normalize()
	if pos.Dot(in) >= pos.Dot(out) {
		return dynamo.ProgressBefore
	}
	return dynamo.ProgressAfter
}

// PosAtProgress maps a local progress back to a point on the ideal trajectory.
func (e *Element) PosAtProgress(progress float64) dynamo.Vector3D {
	if e.kind != Dipole {
		return e.posIn.Add(e.dir.Scale(progress * e.length))
	}
	a := e.arc
	sin, cos := math.Sincos(a.angleIn + progress*a.total)
	return dynamo.Vector3D{
		X: a.center.X + a.bend*cos,
		Y: a.center.Y + a.bend*sin,
		Z: e.posIn.Z + progress*(e.posOut.Z-e.posIn.Z),
	}
}

// VelAtProgress returns the unit tangent of the ideal trajectory at progress,
// reversed when the beam does not travel clockwise.
func (e *Element) VelAtProgress(progress float64, clockwise bool) dynamo.Vector3D {
	t := e.dir
	if e.kind == Dipole {
		a := e.arc
		sin, cos := math.Sincos(a.angleIn + progress*a.total)
		d := dynamo.Vector3D{
			X: -a.bend * a.total * sin,
			Y: a.bend * a.total * cos,
			Z: e.posOut.Z - e.posIn.Z,
		}
		t, _ = d.Normalize()
	}
	if !clockwise {
		return t.Neg()
	}
	return t
}

// Transverse returns the radial (along NormalDirection) and vertical offsets
// of pos from the element's ideal trajectory.
func (e *Element) Transverse(pos dynamo.Vector3D, mode dynamo.ProgressMode) (radial, vertical float64) {
	switch e.kind {
	case Dipole:
		a := e.arc
		p := e.arcProgress(pos)
		rho := pos.Sub(a.center).Horizontal().Norm()
		radial = rho - a.bend
		if a.curvature < 0 {
			radial = -radial
		}
		return radial, pos.Z - (e.posIn.Z + p*(e.posOut.Z-e.posIn.Z))
	case Frodo:
		return e.part(pos, mode).Transverse(pos, mode)
	default:
		off := pos.Sub(e.PosAtProgress(e.lineProgress(pos)))
		return off.Dot(e.normal), off.Z
	}
}

// InWall reports whether pos lies outside the bore.
func (e *Element) InWall(pos dynamo.Vector3D, mode dynamo.ProgressMode) bool {
	if e.kind == Frodo {
		return e.part(pos, mode).InWall(pos, mode)
	}
	x, z := e.Transverse(pos, mode)
	return x*x+z*z > e.radius*e.radius
}

// Contains reports whether pos is within the element's span and bore.
// Endpoints are accepted within Tolerance.
func (e *Element) Contains(pos dynamo.Vector3D, mode dynamo.ProgressMode) bool {
	p := e.Progress(pos, mode)
	return p >= -dynamo.Tolerance && p <= 1+dynamo.Tolerance && !e.InWall(pos, mode)
}

// part returns the cell sub-element holding pos.
func (e *Element) part(pos dynamo.Vector3D, mode dynamo.ProgressMode) *Element {
	return &e.cell.parts[e.partAt(pos, mode)]
}

func (e *Element) partAt(pos dynamo.Vector3D, mode dynamo.ProgressMode) int {
	var dist float64
	if mode == dynamo.Approximate {
		dist = pos.Sub(e.posIn).Norm()
	} else {
		dist = e.lineProgress(pos) * e.length
	}
	i := len(e.cell.starts) - 1
	for i > 0 && dist < e.cell.starts[i] {
		i--
	}
	return i
}

func (e *Element) String() string {
	base := fmt.Sprintf("%-10s in=%v out=%v bore=%.4g len=%.6g", e.kind, e.posIn, e.posOut, e.radius, e.length)
	switch e.kind {
	case Dipole:
		a := e.arc
		return fmt.Sprintf("%s curv=%+.6g B=%+.6g center=%v angle=[%+.4f %+.4f %+.4f]",
			base, a.curvature, a.field, a.center, a.angleIn, a.angleOut, a.total)
	case Quadrupole:
		return fmt.Sprintf("%s b=%+.6g", base, e.gradient)
	case Frodo:
		return fmt.Sprintf("%s b=%+.6g quad=%.4g drift=%.4g parts=%d",
			base, e.gradient, e.cell.quadLength, e.cell.driftLength, len(e.cell.parts))
	default:
		return base
	}
}
