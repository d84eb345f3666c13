package dynamo

import (
	"fmt"
	"math"
)

const (
	// Epsilon guards divisors, norms and timesteps.
	Epsilon = 1e-12
	// Tolerance is the absolute tolerance of ApproxEqual.
	Tolerance = 1e-9
)

// Vector3D is a 3D vector with value semantics.
type Vector3D struct {
	X, Y, Z float64
}

var (
	Zero  = Vector3D{}
	UnitX = Vector3D{X: 1}
	UnitY = Vector3D{Y: 1}
	UnitZ = Vector3D{Z: 1}
)

func NewVector3D(x, y, z float64) Vector3D {
	return Vector3D{X: x, Y: y, Z: z}
}

func (v Vector3D) Add(o Vector3D) Vector3D {
	return Vector3D{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vector3D) Sub(o Vector3D) Vector3D {
	return Vector3D{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vector3D) Scale(s float64) Vector3D {
	return Vector3D{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vector3D) Neg() Vector3D {
	return Vector3D{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Div divides every component by s.
func (v Vector3D) Div(s float64) (Vector3D, error) {
	if math.Abs(s) < Epsilon {
		return Zero, ErrDivideByZero
	}
	return v.Scale(1 / s), nil
}

// Cross returns the right-handed cross product v × o.
func (v Vector3D) Cross(o Vector3D) Vector3D {
	return Vector3D{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vector3D) Dot(o Vector3D) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vector3D) Norm2() float64 {
	return v.Dot(v)
}

func (v Vector3D) Norm() float64 {
	return math.Sqrt(v.Norm2())
}

// Normalize returns the unit vector along v.
func (v Vector3D) Normalize() (Vector3D, error) {
	n := v.Norm()
	if n < Epsilon {
		return Zero, ErrDivideByZero
	}
	return v.Scale(1 / n), nil
}

// Horizontal drops the vertical component.
func (v Vector3D) Horizontal() Vector3D {
	return Vector3D{X: v.X, Y: v.Y}
}

// Rotate rotates v about axis by alpha radians (Rodrigues' formula).
// The axis does not need to be normalized.
func (v Vector3D) Rotate(axis Vector3D, alpha float64) (Vector3D, error) {
	k, err := axis.Normalize()
	if err != nil {
		return Zero, err
	}
	sin, cos := math.Sincos(alpha)
	// v cos + (k × v) sin + k (k·v)(1 - cos)
	return v.Scale(cos).
		Add(k.Cross(v).Scale(sin)).
		Add(k.Scale(k.Dot(v) * (1 - cos))), nil
}

// ApproxEqual reports whether every component differs by less than Tolerance.
func (v Vector3D) ApproxEqual(o Vector3D) bool {
	return math.Abs(v.X-o.X) < Tolerance &&
		math.Abs(v.Y-o.Y) < Tolerance &&
		math.Abs(v.Z-o.Z) < Tolerance
}

func (v Vector3D) IsValid() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vector3D) String() string {
	return fmt.Sprintf("(%+.6e, %+.6e, %+.6e)", v.X, v.Y, v.Z)
}

func (v *Vector3D) AddAssign(o Vector3D) {
	v.X += o.X
	v.Y += o.Y
	v.Z += o.Z
}

func (v *Vector3D) SubAssign(o Vector3D) {
	v.X -= o.X
	v.Y -= o.Y
	v.Z -= o.Z
}

func (v *Vector3D) ScaleAssign(s float64) {
	v.X *= s
	v.Y *= s
	v.Z *= s
}

// CrossAssign replaces v with v × o.
func (v *Vector3D) CrossAssign(o Vector3D) {
	*v = v.Cross(o)
}

// NormalizeInPlace scales v to unit length. v is left untouched on error.
func (v *Vector3D) NormalizeInPlace() error {
	u, err := v.Normalize()
	if err != nil {
		return err
	}
	*v = u
	return nil
}

// TripleProduct returns a · (b × c).
func TripleProduct(a, b, c Vector3D) float64 {
	return a.Dot(b.Cross(c))
}
