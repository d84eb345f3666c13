package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/metrics"
	"github.com/san-kum/accelsim/internal/particle"
	"github.com/san-kum/accelsim/internal/sim"
)

// Layout is a sequence of touching elements and whether the last one feeds
// back into the first.
type Layout struct {
	Elements []lattice.Element
	Closed   bool
}

type LatticeBuilder func(lp config.LatticeConfig) (Layout, error)

type Registry struct {
	lattices map[string]LatticeBuilder
}

func NewRegistry() *Registry {
	r := &Registry{lattices: make(map[string]LatticeBuilder)}
	r.lattices["fodo-ring"] = fodoRing
	r.lattices["drift"] = drift
	return r
}

func (r *Registry) Register(name string, fn LatticeBuilder) {
	r.lattices[name] = fn
}

func (r *Registry) GetLattice(name string, lp config.LatticeConfig) (Layout, error) {
	fn, ok := r.lattices[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown lattice: %s", name)
	}
	return fn(lp)
}

func (r *Registry) ListLattices() []string {
	names := make([]string, 0, len(r.lattices))
	for name := range r.lattices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics() []sim.Metric {
	return metrics.Default()
}

// DesignSpeed is the speed of a particle with Lorentz factor gamma.
func DesignSpeed(gamma float64) float64 {
	return dynamo.SpeedOfLight * math.Sqrt(1-1/(gamma*gamma))
}

// DesignField is the dipole field that holds a design proton on the bend
// radius, multiplied by the lattice field scale.
func DesignField(lp config.LatticeConfig) float64 {
	v := DesignSpeed(lp.DesignGamma)
	b := lp.DesignGamma * particle.Proton.RestMass() * v / (dynamo.ElementaryCharge * lp.BendRadius)
	return lp.FieldScale * b
}

// RevolutionPeriod is the time a design proton needs to go once around the
// fodo-ring layout.
func RevolutionPeriod(lp config.LatticeConfig) float64 {
	length := 2*math.Pi*lp.BendRadius + 2*lp.StraightLength
	return length / DesignSpeed(lp.DesignGamma)
}

type builder struct {
	elems []lattice.Element
	err   error
}

func (b *builder) add(e lattice.Element, err error) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = fmt.Errorf("element %d: %w", len(b.elems), err)
		return
	}
	b.elems = append(b.elems, e)
}

// fodoRing is a clockwise racetrack: two half-circle dipoles joined by two
// FODO cells along x = ±R.
func fodoRing(lp config.LatticeConfig) (Layout, error) {
	r, h := lp.BendRadius, lp.StraightLength/2
	field := DesignField(lp)
	v := dynamo.NewVector3D

	var b builder
	b.add(lattice.NewDipole(v(-r, h, 0), v(r, h, 0), lp.BoreRadius, 1/r, field))
	b.add(lattice.NewFrodo(v(r, h, 0), v(r, -h, 0), lp.BoreRadius, lp.QuadGradient, lp.QuadLength, lp.DriftLength))
	b.add(lattice.NewDipole(v(r, -h, 0), v(-r, -h, 0), lp.BoreRadius, 1/r, field))
	b.add(lattice.NewFrodo(v(-r, -h, 0), v(-r, h, 0), lp.BoreRadius, lp.QuadGradient, lp.QuadLength, lp.DriftLength))
	if b.err != nil {
		return Layout{}, b.err
	}
	return Layout{Elements: b.elems, Closed: true}, nil
}

// drift is a single open straight pipe along y = R.
func drift(lp config.LatticeConfig) (Layout, error) {
	h := lp.StraightLength / 2
	e, err := lattice.NewStraight(
		dynamo.NewVector3D(-h, lp.BendRadius, 0),
		dynamo.NewVector3D(h, lp.BendRadius, 0),
		lp.BoreRadius,
	)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Elements: []lattice.Element{e}}, nil
}
