package particle

import (
	"fmt"
	"math"

	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
)

type Species int

const (
	Generic Species = iota
	Proton
	Antiproton
	Electron
)

func (s Species) String() string {
	switch s {
	case Proton:
		return "proton"
	case Antiproton:
		return "antiproton"
	case Electron:
		return "electron"
	default:
		return "generic"
	}
}

// ParseSpecies maps a config name to a Species.
func ParseSpecies(name string) (Species, error) {
	switch name {
	case "proton", "p":
		return Proton, nil
	case "antiproton", "pbar":
		return Antiproton, nil
	case "electron", "e":
		return Electron, nil
	default:
		return Generic, fmt.Errorf("%w: unknown species %q", dynamo.ErrParameterBounds, name)
	}
}

// Lattice supplies the field of the element a particle occupies.
type Lattice interface {
	Field(h lattice.Handle, pos dynamo.Vector3D) dynamo.Vector3D
}

// Particle is a single relativistic charged body.
//
// Momentum is stored as mass times velocity, so Velocity is momentum/mass and
// the relativistic factor enters through the integrator.
type Particle struct {
	species  Species
	mass     float64
	charge   int
	pos      dynamo.Vector3D
	momentum dynamo.Vector3D
	force    dynamo.Vector3D
	element  lattice.Handle
	outside  bool
}

// New creates a particle with total energy (joules) moving along direction.
// charge is a multiple of the elementary charge.
func New(pos dynamo.Vector3D, energy float64, direction dynamo.Vector3D, mass float64, charge int) (*Particle, error) {
	if mass <= 0 || math.IsNaN(mass) {
		return nil, fmt.Errorf("%w: mass %g", dynamo.ErrParameterBounds, mass)
	}
	gamma := energy / (mass * dynamo.SpeedOfLight * dynamo.SpeedOfLight)
	if !(gamma >= 1) {
		return nil, fmt.Errorf("%w: energy %g below rest energy", dynamo.ErrParameterBounds, energy)
	}
	dir, err := direction.Normalize()
	if err != nil {
		return nil, fmt.Errorf("particle direction: %w", err)
	}

	speed := dynamo.SpeedOfLight * math.Sqrt(1-1/(gamma*gamma))
	return &Particle{
		mass:     mass,
		charge:   charge,
		pos:      pos,
		momentum: dir.Scale(mass * speed),
		element:  lattice.NoElement,
	}, nil
}

// NewFromVelocity creates a particle from its velocity in m/s.
func NewFromVelocity(pos, velocity dynamo.Vector3D, mass float64, charge int) (*Particle, error) {
	if mass <= 0 || math.IsNaN(mass) {
		return nil, fmt.Errorf("%w: mass %g", dynamo.ErrParameterBounds, mass)
	}
	if velocity.Norm() >= dynamo.SpeedOfLight {
		return nil, fmt.Errorf("%w: speed %g not below c", dynamo.ErrParameterBounds, velocity.Norm())
	}
	return &Particle{
		mass:     mass,
		charge:   charge,
		pos:      pos,
		momentum: velocity.Scale(mass),
		element:  lattice.NoElement,
	}, nil
}

func NewProton(pos dynamo.Vector3D, energy float64, direction dynamo.Vector3D) (*Particle, error) {
	return newSpecies(Proton, pos, energy, direction)
}

func NewAntiproton(pos dynamo.Vector3D, energy float64, direction dynamo.Vector3D) (*Particle, error) {
	return newSpecies(Antiproton, pos, energy, direction)
}

func NewElectron(pos dynamo.Vector3D, energy float64, direction dynamo.Vector3D) (*Particle, error) {
	return newSpecies(Electron, pos, energy, direction)
}

// NewSpecies creates a particle of a known species.
func NewSpecies(s Species, pos dynamo.Vector3D, energy float64, direction dynamo.Vector3D) (*Particle, error) {
	if s == Generic {
		return nil, fmt.Errorf("%w: generic species has no fixed mass", dynamo.ErrParameterBounds)
	}
	return newSpecies(s, pos, energy, direction)
}

func newSpecies(s Species, pos dynamo.Vector3D, energy float64, direction dynamo.Vector3D) (*Particle, error) {
	mass, charge := s.RestMass(), s.ChargeMultiple()
	p, err := New(pos, energy, direction, mass, charge)
	if err != nil {
		return nil, err
	}
	p.species = s
	return p, nil
}

// RestMass returns the mass of one physical particle of the species.
func (s Species) RestMass() float64 {
	switch s {
	case Proton, Antiproton:
		return dynamo.ProtonMass
	case Electron:
		return dynamo.ElectronMass
	default:
		return 0
	}
}

func (s Species) ChargeMultiple() int {
	switch s {
	case Proton:
		return 1
	case Antiproton, Electron:
		return -1
	default:
		return 0
	}
}

// EnergyForGamma returns the total energy of one particle of the species.
func (s Species) EnergyForGamma(gamma float64) float64 {
	return gamma * s.RestMass() * dynamo.SpeedOfLight * dynamo.SpeedOfLight
}

// Copy returns an independent particle of the same species and state.
func (p *Particle) Copy() *Particle {
	c := *p
	return &c
}

// ScaledCopy returns a macroparticle standing for lambda physical particles:
// charge and mass are multiplied by lambda, the velocity is unchanged.
func (p *Particle) ScaledCopy(lambda int) *Particle {
	c := p.Copy()
	c.mass *= float64(lambda)
	c.charge *= lambda
	c.momentum = p.momentum.Scale(float64(lambda))
	c.force = p.force.Scale(float64(lambda))
	return c
}

// Placed returns a copy moved to pos and travelling along direction at the
// same speed.
func (p *Particle) Placed(pos, direction dynamo.Vector3D) (*Particle, error) {
	dir, err := direction.Normalize()
	if err != nil {
		return nil, err
	}
	c := p.Copy()
	c.pos = pos
	c.momentum = dir.Scale(p.momentum.Norm())
	c.force = dynamo.Zero
	c.element = lattice.NoElement
	c.outside = false
	return c, nil
}

func (p *Particle) Species() Species                { return p.species }
func (p *Particle) Mass() float64                   { return p.mass }
func (p *Particle) ChargeMultiple() int             { return p.charge }
func (p *Particle) Position() dynamo.Vector3D       { return p.pos }
func (p *Particle) Momentum() dynamo.Vector3D       { return p.momentum }
func (p *Particle) Force() dynamo.Vector3D          { return p.force }
func (p *Particle) Element() lattice.Handle         { return p.element }
func (p *Particle) SetElement(h lattice.Handle)     { p.element = h }
func (p *Particle) SetPosition(pos dynamo.Vector3D) { p.pos = pos }
func (p *Particle) Outside() bool                   { return p.outside }
func (p *Particle) MarkOutside()                    { p.outside = true }
func (p *Particle) AddForce(f dynamo.Vector3D)      { p.force.AddAssign(f) }
func (p *Particle) Charge() float64                 { return float64(p.charge) * dynamo.ElementaryCharge }
func (p *Particle) Velocity() dynamo.Vector3D       { return p.momentum.Scale(1 / p.mass) }
func (p *Particle) Speed() float64                  { return p.momentum.Norm() / p.mass }
func (p *Particle) Gamma() float64                  { return dynamo.Gamma(p.Speed()) }

// Energy returns the total energy γmc² in joules.
func (p *Particle) Energy() float64 {
	return p.Gamma() * p.mass * dynamo.SpeedOfLight * dynamo.SpeedOfLight
}

// ExertLorentzForce accumulates the magnetic force of field B over dt.
//
// The raw force q(v×B) is rotated about v×F by asin(dt|F|/(2γ|p|)), the
// half-step turn of the velocity, so the Euler update follows the arc.
func (p *Particle) ExertLorentzForce(b dynamo.Vector3D, dt float64) {
	if math.Abs(dt) < dynamo.Epsilon || b.Norm() < dynamo.Epsilon {
		return
	}

	vel := p.Velocity()
	f := vel.Cross(b).Scale(p.Charge())
	pn := p.momentum.Norm()
	if pn == 0 {
		return
	}

	s := dt * f.Norm() / (2 * p.Gamma() * pn)
	alpha := math.Asin(math.Max(-1, math.Min(1, s)))
	rotated, err := f.Rotate(vel.Cross(f), alpha)
	if err != nil {
		rotated = f
	}
	p.force.AddAssign(rotated)
}

// Step integrates one timestep. When the particle occupies an element of
// lat, that element's field is applied first. Forces are cleared afterwards.
func (p *Particle) Step(dt float64, lat Lattice) {
	if math.Abs(dt) < dynamo.Epsilon {
		return
	}
	if lat != nil && p.element.Valid() {
		p.ExertLorentzForce(lat.Field(p.element, p.pos), dt)
	}

	gamma := p.Gamma()
	p.momentum.AddAssign(p.force.Scale(p.mass * dt / (gamma * p.mass)))
	p.pos.AddAssign(p.Velocity().Scale(dt))
	p.force = dynamo.Zero
}

func (p *Particle) String() string {
	return fmt.Sprintf("%-10s q=%+4d m=%.4e pos=%v vel=%v E=%.6e gamma=%.6f elem=%d",
		p.species, p.charge, p.mass, p.pos, p.Velocity(), p.Energy(), p.Gamma(), p.element)
}
