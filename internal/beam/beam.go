package beam

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

// Mode selects how a beam is expanded from its seed particle.
type Mode int

const (
	// FromParticle records the seed's own time-evolved trajectory.
	FromParticle Mode = iota
	// Spread places samples evenly along the ideal ring trajectory.
	Spread
)

func (m Mode) String() string {
	if m == Spread {
		return "spread"
	}
	return "from-particle"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "from-particle", "particle":
		return FromParticle, nil
	case "spread":
		return Spread, nil
	default:
		return FromParticle, fmt.Errorf("%w: unknown beam mode %q", dynamo.ErrParameterBounds, s)
	}
}

// minChunk is the smallest per-goroutine slice of particles worth a goroutine.
const minChunk = 64

// Beam is an ensemble of macroparticles expanded from one default particle.
type Beam struct {
	ring      *lattice.Ring
	def       *particle.Particle
	count     int
	scale     int
	particles []*particle.Particle
}

func validate(ring *lattice.Ring, seed *particle.Particle, count, lambda int) (lattice.Handle, error) {
	if count < 1 {
		return lattice.NoElement, dynamo.ErrEmptyBeam
	}
	if lambda < 1 {
		return lattice.NoElement, dynamo.ErrScaleFactor
	}
	return ring.Admit(seed.Position())
}

// samples returns how many macroparticles stand for count physical ones.
func samples(count, lambda int) int {
	return max(1, count/lambda)
}

// NewFromParticle steps a copy of seed through the ring by dt, recording a
// scaled copy before every step until count/lambda samples exist.
func NewFromParticle(ring *lattice.Ring, seed *particle.Particle, count, lambda int, dt float64) (*Beam, error) {
	h, err := validate(ring, seed, count, lambda)
	if err != nil {
		return nil, err
	}

	b := newBeam(ring, seed, count, lambda)
	walker := seed.Copy()
	walker.SetElement(h)
	n := samples(count, lambda)
	for i := 0; i < n; i++ {
		next, ok := ring.Reassign(walker.Element(), walker.Position())
		if !ok {
			return nil, fmt.Errorf("seed left the ring after %d samples: %w", i, dynamo.ErrNotInAccelerator)
		}
		walker.SetElement(next)
		b.particles = append(b.particles, walker.ScaledCopy(lambda))
		walker.Step(dt, ring)
	}
	return b, nil
}

// NewSpread places count/lambda macroparticles at evenly spaced global ring
// progress values, moving along the ideal trajectory in the seed's sense of
// rotation.
func NewSpread(ring *lattice.Ring, seed *particle.Particle, count, lambda int) (*Beam, error) {
	if _, err := validate(ring, seed, count, lambda); err != nil {
		return nil, err
	}

	pos := seed.Position()
	clockwise := dynamo.TripleProduct(dynamo.UnitZ, pos, pos.Add(seed.Velocity())) < 0

	n := samples(count, lambda)
	progress := floats.Span(make([]float64, n+1), 0, 1)[:n]

	b := newBeam(ring, seed, count, lambda)
	for _, p := range progress {
		at, err := ring.PosAtProgress(p)
		if err != nil {
			return nil, err
		}
		dir, err := ring.VelAtProgress(p, clockwise)
		if err != nil {
			return nil, err
		}
		placed, err := seed.Placed(at, dir)
		if err != nil {
			return nil, err
		}
		h, err := ring.Admit(at)
		if err != nil {
			return nil, fmt.Errorf("spread sample at progress %.4f: %w", p, err)
		}
		placed.SetElement(h)
		b.particles = append(b.particles, placed.ScaledCopy(lambda))
	}
	return b, nil
}

// NewSingle wraps one admitted particle into a beam of count 1.
func NewSingle(ring *lattice.Ring, p *particle.Particle) (*Beam, error) {
	h, err := validate(ring, p, 1, 1)
	if err != nil {
		return nil, err
	}
	b := newBeam(ring, p, 1, 1)
	c := p.Copy()
	c.SetElement(h)
	b.particles = append(b.particles, c)
	return b, nil
}

func newBeam(ring *lattice.Ring, seed *particle.Particle, count, lambda int) *Beam {
	return &Beam{
		ring:      ring,
		def:       seed.Copy(),
		count:     count,
		scale:     lambda,
		particles: make([]*particle.Particle, 0, samples(count, lambda)),
	}
}

func (b *Beam) Len() int                        { return len(b.particles) }
func (b *Beam) Particles() []*particle.Particle { return b.particles }
func (b *Beam) Default() *particle.Particle     { return b.def }
func (b *Beam) Count() int                      { return b.count }
func (b *Beam) Scale() int                      { return b.scale }

// Step integrates every particle by dt on up to workers goroutines.
func (b *Beam) Step(dt float64, workers int) {
	dynamo.ParallelFor(len(b.particles), workers, minChunk, func(i int) {
		b.particles[i].Step(dt, b.ring)
	})
}

// Reassign moves particles to neighbouring elements and flags those that
// left an open chain. It returns the number flagged this call.
func (b *Beam) Reassign() int {
	lost := 0
	for _, p := range b.particles {
		if p.Outside() {
			continue
		}
		h, ok := b.ring.Reassign(p.Element(), p.Position())
		if !ok {
			p.MarkOutside()
			lost++
			continue
		}
		p.SetElement(h)
	}
	return lost
}

// IsDead reports whether p struck the wall of its element or left the ring.
func (b *Beam) IsDead(p *particle.Particle) bool {
	if p.Outside() || !p.Element().Valid() {
		return true
	}
	return b.ring.InWall(p.Element(), p.Position())
}

// ClearDeadParticles removes dead particles by swapping with the last
// and shrinking. Order is not preserved. It returns the number removed.
func (b *Beam) ClearDeadParticles() int {
	removed := 0
	for i := 0; i < len(b.particles); {
		if !b.IsDead(b.particles[i]) {
			i++
			continue
		}
		last := len(b.particles) - 1
		b.particles[i] = b.particles[last]
		b.particles[last] = nil
		b.particles = b.particles[:last]
		removed++
	}
	return removed
}

// Axis is a transverse phase-space plane.
type Axis int

const (
	AxisR Axis = iota
	AxisZ
)

func (a Axis) String() string {
	if a == AxisZ {
		return "z"
	}
	return "r"
}

// PhaseStats holds the second moments of one transverse plane and the
// coefficients of its phase-space ellipse.
type PhaseStats struct {
	R2, V2, RV float64
	Emittance  float64
	A11        float64
	A22        float64
	A12        float64
}

// Coordinates returns the transverse offset and offset velocity of every
// live particle on axis.
func (b *Beam) Coordinates(axis Axis) (offset, velocity []float64) {
	offset = make([]float64, 0, len(b.particles))
	velocity = make([]float64, 0, len(b.particles))
	for _, p := range b.particles {
		e := b.ring.At(p.Element())
		if e == nil || p.Outside() {
			continue
		}
		pos, vel := p.Position(), p.Velocity()
		radial, vertical := e.Transverse(pos, b.ring.Mode())
		if axis == AxisZ {
			offset = append(offset, vertical)
			velocity = append(velocity, vel.Z)
			continue
		}
		offset = append(offset, radial)
		velocity = append(velocity, e.NormalDirection(pos).Dot(vel))
	}
	return offset, velocity
}

// Emittance returns the raw second moments of axis and the emittance
// sqrt(<r²><v²> - <rv>²), clamped to zero when the determinant is rounding
// noise relative to <r²><v²>.
func (b *Beam) Emittance(axis Axis) PhaseStats {
	r, vr := b.Coordinates(axis)
	if len(r) == 0 {
		return PhaseStats{}
	}

	n := float64(len(r))
	s := PhaseStats{
		R2: floats.Dot(r, r) / n,
		V2: floats.Dot(vr, vr) / n,
		RV: floats.Dot(r, vr) / n,
	}
	rad := s.R2*s.V2 - s.RV*s.RV
	if rad <= dynamo.Epsilon*s.R2*s.V2 {
		return s
	}
	s.Emittance = math.Sqrt(rad)
	s.A11 = s.V2 / s.Emittance
	s.A22 = s.R2 / s.Emittance
	s.A12 = -s.RV / s.Emittance
	return s
}

// Centroid returns the mean radial and vertical offsets of live particles.
func (b *Beam) Centroid() (radial, vertical float64) {
	r, _ := b.Coordinates(AxisR)
	z, _ := b.Coordinates(AxisZ)
	if len(r) == 0 {
		return 0, 0
	}
	return floats.Sum(r) / float64(len(r)), floats.Sum(z) / float64(len(z))
}

func (b *Beam) String() string {
	var sb strings.Builder
	er, ez := b.Emittance(AxisR), b.Emittance(AxisZ)
	fmt.Fprintf(&sb, "beam %s count=%d scale=%d live=%d eps_r=%.4e eps_z=%.4e\n",
		b.def.Species(), b.count, b.scale, len(b.particles), er.Emittance, ez.Emittance)
	for i, p := range b.particles {
		fmt.Fprintf(&sb, "  [%4d] %s\n", i, p)
	}
	return sb.String()
}
