package accelerator

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

type Options struct {
	Mode dynamo.ProgressMode
	// Interactions enables the pairwise Coulomb pass.
	Interactions bool
	// InteractionThreshold gates pairs by global ring progress difference.
	InteractionThreshold float64
	// CoulombConstant defaults to dynamo.CoulombConstant when zero.
	CoulombConstant float64
	Workers         int
}

func DefaultOptions() Options {
	return Options{
		Mode:                 dynamo.Exact,
		InteractionThreshold: 1e-3,
		CoulombConstant:      dynamo.CoulombConstant,
		Workers:              1,
	}
}

// Accelerator owns a ring of elements and the beams travelling through it.
type Accelerator struct {
	opts     Options
	ring     *lattice.Ring
	beams    []*beam.Beam
	progress [][]float64
	losses   int
	steps    int
	time     float64
}

func New(opts Options) *Accelerator {
	if opts.CoulombConstant == 0 {
		opts.CoulombConstant = dynamo.CoulombConstant
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Accelerator{
		opts: opts,
		ring: lattice.NewRing(opts.Mode),
	}
}

func (a *Accelerator) Options() Options    { return a.opts }
func (a *Accelerator) Ring() *lattice.Ring { return a.ring }
func (a *Accelerator) Beams() []*beam.Beam { return a.beams }
func (a *Accelerator) Elements() int       { return a.ring.Len() }
func (a *Accelerator) Losses() int         { return a.losses }
func (a *Accelerator) Steps() int          { return a.steps }
func (a *Accelerator) Time() float64       { return a.time }

// Progress returns the global ring progress of every particle of beam i as
// of the last Step.
func (a *Accelerator) Progress(i int) []float64 {
	if i < 0 || i >= len(a.progress) {
		return nil
	}
	return a.progress[i]
}

func (a *Accelerator) ParticleCount() int {
	n := 0
	for _, b := range a.beams {
		n += b.Len()
	}
	return n
}

// AddElement appends a copy of e after the current last element.
func (a *Accelerator) AddElement(e lattice.Element) (lattice.Handle, error) {
	return a.ring.Add(e)
}

// CloseElementLoop links the last element back to the first.
func (a *Accelerator) CloseElementLoop() error {
	return a.ring.Close()
}

// AddParticle admits p and wraps a copy of it into a new single-particle beam.
func (a *Accelerator) AddParticle(p *particle.Particle) (*beam.Beam, error) {
	b, err := beam.NewSingle(a.ring, p)
	if err != nil {
		return nil, err
	}
	a.addBeam(b)
	return b, nil
}

// AddBeam expands seed into count physical particles represented by
// count/lambda macroparticles. dt is only used by beam.FromParticle.
func (a *Accelerator) AddBeam(seed *particle.Particle, count, lambda int, mode beam.Mode, dt float64) (*beam.Beam, error) {
	var (
		b   *beam.Beam
		err error
	)
	switch mode {
	case beam.Spread:
		b, err = beam.NewSpread(a.ring, seed, count, lambda)
	default:
		b, err = beam.NewFromParticle(a.ring, seed, count, lambda, dt)
	}
	if err != nil {
		return nil, err
	}
	a.addBeam(b)
	return b, nil
}

func (a *Accelerator) addBeam(b *beam.Beam) {
	a.beams = append(a.beams, b)
	a.progress = append(a.progress, make([]float64, b.Len()))
}

// Step advances the simulation by dt. Element reassignment happens before
// interactions, interactions before integration, integration before cleanup.
// A dt below Epsilon is a no-op.
func (a *Accelerator) Step(dt float64) {
	if math.Abs(dt) < dynamo.Epsilon {
		return
	}
	for i, b := range a.beams {
		b.Reassign()
		a.progress[i] = a.progress[i][:0]
		for _, p := range b.Particles() {
			a.progress[i] = append(a.progress[i], a.ring.Progress(p.Position()))
		}
	}

	if a.opts.Interactions {
		a.interact()
	}

	for _, b := range a.beams {
		b.Step(dt, a.opts.Workers)
	}

	a.ClearDeadBeams()
	a.ClearDeadParticles()
	a.steps++
	a.time += dt
}

type slot struct {
	p        *particle.Particle
	progress float64
}

func (a *Accelerator) slots() []slot {
	var out []slot
	for i, b := range a.beams {
		for j, p := range b.Particles() {
			out = append(out, slot{p: p, progress: a.progress[i][j]})
		}
	}
	return out
}

// pairForce is the Coulomb force on i from j, reduced by the squared mean
// Lorentz factor of the pair.
func (a *Accelerator) pairForce(i, j *particle.Particle) (dynamo.Vector3D, bool) {
	d := i.Position().Sub(j.Position())
	dist := d.Norm()
	if dist < dynamo.Epsilon {
		return dynamo.Zero, false
	}
	gamma := (i.Gamma() + j.Gamma()) / 2
	k := a.opts.CoulombConstant * i.Charge() * j.Charge() / (dist * dist * dist * gamma * gamma)
	return d.Scale(k), true
}

func (a *Accelerator) interact() {
	s := a.slots()
	threshold := a.opts.InteractionThreshold

	if a.opts.Workers <= 1 {
		for i := range s {
			for j := i + 1; j < len(s); j++ {
				if math.Abs(s[i].progress-s[j].progress) >= threshold {
					continue
				}
				f, ok := a.pairForce(s[i].p, s[j].p)
				if !ok {
					continue
				}
				s[i].p.AddForce(f)
				s[j].p.AddForce(f.Neg())
			}
		}
		return
	}

	// every particle sums its own partners so no accumulator is shared
	forces := make([]dynamo.Vector3D, len(s))
	dynamo.ParallelFor(len(s), a.opts.Workers, 16, func(i int) {
		for j := range s {
			if i == j || math.Abs(s[i].progress-s[j].progress) >= threshold {
				continue
			}
			if f, ok := a.pairForce(s[i].p, s[j].p); ok {
				forces[i].AddAssign(f)
			}
		}
	})
	for i := range s {
		s[i].p.AddForce(forces[i])
	}
}

// ClearDeadBeams removes beams without particles, swapping with the last.
func (a *Accelerator) ClearDeadBeams() int {
	removed := 0
	for i := 0; i < len(a.beams); {
		if a.beams[i].Len() > 0 {
			i++
			continue
		}
		last := len(a.beams) - 1
		a.beams[i], a.progress[i] = a.beams[last], a.progress[last]
		a.beams[last], a.progress[last] = nil, nil
		a.beams, a.progress = a.beams[:last], a.progress[:last]
		removed++
	}
	return removed
}

// ClearDeadParticles removes wall-struck particles from every beam and
// returns how many were removed.
func (a *Accelerator) ClearDeadParticles() int {
	removed := 0
	for _, b := range a.beams {
		removed += b.ClearDeadParticles()
	}
	a.losses += removed
	return removed
}

// ParticleProgress is the global ring progress used to gate interactions.
func (a *Accelerator) ParticleProgress(pos dynamo.Vector3D) float64 {
	return a.ring.Progress(pos)
}

func (a *Accelerator) PosAtProgress(progress float64) (dynamo.Vector3D, error) {
	return a.ring.PosAtProgress(progress)
}

func (a *Accelerator) VelAtProgress(progress float64, clockwise bool) (dynamo.Vector3D, error) {
	return a.ring.VelAtProgress(progress, clockwise)
}

// Clear drops all beams and elements and resets counters.
func (a *Accelerator) Clear() {
	a.ClearBeams()
	a.ring.Clear()
	a.losses, a.steps, a.time = 0, 0, 0
}

func (a *Accelerator) ClearBeams() {
	a.beams = nil
	a.progress = nil
}

// ClearElements fails with ErrElementsInUse while beams reference the ring.
func (a *Accelerator) ClearElements() error {
	if len(a.beams) > 0 {
		return dynamo.ErrElementsInUse
	}
	a.ring.Clear()
	return nil
}

func (a *Accelerator) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "accelerator beams=%d particles=%d losses=%d steps=%d t=%.6e interactions=%t\n",
		len(a.beams), a.ParticleCount(), a.losses, a.steps, a.time, a.opts.Interactions)
	sb.WriteString(a.ring.String())
	for _, b := range a.beams {
		sb.WriteString(b.String())
	}
	return sb.String()
}
