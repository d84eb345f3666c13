package accelerator_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

func v(x, y, z float64) dynamo.Vector3D { return dynamo.NewVector3D(x, y, z) }

const designGamma = 1.1

// designSpeed is the speed of a proton at designGamma.
var designSpeed = dynamo.SpeedOfLight * math.Sqrt(1-1/(designGamma*designGamma))

// fieldForRadius returns the dipole field that bends a designGamma proton on
// a circle of radius r.
func fieldForRadius(r float64) float64 {
	return designGamma * dynamo.ProtonMass * designSpeed / (dynamo.ElementaryCharge * r)
}

// racetrack returns the elements of a closed clockwise ring of two
// half-circle dipoles (radius 10) joined by two 20 m FODO cells.
func racetrack(bore, field float64) []lattice.Element {
	must := func(e lattice.Element, err error) lattice.Element {
		ExpectWithOffset(2, err).NotTo(HaveOccurred())
		return e
	}
	return []lattice.Element{
		must(lattice.NewDipole(v(-10, 10, 0), v(10, 10, 0), bore, 0.1, field)),
		must(lattice.NewFrodo(v(10, 10, 0), v(10, -10, 0), bore, 0.5, 2, 6)),
		must(lattice.NewDipole(v(10, -10, 0), v(-10, -10, 0), bore, 0.1, field)),
		must(lattice.NewFrodo(v(-10, -10, 0), v(-10, 10, 0), bore, 0.5, 2, 6)),
	}
}

func build(opts accelerator.Options, bore, field float64) *accelerator.Accelerator {
	acc := accelerator.New(opts)
	for _, e := range racetrack(bore, field) {
		_, err := acc.AddElement(e)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
	}
	ExpectWithOffset(1, acc.CloseElementLoop()).To(Succeed())
	return acc
}

func proton(pos, dir dynamo.Vector3D) *particle.Particle {
	p, err := particle.NewProton(pos, particle.Proton.EnergyForGamma(designGamma), dir)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return p
}

var _ = Describe("Accelerator", func() {
	var acc *accelerator.Accelerator

	BeforeEach(func() {
		acc = build(accelerator.DefaultOptions(), 0.05, 1)
	})

	Describe("building the ring", func() {
		It("rejects elements that do not touch the last exit", func() {
			e, err := lattice.NewStraight(v(0, 30, 0), v(5, 30, 0), 0.05)
			Expect(err).NotTo(HaveOccurred())
			_, err = acc.AddElement(e)
			Expect(err).To(MatchError(dynamo.ErrNotTouching))
		})

		It("rejects closing an incomplete loop", func() {
			open := accelerator.New(accelerator.DefaultOptions())
			elems := racetrack(0.05, 1)
			for _, e := range elems[:3] {
				_, err := open.AddElement(e)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(open.CloseElementLoop()).To(MatchError(dynamo.ErrIncompleteLoop))
		})

		It("reports its length and element count", func() {
			Expect(acc.Elements()).To(Equal(4))
			Expect(acc.Ring().TotalLength()).To(BeNumerically("~", 20*math.Pi+40, 1e-9))
			Expect(acc.Ring().Closed()).To(BeTrue())
		})
	})

	Describe("admission", func() {
		It("needs at least one element", func() {
			empty := accelerator.New(accelerator.DefaultOptions())
			_, err := empty.AddParticle(proton(v(0, 20, 0), dynamo.UnitX))
			Expect(err).To(MatchError(dynamo.ErrNoElements))
			_, err = empty.AddBeam(proton(v(0, 20, 0), dynamo.UnitX), 10, 1, beam.Spread, 0)
			Expect(err).To(MatchError(dynamo.ErrNoElements))
		})

		It("rejects particles outside every bore", func() {
			_, err := acc.AddParticle(proton(v(0, 20.5, 0), dynamo.UnitX))
			Expect(err).To(MatchError(dynamo.ErrNotInAccelerator))
		})

		It("places a particle in its containing element", func() {
			b, err := acc.AddParticle(proton(v(10, 0, 0), v(0, -1, 0)))
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Particles()[0].Element()).To(Equal(lattice.Handle(1)))
			Expect(acc.ParticleCount()).To(Equal(1))
		})

		It("validates beam parameters", func() {
			seed := proton(v(0, 20, 0), dynamo.UnitX)
			_, err := acc.AddBeam(seed, 0, 1, beam.Spread, 0)
			Expect(err).To(MatchError(dynamo.ErrEmptyBeam))
			_, err = acc.AddBeam(seed, 10, 0, beam.FromParticle, 1e-10)
			Expect(err).To(MatchError(dynamo.ErrScaleFactor))
		})

		It("expands beams in both modes", func() {
			seed := proton(v(0, 20, 0), dynamo.UnitX)
			spread, err := acc.AddBeam(seed, 100, 10, beam.Spread, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(spread.Len()).To(Equal(10))

			walked, err := acc.AddBeam(seed, 100, 20, beam.FromParticle, 1e-10)
			Expect(err).NotTo(HaveOccurred())
			Expect(walked.Len()).To(Equal(5))
			Expect(acc.Beams()).To(HaveLen(2))
			Expect(acc.ParticleCount()).To(Equal(15))
		})
	})

	Describe("global progress", func() {
		It("measures the clockwise angle from the first entry", func() {
			Expect(acc.ParticleProgress(v(-10, 10, 0))).To(BeNumerically("~", 0, 1e-12))
			Expect(acc.ParticleProgress(v(10, 10, 0))).To(BeNumerically("~", 0.25, 1e-12))
			Expect(acc.ParticleProgress(v(-10, -10, 0))).To(BeNumerically("~", 0.75, 1e-12))
		})

		It("maps progress back onto the ideal orbit", func() {
			pos, err := acc.PosAtProgress(5 * math.Pi / acc.Ring().TotalLength())
			Expect(err).NotTo(HaveOccurred())
			Expect(pos.ApproxEqual(v(0, 20, 0))).To(BeTrue())

			vel, err := acc.VelAtProgress(0, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(vel.ApproxEqual(dynamo.UnitY)).To(BeTrue())

			_, err = acc.PosAtProgress(1.5)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		})
	})

	Describe("clearing", func() {
		BeforeEach(func() {
			_, err := acc.AddParticle(proton(v(0, 20, 0), dynamo.UnitX))
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses to drop elements in use", func() {
			Expect(acc.ClearElements()).To(MatchError(dynamo.ErrElementsInUse))
			acc.ClearBeams()
			Expect(acc.ClearElements()).To(Succeed())
			Expect(acc.Elements()).To(BeZero())
		})

		It("drops everything on Clear", func() {
			acc.Step(1e-10)
			acc.Clear()
			Expect(acc.Beams()).To(BeEmpty())
			Expect(acc.Elements()).To(BeZero())
			Expect(acc.Steps()).To(BeZero())
		})
	})

	Describe("cleanup", func() {
		It("removes wall-struck particles and empty beams", func() {
			b1, err := acc.AddParticle(proton(v(0, 20, 0), dynamo.UnitX))
			Expect(err).NotTo(HaveOccurred())
			_, err = acc.AddParticle(proton(v(0, 20.01, 0), dynamo.UnitX))
			Expect(err).NotTo(HaveOccurred())

			b1.Particles()[0].SetPosition(v(0, 20.2, 0))
			Expect(acc.ClearDeadParticles()).To(Equal(1))
			Expect(acc.Losses()).To(Equal(1))
			Expect(acc.ClearDeadBeams()).To(Equal(1))
			Expect(acc.Beams()).To(HaveLen(1))
			Expect(acc.ParticleCount()).To(Equal(1))
		})
	})

	Describe("interactions", func() {
		It("pushes nearby like charges apart", func() {
			opts := accelerator.DefaultOptions()
			opts.Interactions = true
			opts.InteractionThreshold = 0.01
			near := build(opts, 0.05, 0)

			a := proton(v(0, 20, 0.001), dynamo.UnitX)
			b := proton(v(0, 20, -0.001), dynamo.UnitX)
			ba, err := near.AddParticle(a)
			Expect(err).NotTo(HaveOccurred())
			bb, err := near.AddParticle(b)
			Expect(err).NotTo(HaveOccurred())

			near.Step(1e-9)
			pa, pb := ba.Particles()[0], bb.Particles()[0]
			Expect(pa.Velocity().Z).To(BeNumerically(">", 0))
			Expect(pb.Velocity().Z).To(BeNumerically("<", 0))
			Expect(pa.Velocity().Z).To(BeNumerically("~", -pb.Velocity().Z, 1e-12))
			Expect(near.Progress(0)).To(HaveLen(1))
		})

		It("ignores pairs far apart in ring progress", func() {
			opts := accelerator.DefaultOptions()
			opts.Interactions = true
			opts.InteractionThreshold = 0.01
			far := build(opts, 0.05, 0)

			ba, err := far.AddParticle(proton(v(-10, 1, 0.001), v(0, 1, 0)))
			Expect(err).NotTo(HaveOccurred())
			_, err = far.AddParticle(proton(v(10, -1, -0.001), v(0, -1, 0)))
			Expect(err).NotTo(HaveOccurred())

			far.Step(1e-9)
			Expect(ba.Particles()[0].Velocity().Z).To(BeZero())
		})

		It("gives the same kicks on many workers", func() {
			run := func(workers int) []dynamo.Vector3D {
				opts := accelerator.DefaultOptions()
				opts.Interactions = true
				opts.InteractionThreshold = 0.01
				opts.Workers = workers
				a := build(opts, 0.05, 0)
				for i := 0; i < 40; i++ {
					z := 0.0005 * float64(i-20)
					_, err := a.AddParticle(proton(v(0, 20, z), dynamo.UnitX))
					Expect(err).NotTo(HaveOccurred())
				}
				a.Step(1e-9)
				var out []dynamo.Vector3D
				for _, b := range a.Beams() {
					out = append(out, b.Particles()[0].Velocity())
				}
				return out
			}

			serial, par := run(1), run(4)
			Expect(par).To(HaveLen(len(serial)))
			for i := range serial {
				Expect(par[i].Sub(serial[i]).Norm()).To(BeNumerically("<", 1e-9))
			}
		})
	})

	// Two protons enter the first dipole with slightly too much rigidity:
	// their orbit radius is 10.02 m against a 10 m design orbit, so they
	// drift outwards and strike the 2 cm bore before leaving the arc.
	Describe("mismatched protons in the racetrack", func() {
		const (
			dt       = 1e-10
			survive  = 500
			lostBy   = 2000
			boreSize = 0.02
		)

		var sim *accelerator.Accelerator

		BeforeEach(func() {
			opts := accelerator.DefaultOptions()
			opts.Interactions = true
			opts.InteractionThreshold = 0.01
			sim = build(opts, boreSize, fieldForRadius(10.02))

			for _, z := range []float64{0, 0.001} {
				_, err := sim.AddParticle(proton(v(-10, 10, z), dynamo.UnitY))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("keeps both protons for the first iterations", func() {
			for i := 0; i < survive; i++ {
				sim.Step(dt)
			}
			Expect(sim.ParticleCount()).To(Equal(2))
			Expect(sim.Losses()).To(BeZero())
			for _, b := range sim.Beams() {
				Expect(b.Particles()[0].Element()).To(Equal(lattice.Handle(0)))
			}
		})

		It("loses both protons to the wall later on", func() {
			for i := 0; i < lostBy; i++ {
				sim.Step(dt)
			}
			Expect(sim.ParticleCount()).To(BeZero())
			Expect(sim.Losses()).To(Equal(2))
			Expect(sim.Beams()).To(BeEmpty())
			Expect(sim.Steps()).To(Equal(lostBy))
		})
	})

	Describe("a matched proton", func() {
		It("stays inside the dipole bore", func() {
			sim := build(accelerator.DefaultOptions(), 0.02, fieldForRadius(10))
			b, err := sim.AddParticle(proton(v(-10, 10, 0), dynamo.UnitY))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 1000; i++ {
				sim.Step(1e-10)
				p := b.Particles()[0]
				Expect(p.Element()).To(Equal(lattice.Handle(0)))
				progress := sim.Ring().At(0).Progress(p.Position(), dynamo.Exact)
				Expect(progress).To(BeNumerically(">=", 0))
				Expect(progress).To(BeNumerically("<=", 1))
			}
			Expect(sim.ParticleCount()).To(Equal(1))
		})
	})

	Describe("timestep", func() {
		pair := func() (*accelerator.Accelerator, *particle.Particle) {
			opts := accelerator.DefaultOptions()
			opts.Interactions = true
			opts.InteractionThreshold = 0.01
			a := build(opts, 0.05, 0)
			ba, err := a.AddParticle(proton(v(0, 20, 0.001), dynamo.UnitX))
			Expect(err).NotTo(HaveOccurred())
			_, err = a.AddParticle(proton(v(0, 20, -0.001), dynamo.UnitX))
			Expect(err).NotTo(HaveOccurred())
			return a, ba.Particles()[0]
		}

		It("does nothing below epsilon", func() {
			a, p := pair()
			a.Step(0)
			a.Step(1e-15)
			Expect(a.Steps()).To(BeZero())
			Expect(a.Time()).To(BeZero())
			Expect(p.Force()).To(Equal(dynamo.Zero))
			Expect(p.Position()).To(Equal(v(0, 20, 0.001)))
		})

		It("does not carry a kick into the next step", func() {
			skipped, p := pair()
			skipped.Step(0)
			skipped.Step(1e-9)

			direct, q := pair()
			direct.Step(1e-9)

			Expect(skipped.Steps()).To(Equal(1))
			Expect(p.Velocity().Z).To(BeNumerically(">", 0))
			Expect(p.Velocity().Z).To(BeNumerically("~", q.Velocity().Z, 1e-12))
		})
	})

	Describe("a dipole at the design field", func() {
		It("turns a proton by v·dt/R per step", func() {
			const (
				dt    = 1e-10
				steps = 100
			)
			sim := build(accelerator.DefaultOptions(), 0.05, fieldForRadius(10))
			b, err := sim.AddParticle(proton(v(-10, 10, 0), dynamo.UnitY))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < steps; i++ {
				sim.Step(dt)
			}
			p := b.Particles()[0]
			vel := p.Velocity()
			want := steps * designSpeed * dt / 10
			// clockwise from +y towards +x
			Expect(math.Atan2(vel.X, vel.Y)).To(BeNumerically("~", want, 1e-3*want))
			Expect(p.Speed()).To(BeNumerically("~", designSpeed, 1e-6*designSpeed))
			Expect(p.Position().Sub(v(0, 10, 0)).Norm()).To(BeNumerically("~", 10, 0.01))
		})
	})

	It("describes itself", func() {
		Expect(acc.String()).To(ContainSubstring("accelerator beams=0"))
		Expect(acc.String()).To(ContainSubstring("ring closed"))
	})
})
