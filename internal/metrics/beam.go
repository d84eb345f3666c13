package metrics

import (
	"math"

	"github.com/san-kum/accelsim/internal/sim"
)

// Survival is the fraction of the initial macroparticles still alive.
type Survival struct {
	initial int
	current int
	samples int
}

func NewSurvival() *Survival { return &Survival{} }

func (s *Survival) Name() string { return "survival" }

func (s *Survival) Observe(x sim.Sample) {
	if s.samples == 0 {
		s.initial = x.Particles
	}
	s.current = x.Particles
	s.samples++
}

func (s *Survival) Value() float64 {
	if s.initial == 0 {
		return 0
	}
	return float64(s.current) / float64(s.initial)
}

func (s *Survival) Reset() {
	s.initial, s.current, s.samples = 0, 0, 0
}

// Losses is the cumulative number of macroparticles removed at the wall.
type Losses struct {
	losses int
}

func NewLosses() *Losses { return &Losses{} }

func (l *Losses) Name() string         { return "losses" }
func (l *Losses) Observe(x sim.Sample) { l.losses = x.Losses }
func (l *Losses) Value() float64       { return float64(l.losses) }
func (l *Losses) Reset()               { l.losses = 0 }

// EmittanceGrowth is the ratio of the last to the first non-zero emittance
// seen on one axis.
type EmittanceGrowth struct {
	name    string
	axisZ   bool
	initial float64
	last    float64
}

func NewEmittanceR() *EmittanceGrowth { return &EmittanceGrowth{name: "emittance_growth_r"} }
func NewEmittanceZ() *EmittanceGrowth { return &EmittanceGrowth{name: "emittance_growth_z", axisZ: true} }

func (e *EmittanceGrowth) Name() string { return e.name }

func (e *EmittanceGrowth) Observe(x sim.Sample) {
	eps := x.EmittanceR
	if e.axisZ {
		eps = x.EmittanceZ
	}
	if x.Particles == 0 {
		return
	}
	if e.initial == 0 {
		e.initial = eps
	}
	e.last = eps
}

func (e *EmittanceGrowth) Value() float64 {
	if e.initial == 0 {
		return 0
	}
	return e.last / e.initial
}

func (e *EmittanceGrowth) Reset() {
	e.initial, e.last = 0, 0
}

// MaxCentroid is the largest radial centroid excursion in metres.
type MaxCentroid struct {
	max float64
}

func NewMaxCentroid() *MaxCentroid { return &MaxCentroid{} }

func (m *MaxCentroid) Name() string { return "max_centroid_r" }

func (m *MaxCentroid) Observe(x sim.Sample) {
	if x.Particles > 0 {
		m.max = math.Max(m.max, math.Abs(x.CentroidR))
	}
}

func (m *MaxCentroid) Value() float64 { return m.max }
func (m *MaxCentroid) Reset()         { m.max = 0 }

// Default returns a fresh set of the standard beam metrics.
func Default() []sim.Metric {
	return []sim.Metric{
		NewSurvival(),
		NewLosses(),
		NewEmittanceR(),
		NewEmittanceZ(),
		NewMaxCentroid(),
	}
}
