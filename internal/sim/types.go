package sim

import (
	"fmt"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/beam"
)

// Sample is a diagnostics snapshot of the whole accelerator.
type Sample struct {
	Step       int     `json:"step"`
	Time       float64 `json:"time"`
	Beams      int     `json:"beams"`
	Particles  int     `json:"particles"`
	Losses     int     `json:"losses"`
	EmittanceR float64 `json:"emittance_r"`
	EmittanceZ float64 `json:"emittance_z"`
	CentroidR  float64 `json:"centroid_r"`
	CentroidZ  float64 `json:"centroid_z"`
}

// Snapshot aggregates per-beam diagnostics weighted by live particle count.
func Snapshot(acc *accelerator.Accelerator, step int) Sample {
	s := Sample{
		Step:      step,
		Time:      acc.Time(),
		Beams:     len(acc.Beams()),
		Particles: acc.ParticleCount(),
		Losses:    acc.Losses(),
	}
	if s.Particles == 0 {
		return s
	}

	for _, b := range acc.Beams() {
		n := float64(b.Len())
		r, z := b.Centroid()
		s.EmittanceR += n * b.Emittance(beam.AxisR).Emittance
		s.EmittanceZ += n * b.Emittance(beam.AxisZ).Emittance
		s.CentroidR += n * r
		s.CentroidZ += n * z
	}
	total := float64(s.Particles)
	s.EmittanceR /= total
	s.EmittanceZ /= total
	s.CentroidR /= total
	s.CentroidZ /= total
	return s
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(s Sample)
}

type Config struct {
	Dt          float64
	Steps       int
	SampleEvery int
}

type Result struct {
	Samples []Sample
	// Track is the radial offset of the first particle after every step,
	// until it is lost.
	Track      []float64
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// Final returns the last sample, or the zero Sample.
func (r *Result) Final() Sample {
	if len(r.Samples) == 0 {
		return Sample{}
	}
	return r.Samples[len(r.Samples)-1]
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4e): %s", e.Step, e.Time, e.Message)
}
