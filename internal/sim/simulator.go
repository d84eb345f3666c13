package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/particle"
)

// Simulator drives an accelerator for a fixed number of steps and samples
// its diagnostics.
type Simulator struct {
	acc       *accelerator.Accelerator
	metrics   []Metric
	observers []Observer
}

func New(acc *accelerator.Accelerator) *Simulator {
	return &Simulator{
		acc:       acc,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) Accelerator() *accelerator.Accelerator { return s.acc }
func (s *Simulator) AddMetric(m Metric)                    { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)                { s.observers = append(s.observers, o) }

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	return s.run(ctx, cfg, nil)
}

// RunWithCallback calls fn with every sample and stops when fn returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, fn func(Sample) bool) (*Result, error) {
	return s.run(ctx, cfg, fn)
}

func (s *Simulator) run(ctx context.Context, cfg Config, fn func(Sample) bool) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	result := &Result{
		Samples: make([]Sample, 0, cfg.Steps/cfg.SampleEvery+2),
		Track:   make([]float64, 0, cfg.Steps),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	tracked := s.first()
	sampled := -1
	stop := false
	var runErr error

	for i := 0; i < cfg.Steps && !stop; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if i%cfg.SampleEvery == 0 {
			stop = !s.sample(result, i, fn)
			sampled = i
			if stop {
				break
			}
		}

		s.acc.Step(cfg.Dt)
		result.StepsTaken++

		if tracked != nil {
			if r, ok := s.offset(tracked); ok {
				result.Track = append(result.Track, r)
			} else {
				tracked = nil
			}
		}

		if err := s.checkState(i); err != nil {
			result.Errors = append(result.Errors, err)
			break
		}
		if s.acc.ParticleCount() == 0 {
			break
		}
	}

	if sampled != result.StepsTaken {
		s.sample(result, result.StepsTaken, fn)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, runErr
}

func (s *Simulator) sample(result *Result, step int, fn func(Sample) bool) bool {
	snap := Snapshot(s.acc, step)
	result.Samples = append(result.Samples, snap)
	for _, m := range s.metrics {
		m.Observe(snap)
	}
	for _, obs := range s.observers {
		obs.OnSample(snap)
	}
	if fn != nil {
		return fn(snap)
	}
	return true
}

func (s *Simulator) first() *particle.Particle {
	for _, b := range s.acc.Beams() {
		if b.Len() > 0 {
			return b.Particles()[0]
		}
	}
	return nil
}

// offset returns the radial offset of p, or false once p has been lost.
func (s *Simulator) offset(p *particle.Particle) (float64, bool) {
	ring := s.acc.Ring()
	e := ring.At(p.Element())
	if e == nil || p.Outside() || ring.InWall(p.Element(), p.Position()) {
		return 0, false
	}
	r, _ := e.Transverse(p.Position(), ring.Mode())
	return r, true
}

func (s *Simulator) checkState(step int) error {
	for _, b := range s.acc.Beams() {
		for _, p := range b.Particles() {
			if !p.Position().IsValid() || !p.Momentum().IsValid() {
				return SimError{Time: s.acc.Time(), Step: step, Message: "invalid particle state (NaN/Inf)"}
			}
		}
	}
	return nil
}

func validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) {
		return fmt.Errorf("dt must be positive, got %g", cfg.Dt)
	}
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if cfg.SampleEvery <= 0 {
		return fmt.Errorf("sample interval must be positive, got %d", cfg.SampleEvery)
	}
	return nil
}
