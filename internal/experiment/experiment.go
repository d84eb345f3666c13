package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/particle"
	"github.com/san-kum/accelsim/internal/sim"
)

var ErrNotSetup = errors.New("experiment not setup")

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	acc       *accelerator.Accelerator
	simulator *sim.Simulator
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry}
}

// Setup builds the accelerator described by the config and attaches metrics.
func (e *Experiment) Setup(metrics []sim.Metric) error {
	acc, err := Build(e.registry, e.cfg)
	if err != nil {
		return err
	}
	e.acc = acc
	e.simulator = sim.New(acc)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}
	return e.simulator.Run(ctx, e.SimConfig())
}

func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{
		Dt:          e.cfg.Dt,
		Steps:       e.cfg.Steps,
		SampleEvery: e.cfg.SampleEvery,
	}
}

func (e *Experiment) Config() *config.Config                { return e.cfg }
func (e *Experiment) Simulator() *sim.Simulator             { return e.simulator }
func (e *Experiment) Accelerator() *accelerator.Accelerator { return e.acc }

// Build creates a fresh accelerator from cfg. Each call returns an
// independent instance.
func Build(registry *Registry, cfg *config.Config) (*accelerator.Accelerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := registry.GetLattice(cfg.Lattice, cfg.LatticeParams)
	if err != nil {
		return nil, err
	}

	mode, err := dynamo.ParseProgressMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	opts := accelerator.DefaultOptions()
	opts.Mode = mode
	opts.Interactions = cfg.Interactions
	opts.InteractionThreshold = cfg.InteractionThreshold
	opts.Workers = cfg.Workers

	acc := accelerator.New(opts)
	for _, el := range layout.Elements {
		if _, err := acc.AddElement(el); err != nil {
			return nil, err
		}
	}
	if layout.Closed {
		if err := acc.CloseElementLoop(); err != nil {
			return nil, err
		}
	}

	for i, bc := range cfg.Beams {
		if err := addBeam(acc, bc, cfg.Dt); err != nil {
			return nil, fmt.Errorf("beams[%d]: %w", i, err)
		}
	}
	return acc, nil
}

// Builder adapts Build for sim.Ensemble.
func Builder(registry *Registry, cfg *config.Config) sim.Builder {
	return func() (*accelerator.Accelerator, error) {
		return Build(registry, cfg)
	}
}

func addBeam(acc *accelerator.Accelerator, bc config.BeamConfig, dt float64) error {
	species, err := particle.ParseSpecies(bc.Species)
	if err != nil {
		return err
	}
	mode, err := beam.ParseMode(bc.Mode)
	if err != nil {
		return err
	}
	seed, err := particle.NewSpecies(species, bc.PositionVector(), species.EnergyForGamma(bc.Gamma), bc.DirectionVector())
	if err != nil {
		return err
	}

	if bc.Count == 1 && bc.Scale == 1 {
		_, err = acc.AddParticle(seed)
		return err
	}
	_, err = acc.AddBeam(seed, bc.Count, bc.Scale, mode, dt)
	return err
}
