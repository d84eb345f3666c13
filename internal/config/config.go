package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/particle"
)

const (
	DefaultDt             = 1e-10
	DefaultSteps          = 2000
	DefaultSampleEvery    = 10
	DefaultThreshold      = 1e-3
	DefaultBendRadius     = 10.0
	DefaultStraightLength = 20.0
	DefaultBoreRadius     = 0.05
	DefaultQuadGradient   = 0.5
	DefaultQuadLength     = 2.0
	DefaultDriftLength    = 6.0
	DefaultGamma          = 1.1
)

type Config struct {
	Lattice              string        `yaml:"lattice"`
	Mode                 string        `yaml:"mode"`
	Dt                   float64       `yaml:"dt"`
	Steps                int           `yaml:"steps"`
	SampleEvery          int           `yaml:"sample_every"`
	Interactions         bool          `yaml:"interactions"`
	InteractionThreshold float64       `yaml:"interaction_threshold"`
	Workers              int           `yaml:"workers"`
	LatticeParams        LatticeConfig `yaml:"lattice_params"`
	Beams                []BeamConfig  `yaml:"beams"`
}

type LatticeConfig struct {
	BendRadius     float64 `yaml:"bend_radius"`
	StraightLength float64 `yaml:"straight_length"`
	BoreRadius     float64 `yaml:"bore_radius"`
	QuadGradient   float64 `yaml:"quad_gradient"`
	QuadLength     float64 `yaml:"quad_length"`
	DriftLength    float64 `yaml:"drift_length"`
	// DesignGamma is the Lorentz factor of a proton on the ideal orbit.
	DesignGamma float64 `yaml:"design_gamma"`
	// FieldScale multiplies the design dipole field; 1 is matched.
	FieldScale float64 `yaml:"field_scale"`
}

type BeamConfig struct {
	Species   string     `yaml:"species"`
	Gamma     float64    `yaml:"gamma"`
	Position  [3]float64 `yaml:"position,flow"`
	Direction [3]float64 `yaml:"direction,flow"`
	Count     int        `yaml:"count"`
	Scale     int        `yaml:"scale"`
	Mode      string     `yaml:"mode"`
}

func DefaultLattice() LatticeConfig {
	return LatticeConfig{
		BendRadius:     DefaultBendRadius,
		StraightLength: DefaultStraightLength,
		BoreRadius:     DefaultBoreRadius,
		QuadGradient:   DefaultQuadGradient,
		QuadLength:     DefaultQuadLength,
		DriftLength:    DefaultDriftLength,
		DesignGamma:    DefaultGamma,
		FieldScale:     1,
	}
}

// DefaultBeam is one proton entering the first dipole on the design orbit.
func DefaultBeam() BeamConfig {
	return BeamConfig{
		Species:   "proton",
		Gamma:     DefaultGamma,
		Position:  [3]float64{-DefaultBendRadius, DefaultStraightLength / 2, 0},
		Direction: [3]float64{0, 1, 0},
		Count:     1,
		Scale:     1,
		Mode:      "from-particle",
	}
}

func DefaultConfig() *Config {
	return &Config{
		Lattice:              "fodo-ring",
		Mode:                 "exact",
		Dt:                   DefaultDt,
		Steps:                DefaultSteps,
		SampleEvery:          DefaultSampleEvery,
		InteractionThreshold: DefaultThreshold,
		Workers:              1,
		LatticeParams:        DefaultLattice(),
		Beams:                []BeamConfig{DefaultBeam()},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Beams = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Beams) == 0 {
		cfg.Beams = []BeamConfig{DefaultBeam()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(field string, v any) error {
	return fmt.Errorf("%w: %s = %v", dynamo.ErrParameterBounds, field, v)
}

// Validate checks every field that the simulation would otherwise reject
// halfway through a run.
func (c *Config) Validate() error {
	if _, err := dynamo.ParseProgressMode(c.Mode); err != nil {
		return invalid("mode", c.Mode)
	}
	switch {
	case !(c.Dt > 0):
		return invalid("dt", c.Dt)
	case c.Steps < 1:
		return invalid("steps", c.Steps)
	case c.SampleEvery < 1:
		return invalid("sample_every", c.SampleEvery)
	case c.InteractionThreshold < 0:
		return invalid("interaction_threshold", c.InteractionThreshold)
	case c.Workers < 0:
		return invalid("workers", c.Workers)
	}

	lp := c.LatticeParams
	for name, v := range map[string]float64{
		"bend_radius":     lp.BendRadius,
		"straight_length": lp.StraightLength,
		"bore_radius":     lp.BoreRadius,
		"quad_length":     lp.QuadLength,
		"field_scale":     lp.FieldScale,
	} {
		if !(v > 0) {
			return invalid("lattice_params."+name, v)
		}
	}
	if lp.DriftLength < 0 {
		return invalid("lattice_params.drift_length", lp.DriftLength)
	}
	if !(lp.DesignGamma > 1) {
		return invalid("lattice_params.design_gamma", lp.DesignGamma)
	}

	if len(c.Beams) == 0 {
		return fmt.Errorf("beams: %w", dynamo.ErrEmptyBeam)
	}
	for i, b := range c.Beams {
		if err := b.validate(); err != nil {
			return fmt.Errorf("beams[%d]: %w", i, err)
		}
	}
	return nil
}

func (b BeamConfig) validate() error {
	if _, err := particle.ParseSpecies(b.Species); err != nil {
		return err
	}
	if _, err := beam.ParseMode(b.Mode); err != nil {
		return err
	}
	switch {
	case !(b.Gamma > 1):
		return invalid("gamma", b.Gamma)
	case b.Count < 1:
		return dynamo.ErrEmptyBeam
	case b.Scale < 1:
		return dynamo.ErrScaleFactor
	case b.Direction == [3]float64{}:
		return invalid("direction", b.Direction)
	}
	return nil
}

func (b BeamConfig) PositionVector() dynamo.Vector3D {
	return dynamo.NewVector3D(b.Position[0], b.Position[1], b.Position[2])
}

func (b BeamConfig) DirectionVector() dynamo.Vector3D {
	return dynamo.NewVector3D(b.Direction[0], b.Direction[1], b.Direction[2])
}
