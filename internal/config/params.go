package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/accelsim/internal/dynamo"
)

func (lp *LatticeConfig) fields() map[string]*float64 {
	return map[string]*float64{
		"bend_radius":     &lp.BendRadius,
		"straight_length": &lp.StraightLength,
		"bore_radius":     &lp.BoreRadius,
		"quad_gradient":   &lp.QuadGradient,
		"quad_length":     &lp.QuadLength,
		"drift_length":    &lp.DriftLength,
		"design_gamma":    &lp.DesignGamma,
		"field_scale":     &lp.FieldScale,
	}
}

// Set assigns a lattice parameter by its yaml name.
func (lp *LatticeConfig) Set(name string, v float64) error {
	f, ok := lp.fields()[name]
	if !ok {
		return fmt.Errorf("%w: unknown lattice parameter %q", dynamo.ErrParameterBounds, name)
	}
	*f = v
	return nil
}

func (lp *LatticeConfig) Get(name string) (float64, error) {
	f, ok := lp.fields()[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown lattice parameter %q", dynamo.ErrParameterBounds, name)
	}
	return *f, nil
}

func LatticeParamNames() []string {
	var lp LatticeConfig
	names := make([]string, 0, 8)
	for name := range lp.fields() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Beams = append([]BeamConfig(nil), c.Beams...)
	return &out
}
