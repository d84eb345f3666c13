package config

import "sort"

func mismatchedLattice() LatticeConfig {
	lp := DefaultLattice()
	lp.BoreRadius = 0.02
	lp.FieldScale = DefaultBendRadius / (DefaultBendRadius + 0.02)
	return lp
}

func base(lp LatticeConfig, steps int, beams ...BeamConfig) *Config {
	cfg := DefaultConfig()
	cfg.LatticeParams = lp
	cfg.Steps = steps
	cfg.Beams = beams
	return cfg
}

func withZ(b BeamConfig, z float64) BeamConfig {
	b.Position[2] = z
	return b
}

func spreadBeam(count, scale int) BeamConfig {
	b := DefaultBeam()
	b.Count = count
	b.Scale = scale
	b.Mode = "spread"
	return b
}

// Presets maps lattice names to named run configurations.
var Presets = map[string]map[string]*Config{
	"fodo-ring": {
		"default": base(DefaultLattice(), DefaultSteps, DefaultBeam()),
		// two protons with 20 mm of excess orbit radius against a 20 mm bore
		"mismatched": base(mismatchedLattice(), 2000,
			DefaultBeam(), withZ(DefaultBeam(), 0.001)),
		"spread": func() *Config {
			cfg := base(DefaultLattice(), 5000, spreadBeam(4000, 20))
			cfg.Interactions = true
			cfg.Workers = 4
			return cfg
		}(),
		"bunch": func() *Config {
			b := DefaultBeam()
			b.Count = 200
			b.Scale = 4
			cfg := base(DefaultLattice(), 3000, b)
			cfg.Interactions = true
			cfg.InteractionThreshold = 1e-4
			return cfg
		}(),
	},
	"drift": {
		"single": func() *Config {
			b := DefaultBeam()
			b.Position = [3]float64{-DefaultStraightLength / 2, DefaultBendRadius, 0}
			b.Direction = [3]float64{1, 0, 0}
			cfg := base(DefaultLattice(), 1000, b)
			cfg.Lattice = "drift"
			return cfg
		}(),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(lattice, preset string) *Config {
	latticePresets, ok := Presets[lattice]
	if !ok {
		return nil
	}
	cfg, ok := latticePresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(lattice string) []string {
	latticePresets, ok := Presets[lattice]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(latticePresets))
	for name := range latticePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListLattices() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
