// Package automation runs batches of accelerator experiments: scripted
// scenarios, parameter sweeps and randomized injection trials.
package automation

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/experiment"
	"github.com/san-kum/accelsim/internal/metrics"
	"github.com/san-kum/accelsim/internal/sim"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a config file, a preset or the defaults, in that
// order, and applies its overrides.
type ScenarioStep struct {
	Config  string             `yaml:"config"`
	Lattice string             `yaml:"lattice"`
	Preset  string             `yaml:"preset"`
	Steps   int                `yaml:"steps"`
	Dt      float64            `yaml:"dt"`
	Params  map[string]float64 `yaml:"params"`
	SaveAs  string             `yaml:"save_as"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &scenario, nil
}

// Name is the label a step is stored under.
func (s ScenarioStep) Name(i int) string {
	switch {
	case s.SaveAs != "":
		return s.SaveAs
	case s.Preset != "":
		return s.Preset
	}
	return fmt.Sprintf("step%d", i+1)
}

// Resolve builds the config for the step.
func (s ScenarioStep) Resolve() (*config.Config, error) {
	var cfg *config.Config
	lattice := s.Lattice
	if lattice == "" {
		lattice = "fodo-ring"
	}

	switch {
	case s.Config != "":
		c, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	case s.Preset != "":
		cfg = config.GetPreset(lattice, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s/%s", lattice, s.Preset)
		}
	default:
		cfg = config.DefaultConfig()
		cfg.Lattice = lattice
	}

	if s.Steps > 0 {
		cfg.Steps = s.Steps
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	for k, v := range s.Params {
		if err := cfg.LatticeParams.Set(k, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// StepResult pairs a scenario step with its run.
type StepResult struct {
	Name   string
	Config *config.Config
	Result *sim.Result
}

// RunScenario executes all steps in order, writing progress to log.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, log io.Writer) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name(i)
		fmt.Fprintf(log, "running step %d/%d: %s\n", i+1, len(scenario.Steps), name)

		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(cfg, registry)
		if err := exp.Setup(registry.DefaultMetrics()); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		results = append(results, StepResult{Name: name, Config: cfg, Result: result})
	}

	return results, nil
}

// ParameterSweep varies one lattice parameter linearly over NumPoints runs.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumPoints int
}

type SweepResult struct {
	ParamValue float64
	StepsTaken int
	Final      sim.Sample
	Metrics    map[string]float64
}

// Values returns the parameter values of the sweep.
func (s *ParameterSweep) Values() []float64 {
	if s.NumPoints == 1 {
		return []float64{s.ParamMin}
	}
	vals := make([]float64, s.NumPoints)
	step := (s.ParamMax - s.ParamMin) / float64(s.NumPoints-1)
	for i := range vals {
		vals[i] = s.ParamMin + float64(i)*step
	}
	return vals
}

// RunSweep runs every point of the sweep concurrently.
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry) ([]SweepResult, error) {
	if sweep.NumPoints < 1 {
		return nil, fmt.Errorf("sweep needs at least one point, got %d", sweep.NumPoints)
	}

	vals := sweep.Values()
	builders := make([]sim.Builder, len(vals))
	for i, v := range vals {
		cfg := sweep.Base.Clone()
		if err := cfg.LatticeParams.Set(sweep.ParamName, v); err != nil {
			return nil, err
		}
		builders[i] = experiment.Builder(registry, cfg)
	}

	runs, err := sim.NewEnsemble(metrics.Default, builders...).Run(ctx, simConfig(sweep.Base))
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, len(runs))
	for i, r := range runs {
		results[i] = SweepResult{
			ParamValue: vals[i],
			StepsTaken: r.StepsTaken,
			Final:      r.Final(),
			Metrics:    r.Metrics,
		}
	}
	return results, nil
}

// MonteCarloConfig perturbs the injection point of every beam in Base by a
// uniform offset of up to Radial and Vertical meters.
type MonteCarloConfig struct {
	Base      *config.Config
	Radial    float64
	Vertical  float64
	NumTrials int
	Seed      int64
}

type MonteCarloResult struct {
	TrialID int
	// Offset is the applied (radial, vertical) injection error.
	Offset   [2]float64
	Survival float64
	// Stable reports whether every particle survived the run.
	Stable bool
}

// RunMonteCarlo runs randomized injection trials concurrently.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	if mc.NumTrials < 1 {
		return nil, fmt.Errorf("monte carlo needs at least one trial, got %d", mc.NumTrials)
	}

	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	offsets := make([][2]float64, mc.NumTrials)
	builders := make([]sim.Builder, mc.NumTrials)
	for trial := range builders {
		dr := (rng.Float64() - 0.5) * 2 * mc.Radial
		dz := (rng.Float64() - 0.5) * 2 * mc.Vertical
		offsets[trial] = [2]float64{dr, dz}

		cfg := mc.Base.Clone()
		for i := range cfg.Beams {
			perturb(&cfg.Beams[i], dr, dz)
		}
		builders[trial] = experiment.Builder(registry, cfg)
	}

	survival := func() []sim.Metric { return []sim.Metric{metrics.NewSurvival()} }
	runs, err := sim.NewEnsemble(survival, builders...).Run(ctx, simConfig(mc.Base))
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, r := range runs {
		s := r.Metrics["survival"]
		results[i] = MonteCarloResult{
			TrialID:  i,
			Offset:   offsets[i],
			Survival: s,
			Stable:   s == 1,
		}
	}
	return results, nil
}

// perturb shifts the injection point along the horizontal normal of the
// beam direction and along z.
func perturb(b *config.BeamConfig, dr, dz float64) {
	dir := b.DirectionVector().Horizontal()
	n := dir.Norm()
	if n > 0 {
		// outward normal of clockwise motion is z x t
		b.Position[0] += -dir.Y / n * dr
		b.Position[1] += dir.X / n * dr
	}
	b.Position[2] += dz
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}

func simConfig(cfg *config.Config) sim.Config {
	return sim.Config{Dt: cfg.Dt, Steps: cfg.Steps, SampleEvery: cfg.SampleEvery}
}
