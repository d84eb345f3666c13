package automation

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/experiment"
)

const scenarioYAML = `name: warmup
description: matched then detuned
steps:
  - preset: default
    steps: 50
  - steps: 30
    params:
      field_scale: 0.999
    save_as: detuned
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "warmup", sc.Name)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, "default", sc.Steps[0].Name(0))
	assert.Equal(t, "detuned", sc.Steps[1].Name(1))
	assert.Equal(t, 0.999, sc.Steps[1].Params["field_scale"])

	_, err = LoadScenario(writeScenario(t, "name: empty\n"))
	assert.Error(t, err)
	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	cfg, err := ScenarioStep{Steps: 30, Params: map[string]float64{"field_scale": 0.999}}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Steps)
	assert.Equal(t, 0.999, cfg.LatticeParams.FieldScale)

	_, err = ScenarioStep{Preset: "nope"}.Resolve()
	assert.Error(t, err)

	_, err = ScenarioStep{Params: map[string]float64{"cells": 2}}.Resolve()
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)

	_, err = ScenarioStep{Params: map[string]float64{"bore_radius": -1}}.Resolve()
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)

	assert.Equal(t, "step3", ScenarioStep{}.Name(2))
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)

	var log bytes.Buffer
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), &log)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 50, results[0].Result.StepsTaken)
	assert.Equal(t, 30, results[1].Result.StepsTaken)
	assert.Equal(t, "detuned", results[1].Name)
	assert.Contains(t, log.String(), "running step 2/2: detuned")
}

func TestSweepValues(t *testing.T) {
	s := &ParameterSweep{ParamMin: 1, ParamMax: 2, NumPoints: 5}
	assert.Equal(t, []float64{1, 1.25, 1.5, 1.75, 2}, s.Values())

	s.NumPoints = 1
	assert.Equal(t, []float64{1}, s.Values())
}

func TestRunSweep(t *testing.T) {
	base := config.DefaultConfig()
	base.Steps = 40

	results, err := RunSweep(context.Background(), &ParameterSweep{
		Base:      base,
		ParamName: "field_scale",
		ParamMin:  0.999,
		ParamMax:  1.001,
		NumPoints: 3,
	}, experiment.NewRegistry())
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, 40, r.StepsTaken, "point %d", i)
		assert.Equal(t, 1.0, r.Metrics["survival"])
	}
	assert.InDelta(t, 1.0, results[1].ParamValue, 1e-12)
	assert.Equal(t, 1.0, base.LatticeParams.FieldScale)

	_, err = RunSweep(context.Background(), &ParameterSweep{Base: base, ParamName: "cells", NumPoints: 2}, experiment.NewRegistry())
	assert.Error(t, err)
	_, err = RunSweep(context.Background(), &ParameterSweep{Base: base, ParamName: "field_scale"}, experiment.NewRegistry())
	assert.Error(t, err)
}

func TestPerturb(t *testing.T) {
	b := config.DefaultBeam()
	perturb(&b, 0.01, 0.002)
	assert.InDelta(t, -config.DefaultBendRadius-0.01, b.Position[0], 1e-12)
	assert.InDelta(t, config.DefaultStraightLength/2, b.Position[1], 1e-12)
	assert.InDelta(t, 0.002, b.Position[2], 1e-12)
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.DefaultConfig()
	base.Steps = 20

	mc := &MonteCarloConfig{Base: base, Radial: 0.001, Vertical: 0.001, NumTrials: 4, Seed: 7}
	results, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry())
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.Stable)
		assert.LessOrEqual(t, r.Offset[0], 0.001)
		assert.GreaterOrEqual(t, r.Offset[0], -0.001)
	}
	stable, unstable := MonteCarloStats(results)
	assert.Equal(t, 4, stable)
	assert.Equal(t, 0, unstable)

	again, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, results[2].Offset, again[2].Offset)

	_, err = RunMonteCarlo(context.Background(), &MonteCarloConfig{Base: base}, experiment.NewRegistry())
	assert.Error(t, err)
}
