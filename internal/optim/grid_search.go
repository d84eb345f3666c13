package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/experiment"
	"github.com/san-kum/accelsim/internal/metrics"
)

// GridSearch evaluates every combination of lattice parameter values and
// keeps the one with the best metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize selects the largest metric value instead of the smallest.
	Maximize bool
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("got %d parameters and %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search runs base with every grid point applied to its lattice parameters
// and returns the best point and its metric value. Points whose config is
// rejected are recorded in trials and skipped.
func (g *GridSearch) Search(ctx context.Context, registry *experiment.Registry, base *config.Config, metricName string) (map[string]float64, float64, []Trial, error) {
	best := math.Inf(1)
	if g.Maximize {
		best = math.Inf(-1)
	}
	var (
		bestParams map[string]float64
		trials     []Trial
	)

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) error {
		val, err := evaluate(ctx, registry, base, params, metricName)
		trials = append(trials, Trial{Params: params, Value: val, Err: err})
		if err != nil {
			return ctx.Err()
		}
		if (g.Maximize && val > best) || (!g.Maximize && val < best) {
			best, bestParams = val, params
		}
		return nil
	})
	if err != nil {
		return nil, 0, trials, err
	}
	if bestParams == nil {
		return nil, 0, trials, fmt.Errorf("no grid point produced %s", metricName)
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if depth == len(g.paramNames) {
		return visit(current)
	}

	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[g.paramNames[depth]] = val

		if err := g.searchRecursive(ctx, depth+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(ctx context.Context, registry *experiment.Registry, base *config.Config, params map[string]float64, metricName string) (float64, error) {
	cfg := base.Clone()
	for k, v := range params {
		if err := cfg.LatticeParams.Set(k, v); err != nil {
			return 0, err
		}
	}

	exp := experiment.New(cfg, registry)
	if err := exp.Setup(metrics.Default()); err != nil {
		return 0, err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("unknown metric: %s", metricName)
	}
	return val, nil
}
