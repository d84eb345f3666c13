package sim

import (
	"context"
	"sync"

	"github.com/san-kum/accelsim/internal/accelerator"
)

// Builder creates an independent accelerator for one ensemble member.
type Builder func() (*accelerator.Accelerator, error)

// Ensemble runs independent accelerators concurrently with the same config.
type Ensemble struct {
	builders []Builder
	metrics  func() []Metric
}

// NewEnsemble creates an ensemble. metrics, if non-nil, is called once per
// member so metric state is never shared.
func NewEnsemble(metrics func() []Metric, builders ...Builder) *Ensemble {
	return &Ensemble{builders: builders, metrics: metrics}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(e.builders))
	errs := make([]error, len(e.builders))

	var wg sync.WaitGroup
	for i, build := range e.builders {
		wg.Add(1)
		go func(idx int, build Builder) {
			defer wg.Done()

			acc, err := build()
			if err != nil {
				errs[idx] = err
				return
			}
			s := New(acc)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}
			results[idx], errs[idx] = s.Run(ctx, cfg)
		}(i, build)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
