package dynamo

import (
	"github.com/dgravesa/go-parallel/parallel"
)

// ParallelFor runs fn(i) for i in [0, n) on up to workers goroutines.
// Small loops and workers <= 1 run inline.
func ParallelFor(n, workers, minChunk int, fn func(i int)) {
	if workers <= 1 || n <= minChunk {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	parallel.WithNumGoroutines(workers).For(n, func(i, _ int) {
		fn(i)
	})
}
