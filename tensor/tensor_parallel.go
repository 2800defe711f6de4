// tensor_parallel.go - Worker-Verteilung fuer grosse elementweise Kernels
package tensor

import (
	"sync"

	"github.com/7blacky7/sd35-reverse/envconfig"
)

// parallelThreshold is the element count below which kernels run sequentially.
const parallelThreshold = 1 << 15

// parallelFor runs fn over [0, n) - parallel for large inputs, sequential otherwise.
// Ranges are disjoint, fn must not touch elements outside its range.
func parallelFor(n int, fn func(start, end int)) {
	numWorkers := envconfig.NumThreads()
	if n < parallelThreshold || numWorkers <= 1 {
		fn(0, n)
		return
	}
	if numWorkers > n {
		numWorkers = n
	}

	per := (n + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * per
		end := start + per
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
