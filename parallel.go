package quickentity

import (
	"runtime"
	"sync"
)

// parallelMap implements spec.md §5's per-sub-entity first pass: each row
// is converted independently and the result is written straight into its
// own slot, so the returned slice is always in the same insertion order a
// sequential loop would have produced regardless of worker scheduling.
// Grounded on the teacher's particles_ecs.go worker-pool shape (clamped
// GOMAXPROCS worker count, index-channel fan-out, sync.WaitGroup join),
// simplified here because slot ownership (not a results channel) is
// enough to guarantee order.
func parallelMap[T, R any](items []T, parallel bool, convert func(int, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, nil
	}
	if !parallel || len(items) == 1 {
		for i, item := range items {
			r, err := convert(i, item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}

	workerCount := runtime.GOMAXPROCS(0)
	if workerCount > 8 {
		workerCount = 8
	}
	if workerCount > len(items) {
		workerCount = len(items)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workerCount)

	var errMu sync.Mutex
	var firstErr error

	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				r, err := convert(i, items[i])
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				out[i] = r
			}
		}()
	}

	for i := range items {
		indices <- i
	}
	close(indices)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
