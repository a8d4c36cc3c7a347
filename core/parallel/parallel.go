// Package parallel provides the small worker-pool helpers used by the
// estimators: range chunking for per-row work and an indexed pool for
// per-tree and per-fold work.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Workers normalizes a requested worker count. n <= 0 means one worker per
// CPU; the result never exceeds items (when items > 0).
func Workers(n, items int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if items > 0 && n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Parallelize divides items into one contiguous range per CPU core and
// executes fn(start, end) for each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, 0, fn)
}

// ParallelizeN is Parallelize with an explicit worker count (<= 0 means
// runtime.NumCPU()).
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := Workers(workers, items)

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of
// items exceeds the threshold. Below it, fn(0, items) runs on the caller's
// goroutine.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn(ctx, i) for every i in [0, n) on a pool of at most
// workers goroutines. Indices are handed out in ascending order.
//
// The first failure cancels the context passed to the remaining calls and
// no further indices are started. The returned error is the one with the
// lowest index among the calls that failed, so the result does not depend on
// scheduling when fn itself is deterministic. If ctx is cancelled before all
// indices have run, ctx.Err() is returned.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers = Workers(workers, n)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan int)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range in {
				if err := fn(ctx, i); err != nil {
					errs[i] = err
					cancel()
				}
			}
		}()
	}

	dispatched := 0
feed:
	for ; dispatched < n; dispatched++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case in <- dispatched:
		}
	}
	close(in)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if dispatched < n {
		return ctx.Err()
	}
	return nil
}
