// Package parallel provides small helpers for CPU-parallel work over row
// ranges and independent task lists.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides the specified total number (items) according to the
// number of CPU cores, and executes fn in parallel for each range [start, end).
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items // No need for more workers than items
	}

	// Number of items per worker (ceiling division)
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

// ParallelizeWithThreshold parallelizes only when the number of items exceeds
// the threshold; below it the work runs sequentially on the calling goroutine.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// RunTasks executes n independent tasks on a bounded worker pool and returns
// the per-task errors. Task index i is passed to fn; results land in slot i,
// so callers can collect outputs into pre-sized slices without locking.
// workers <= 0 uses one worker per CPU core.
func RunTasks(n, workers int, fn func(task int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				errs[task] = fn(task)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return errs
}
