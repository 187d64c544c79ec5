// License: MIT Copyright: 2026, jxltk contributors

// Package workerpool implements the parallel runner handed to a codec
// session to parallelise pixel decoding of a single frame (spec.md §5). It
// is a generalisation of tools/utils/utils.go's Context.SafeParallel: each
// Run splits the work into contiguous slices and starts one goroutine per
// slice, with panics converted into errors rather than crashing the process.
package workerpool

import (
	"fmt"
	"runtime"
	"sync"

	parallel "github.com/kovidgoyal/go-parallel"
)

var _ = fmt.Print

// Pool is a small fixed-size worker pool. A zero numWorkers picks
// runtime.NumCPU(), mirroring Context.EffectiveNumberOfThreads.
type Pool struct {
	numWorkers int
}

func New(numWorkers int) *Pool {
	return &Pool{numWorkers: numWorkers}
}

func (p *Pool) NumWorkers() int {
	if p.numWorkers > 0 {
		return p.numWorkers
	}
	return max(1, runtime.NumCPU())
}

// Run splits [0, n) into NumWorkers() contiguous slices and calls fn(start,
// end) for each, concurrently. If any worker panics, Run returns an error
// built from its stack trace (at most one, if several panic concurrently);
// it still waits for every other worker to finish first.
func (p *Pool) Run(n int, fn func(start, end int)) (err error) {
	if n <= 0 {
		return nil
	}
	workers := min(p.NumWorkers(), n)
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	var mu sync.Mutex
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e := parallel.Format_stacktrace_on_panic(r, 1)
					mu.Lock()
					if err == nil {
						err = e
					}
					mu.Unlock()
				}
			}()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
	return
}
