// Package parallel provides chunked parallel loops for element-wise
// kernels over nonzero buffers.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled  bool // Whether parallel execution is enabled.
	Workers  int  // Number of worker goroutines to use.
	MinChunk int  // Minimum nonzeros per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:  n > 1,
		Workers:  n,
		MinChunk: 4096, // Element-wise kernels are cheap; large chunks only.
	}
}

// For executes f(k) for k in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n
// is below the chunk threshold.
func For(n int, f func(k int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunk {
		for k := 0; k < n; k++ {
			f(k)
		}
		return
	}

	chunk := (n + cfg.Workers - 1) / cfg.Workers
	if chunk < cfg.MinChunk {
		chunk = cfg.MinChunk
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for k := s; k < e; k++ {
				f(k)
			}
		}(start, end)
	}
	wg.Wait()
}
