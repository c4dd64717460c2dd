// Package parallel splits index ranges across goroutines for the CPU kernels.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls how For distributes work.
type Config struct {
	Enabled      bool // Run on multiple goroutines when true.
	NumWorkers   int  // Upper bound on goroutines per call.
	MinChunkSize int  // Items below this count run inline.
}

// Workers returns the number of hardware threads reported by the CPU, falling
// back to runtime.NumCPU when detection fails. The result never exceeds GOMAXPROCS.
func Workers() int {
	n := cpuid.CPU.LogicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, runtime.GOMAXPROCS(0)))
}

// DefaultConfig is tuned for fine-grained element loops.
func DefaultConfig() Config {
	n := Workers()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// CoarseConfig is for loops whose items are whole feature maps, where even a
// handful of items is worth spreading out.
func CoarseConfig() Config {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 2
	return cfg
}

// WithWorkers returns a copy of cfg limited to n workers. n <= 0 keeps cfg as is.
func (c Config) WithWorkers(n int) Config {
	if n <= 0 {
		return c
	}
	c.NumWorkers = n
	c.Enabled = n > 1
	return c
}

// For calls f(i) for every i in [0, n) and returns after all calls finish.
// Calls on different goroutines must touch disjoint memory.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch iterates the batch x channels grid used by the 4D kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
