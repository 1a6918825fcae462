// Package capacity abstracts the memory-budget probe that decides between
// the vectorised and streaming decode paths.
//
// Probing host memory is OS-specific; hiding it behind an interface keeps
// decode logic deterministic and lets tests force either path.
package capacity

import (
	"math"
	"runtime/debug"
)

// Estimator reports the byte budget available for a transient decode
// intermediate such as the gathered frame matrix.
type Estimator interface {
	Budget() int
}

// DefaultBudget is the budget assumed when the Go runtime carries no
// memory limit to derive one from.
const DefaultBudget = 1 << 30

type fixed int

func (f fixed) Budget() int {
	return int(f)
}

// Fixed returns an Estimator with a constant budget.
func Fixed(n int) Estimator {
	return fixed(n)
}

type runtimeEstimator struct{}

func (runtimeEstimator) Budget() int {
	// SetMemoryLimit(-1) queries the current limit without changing it.
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return DefaultBudget
	}

	// Leave most of the limit to the series itself and decoder overhead.
	return int(limit / 4)
}

// Default returns the estimator used when the caller supplies none. It
// derives a budget from the runtime memory limit when one is set and falls
// back to DefaultBudget otherwise.
func Default() Estimator {
	return runtimeEstimator{}
}
