// Package random supplies the uniform [0,1) draws the matcher samples
// slippage and latency from. It mirrors pkg/idgen's shape: a small
// stateful generator type guarded for concurrent use, injected into
// callers by interface rather than reached for as a global.
package random

import (
	"math/rand/v2"
	"sync"
)

// Source produces the next uniform value in [0,1).
type Source interface {
	Float64() float64
}

const (
	lcgModulus    = 1<<31 - 1 // 2^31 - 1, Mersenne prime
	lcgMultiplier = 48271     // Park-Miller "minimal standard" multiplier
)

// LCG is a deterministic Park-Miller linear congruential generator. Two
// LCGs constructed with the same seed and driven with the same call
// sequence produce identical draws, which is what makes matcher behavior
// reproducible in tests.
type LCG struct {
	mu    sync.Mutex
	state int64
}

// NewLCG normalizes seed into (0, 2^31-1) and returns a ready generator.
// A seed of 0 would stay fixed at 0 forever, so it is mapped to 1.
func NewLCG(seed int64) *LCG {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	if s == 0 {
		s = 1
	}
	return &LCG{state: s}
}

// Float64 advances the generator and returns the next draw in [0,1).
func (g *LCG) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = (g.state * lcgMultiplier) % lcgModulus
	return float64(g.state) / float64(lcgModulus)
}

// Platform wraps the nondeterministic runtime RNG for production use.
type Platform struct{}

// NewPlatform returns a Source backed by math/rand/v2's global generator.
func NewPlatform() Platform {
	return Platform{}
}

// Float64 returns the next platform-random draw in [0,1).
func (Platform) Float64() float64 {
	return rand.Float64()
}
