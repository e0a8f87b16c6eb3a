// Package chance holds the shared random source and the probability gate used
// by every effect category.
package chance

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Source is a concurrency-safe random source. It is not cryptographically strong.
type Source interface {
	// Float64 returns a uniform value in [0.0, 1.0).
	Float64() float64
	// Int64N returns a uniform value in [0, n). It panics if n <= 0.
	Int64N(n int64) int64
}

// lockedSource guards a *rand.Rand with a mutex.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a Source seeded deterministically from seed.
func NewSource(seed uint64) Source {
	return &lockedSource{
		rng: rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *lockedSource) Int64N(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int64N(n)
}

var (
	defaultOnce   sync.Once
	defaultSource Source
)

// Default returns the process-wide source, seeded from the clock on first use.
func Default() Source {
	defaultOnce.Do(func() {
		defaultSource = NewSource(uint64(time.Now().UnixNano()))
	})
	return defaultSource
}

// Roll draws once from src and reports whether rate >= draw. Roll(1) is always
// true; Roll(0) is true only when the draw is exactly zero.
func Roll(src Source, rate float64) bool {
	return rate >= src.Float64()
}

// Between returns a uniform integer in the inclusive range [lo, hi]. The
// range may hold at most math.MaxInt64 values.
func Between(src Source, lo, hi int64) (int64, error) {
	if hi < lo {
		return 0, fmt.Errorf("invalid range: max %d < min %d", hi, lo)
	}
	if hi == lo {
		return lo, nil
	}
	span := uint64(hi) - uint64(lo)
	if span >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid range: [%d, %d] is too wide", lo, hi)
	}
	return lo + src.Int64N(int64(span)+1), nil
}
