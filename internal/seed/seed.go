package seed

import (
	"hash/fnv"
	"math"
)

// Mix combines two 32-bit values into an independent sub-seed.
// Distinct salts against the same base produce uncorrelated streams.
func Mix(a, b uint32) uint32 {
	h := a ^ (b * 0x9E3779B9)
	h ^= h >> 16
	h *= 0x85EBCA6B
	h ^= h >> 13
	h *= 0xC2B2AE35
	h ^= h >> 16
	return h
}

// MixAll folds every salt into base, left to right.
func MixAll(base uint32, salts ...uint32) uint32 {
	h := base
	for _, s := range salts {
		h = Mix(h, s)
	}
	return h
}

// Hash is the 32-bit FNV-1a hash of s, used to turn identities into salts.
func Hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Rand is a mulberry32 generator. The zero value is a valid generator seeded with 0.
// Not safe for concurrent use; derive one per goroutine with Mix.
type Rand struct {
	state uint32
}

// New returns a generator whose output depends only on seed.
func New(seed uint32) *Rand {
	return &Rand{state: seed}
}

// Uint32 returns the next raw 32-bit output.
func (r *Rand) Uint32() uint32 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Uint32()) / 4294967296.0
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Float64() * float64(n))
}

// Range returns a value in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// IntRange returns a value in [lo, hi].
func (r *Rand) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// Chance reports true with probability p.
func (r *Rand) Chance(p float64) bool {
	return r.Float64() < p
}

// LogRange draws log-uniformly from [10^lo, 10^hi).
func (r *Rand) LogRange(lo, hi float64) float64 {
	return math.Pow(10, r.Range(lo, hi))
}

// Shuffle permutes n elements with Fisher-Yates using swap.
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}

// Pick returns an index drawn from the categorical distribution given by weights.
// Weights need not sum to one; the last index absorbs rounding.
func (r *Rand) Pick(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	x := r.Float64() * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(weights) - 1
}
