package common

import (
	"math"
	"math/rand/v2"
)

// Rand returns a uniformly distributed value in [low, high). When high < low the range is mirrored and the
// result falls in (high, low].
//
// Parameters:
//   - low: the inclusive lower bound
//   - high: the exclusive upper bound
//
// Returns:
//   - float64: the random value
func Rand(low, high float64) float64 {
	return RandWith(nil, low, high)
}

// RandInt returns a random integer between the ceilings of low and high, the upper one excluded.
// Both bounds are rounded up before drawing, so RandInt(0.2, 3) draws from {1, 2}.
//
// Parameters:
//   - low: the lower bound, rounded up
//   - high: the upper bound, rounded up and excluded
//
// Returns:
//   - int: the random integer
func RandInt(low, high float64) int {
	return RandIntWith(nil, low, high)
}

// RandWith is Rand drawing from r, or from the global source when r is nil.
func RandWith(r *rand.Rand, low, high float64) float64 {
	f := rand.Float64
	if r != nil {
		f = r.Float64
	}
	return low + f()*(high-low)
}

// RandIntWith is RandInt drawing from r, or from the global source when r is nil.
func RandIntWith(r *rand.Rand, low, high float64) int {
	return int(math.Floor(RandWith(r, math.Ceil(low), math.Ceil(high))))
}
