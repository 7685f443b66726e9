// Package correlate holds the numeric cores of the visibility engine: the
// per-baseline, per-source accumulation bodies, the geometric phase (K)
// factors, the baseline index arithmetic and the smearing terms.
//
// Everything here is a pure function of slices and scalars with no
// scheduling: the execution backends (backends/pool, backends/grid) wrap
// these cores with their own iteration and parallelism, so the numerically
// sensitive logic stays single-sourced and testable on its own.
//
// All cores are generic over fcomplex.Float and instantiated for float32 and
// float64. The float32 instantiation is expected to pass a non-nil Kahan
// guard to the accumulating functions; the float64 one passes nil.
package correlate

import (
	"github.com/gomlx/exceptions"
)

// NumBaselines returns the number of unordered station pairs,
// numStations·(numStations−1)/2. Fewer than two stations means no baselines.
func NumBaselines(numStations int) int {
	if numStations < 2 {
		return 0
	}
	return numStations * (numStations - 1) / 2
}

// BaselineIndex maps the ordered station pair (q, p), p > q, to its unique
// slot in [0, NumBaselines(numStations)).
//
// For a fixed q the indices produced as p ranges over q+1..numStations-1
// form one contiguous block, which is what lets each q be processed by a
// different worker with no overlapping output writes.
func BaselineIndex(numStations, q, p int) int {
	if q < 0 || p <= q || p >= numStations {
		exceptions.Panicf("correlate.BaselineIndex: invalid pair (q=%d, p=%d) for %d stations", q, p, numStations)
	}
	return q*(numStations-1) - (q-1)*q/2 + (p - q - 1)
}

// BaselinePair inverts BaselineIndex: it returns the (q, p) pair stored at
// the given slot.
func BaselinePair(numStations, index int) (q, p int) {
	if index < 0 || index >= NumBaselines(numStations) {
		exceptions.Panicf("correlate.BaselinePair: index %d out of range for %d stations", index, numStations)
	}
	for block := numStations - 1; index >= block; block-- {
		index -= block
		q++
	}
	return q, q + 1 + index
}
