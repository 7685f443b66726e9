package correlate

import (
	"math"

	"github.com/radioastro/visim/types/fcomplex"
)

// PhaseFactor returns the geometric phase (K) term for one station and one
// source,
//
//	exp(+i · wavenumber · (u·l + v·m + w·(n−1))),
//
// with station coordinates in metres relative to the array reference point,
// wavenumber 2π/λ in rad/m, and (l,m,n) the source direction cosines. The
// w term multiplies n−1, so a source at the phase centre (l=m=0, n=1) has
// zero phase regardless of w.
func PhaseFactor[T fcomplex.Float](wavenumber, u, v, w, l, m, n T) fcomplex.Complex[T] {
	phase := float64(wavenumber) * (float64(u)*float64(l) +
		float64(v)*float64(m) + float64(w)*(float64(n)-1))
	sin, cos := math.Sincos(phase)
	return fcomplex.Complex[T]{Re: T(cos), Im: T(sin)}
}

// EvaluateK fills k, laid out [station][source], with the phase factors of
// every (station, source) pair. This is the sequential core; both backends
// parallelize over the same grid.
func EvaluateK[T fcomplex.Float](k []fcomplex.Complex[T], wavenumber T,
	u, v, w []T, l, m, n []T) {
	numSources := len(l)
	for s := range u {
		row := k[s*numSources : (s+1)*numSources]
		for i := range row {
			row[i] = PhaseFactor(wavenumber, u[s], v[s], w[s], l[i], m[i], n[i])
		}
	}
}
