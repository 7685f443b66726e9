package correlate

import (
	"math"

	"github.com/radioastro/visim/types/fcomplex"
)

// SincNorm returns the normalized sinc sin(πx)/(πx), the bandwidth-smearing
// attenuation of a visibility. SincNorm(0) is exactly 1, so zero bandwidth
// or a source at the delay centre is not attenuated.
func SincNorm[T fcomplex.Float](x T) T {
	if x == 0 {
		return 1
	}
	px := math.Pi * float64(x)
	return T(math.Sin(px) / px)
}

// GaussWeight returns exp(−(a·uu² + b·uuvv + c·vv²)), the attenuation of an
// elliptical-Gaussian source on a baseline. uuvv already carries the factor
// of two (it is 2·uu·vv as derived by the caller before the smearing
// rescale).
func GaussWeight[T fcomplex.Float](a, b, c, uu2, uuvv, vv2 T) T {
	return T(math.Exp(-float64(a*uu2 + b*uuvv + c*vv2)))
}
