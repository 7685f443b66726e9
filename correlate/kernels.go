package correlate

import "github.com/radioastro/visim/types/fcomplex"

// Sources bundles the per-source slices of one sky batch as typed views.
// All slices share the same length; A, B and C are nil for point sources.
type Sources[T fcomplex.Float] struct {
	L, M    []T
	StokesI []T
	StokesQ []T
	StokesU []T
	StokesV []T
	A, B, C []T
}

// Len returns the number of sources in the batch.
func (s *Sources[T]) Len() int { return len(s.StokesI) }

// Baseline holds the projected geometry of one station pair, ready for the
// inner source loop. UU and VV already include the fractional-bandwidth
// factor of the smearing term; UU2, VV2 and UUVV were derived from the
// unscaled baseline, since the smearing rescale must not leak into the
// Gaussian shape inputs.
type Baseline[T fcomplex.Float] struct {
	UU, VV         T
	UU2, VV2, UUVV T
}

// MakeBaseline derives the per-baseline scalars for stations p and q from
// their coordinates in metres. invWavelength converts to wavelengths;
// fracBandwidth scales the smearing argument.
func MakeBaseline[T fcomplex.Float](up, vp, uq, vq, invWavelength, fracBandwidth T) Baseline[T] {
	uu := (up - uq) * invWavelength
	vv := (vp - vq) * invWavelength
	bl := Baseline[T]{UU2: uu * uu, VV2: vv * vv, UUVV: 2 * uu * vv}
	// Shape-term inputs above are fixed before the smearing rescale below.
	bl.UU = uu * fracBandwidth
	bl.VV = vv * fracBandwidth
	return bl
}

// BaselinePoint runs the inner source loop of the point-source correlator
// for one baseline: every source's contribution, attenuated by bandwidth
// smearing only, is accumulated into sum (with Kahan guard when non-nil).
// jp and jq are the Jones vectors of stations p and q for this batch.
func BaselinePoint[T fcomplex.Float](sum, guard *fcomplex.Jones[T],
	jp, jq []fcomplex.Jones[T], src *Sources[T], bl Baseline[T]) {
	for i := range src.StokesI {
		r1 := SincNorm(bl.UU*src.L[i] + bl.VV*src.M[i])
		AccumulateVisibility(sum, guard, &jp[i], &jq[i],
			src.StokesI[i], src.StokesQ[i], src.StokesU[i], src.StokesV[i], r1)
	}
}

// BaselineGaussian is BaselinePoint with the per-source elliptical-Gaussian
// shape attenuation applied on top of the smearing term. With all shape
// coefficients zero it reproduces BaselinePoint bit for bit, since the
// attenuation becomes exp(0) = 1.
func BaselineGaussian[T fcomplex.Float](sum, guard *fcomplex.Jones[T],
	jp, jq []fcomplex.Jones[T], src *Sources[T], bl Baseline[T]) {
	for i := range src.StokesI {
		r1 := SincNorm(bl.UU*src.L[i] + bl.VV*src.M[i])
		r2 := GaussWeight(src.A[i], src.B[i], src.C[i], bl.UU2, bl.UUVV, bl.VV2)
		AccumulateVisibility(sum, guard, &jp[i], &jq[i],
			src.StokesI[i], src.StokesQ[i], src.StokesU[i], src.StokesV[i], r1*r2)
	}
}
