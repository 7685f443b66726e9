// Package sky holds the source catalogue that feeds the correlators: per
// source the direction cosines relative to the phase centre, the Stokes
// brightness, and optionally the elliptical-Gaussian shape coefficients of
// an extended source.
//
// The model is a struct of arrays so its fields upload directly as backend
// buffers, and it is generic over the engine's two floating-point widths.
package sky

import (
	"math"

	"github.com/pkg/errors"

	"github.com/radioastro/visim/types/fcomplex"
)

// Model is a catalogue of numSources sources. All slices share the same
// length; A, B and C stay nil until the first Gaussian shape is set.
type Model[T fcomplex.Float] struct {
	// Direction cosines relative to the phase centre; N is reconstructed
	// from L and M on the unit sphere.
	L, M, N []T

	// Stokes brightness in Jy.
	StokesI, StokesQ, StokesU, StokesV []T

	// Elliptical-Gaussian shape coefficients in projected baseline space.
	A, B, C []T
}

// New returns a model of numSources empty sources at the phase centre
// (l = m = 0, n = 1) with zero brightness.
func New[T fcomplex.Float](numSources int) *Model[T] {
	m := &Model[T]{
		L:       make([]T, numSources),
		M:       make([]T, numSources),
		N:       make([]T, numSources),
		StokesI: make([]T, numSources),
		StokesQ: make([]T, numSources),
		StokesU: make([]T, numSources),
		StokesV: make([]T, numSources),
	}
	for i := range m.N {
		m.N[i] = 1
	}
	return m
}

// NumSources returns the catalogue size.
func (s *Model[T]) NumSources() int { return len(s.L) }

// HasShape reports whether any source carries a Gaussian shape, which
// selects the Gaussian correlator over the point one.
func (s *Model[T]) HasShape() bool { return s.A != nil }

// SetSource fills source i. The direction cosines must lie on the unit
// sphere: l² + m² ≤ 1.
func (s *Model[T]) SetSource(i int, l, m, stokesI, stokesQ, stokesU, stokesV T) error {
	if i < 0 || i >= s.NumSources() {
		return errors.Errorf("source index %d out of range [0,%d)", i, s.NumSources())
	}
	r2 := float64(l)*float64(l) + float64(m)*float64(m)
	if r2 > 1 {
		return errors.Errorf("source %d direction cosines off the unit sphere: l=%v m=%v", i, l, m)
	}
	s.L[i], s.M[i] = l, m
	s.N[i] = T(math.Sqrt(1 - r2))
	s.StokesI[i], s.StokesQ[i] = stokesI, stokesQ
	s.StokesU[i], s.StokesV[i] = stokesU, stokesV
	return nil
}

// fwhmToSigma converts a full width at half maximum to a Gaussian standard
// deviation.
const fwhmToSigma = 1 / 2.3548200450309493 // 1 / (2·sqrt(2·ln 2))

// SetGaussianShape gives source i an elliptical-Gaussian extent. The
// widths are FWHM in radians; positionAngle is the major-axis angle in
// radians, measured from north to east. The first call switches the whole
// model to the Gaussian correlator; sources without a shape keep a=b=c=0,
// which attenuates nothing.
//
// The coefficients are the uv-plane image of the sky-plane Gaussian:
//
//	a = 2π²(σmaj²cos²θ + σmin²sin²θ)
//	b = 2π² cosθ sinθ (σmin² − σmaj²)
//	c = 2π²(σmaj²sin²θ + σmin²cos²θ)
//
// evaluated against exp(−(a·uu² + b·2uuvv + c·vv²)) in the kernel.
func (s *Model[T]) SetGaussianShape(i int, fwhmMaj, fwhmMin, positionAngle float64) error {
	if i < 0 || i >= s.NumSources() {
		return errors.Errorf("source index %d out of range [0,%d)", i, s.NumSources())
	}
	if fwhmMaj < 0 || fwhmMin < 0 {
		return errors.Errorf("source %d has negative FWHM (%v, %v)", i, fwhmMaj, fwhmMin)
	}
	if fwhmMin > fwhmMaj {
		return errors.Errorf("source %d minor axis %v exceeds major axis %v", i, fwhmMin, fwhmMaj)
	}
	if s.A == nil {
		s.A = make([]T, s.NumSources())
		s.B = make([]T, s.NumSources())
		s.C = make([]T, s.NumSources())
	}
	sigmaMaj2 := fwhmMaj * fwhmToSigma * fwhmMaj * fwhmToSigma
	sigmaMin2 := fwhmMin * fwhmToSigma * fwhmMin * fwhmToSigma
	cos, sin := math.Cos(positionAngle), math.Sin(positionAngle)
	twoPi2 := 2 * math.Pi * math.Pi
	s.A[i] = T(twoPi2 * (sigmaMaj2*cos*cos + sigmaMin2*sin*sin))
	s.B[i] = T(twoPi2 * cos * sin * (sigmaMin2 - sigmaMaj2))
	s.C[i] = T(twoPi2 * (sigmaMaj2*sin*sin + sigmaMin2*cos*cos))
	return nil
}
