package sky

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel(t *testing.T) {
	m := New[float64](3)
	assert.Equal(t, 3, m.NumSources())
	assert.False(t, m.HasShape())
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0.0, m.L[i])
		assert.Equal(t, 1.0, m.N[i], "n defaults to the phase centre")
	}
}

func TestSetSourceReconstructsN(t *testing.T) {
	m := New[float64](1)
	l, mm := 0.3, -0.4
	require.NoError(t, m.SetSource(0, l, mm, 2, 0.5, 0.1, -0.1))
	assert.InDelta(t, math.Sqrt(1-l*l-mm*mm), m.N[0], 1e-15)
	assert.Equal(t, 2.0, m.StokesI[0])
	assert.Equal(t, 0.5, m.StokesQ[0])
}

func TestSetSourceRejectsOffSphere(t *testing.T) {
	m := New[float64](1)
	err := m.SetSource(0, 0.8, 0.8, 1, 0, 0, 0)
	require.Error(t, err)

	require.Error(t, m.SetSource(-1, 0, 0, 1, 0, 0, 0))
	require.Error(t, m.SetSource(1, 0, 0, 1, 0, 0, 0))
}

func TestSetGaussianShapeCircularSource(t *testing.T) {
	// A circular source has a = c and b = 0 regardless of position angle.
	m := New[float32](2)
	const fwhm = 1e-3
	require.NoError(t, m.SetGaussianShape(0, fwhm, fwhm, 0))
	require.NoError(t, m.SetGaussianShape(1, fwhm, fwhm, 1.234))
	require.True(t, m.HasShape())

	assert.InDelta(t, float64(m.A[0]), float64(m.C[0]), 1e-12)
	assert.InDelta(t, 0, float64(m.B[0]), 1e-12)
	assert.InDelta(t, float64(m.A[0]), float64(m.A[1]), 1e-12, "rotation invariant")
	assert.InDelta(t, 0, float64(m.B[1]), 1e-10)
}

func TestSetGaussianShapeCoefficients(t *testing.T) {
	m := New[float64](1)
	const fwhmMaj, fwhmMin, pa = 2e-3, 1e-3, 0.6
	require.NoError(t, m.SetGaussianShape(0, fwhmMaj, fwhmMin, pa))

	sigmaMaj2 := math.Pow(fwhmMaj/(2*math.Sqrt(2*math.Ln2)), 2)
	sigmaMin2 := math.Pow(fwhmMin/(2*math.Sqrt(2*math.Ln2)), 2)
	cos, sin := math.Cos(pa), math.Sin(pa)
	twoPi2 := 2 * math.Pi * math.Pi
	assert.InDelta(t, twoPi2*(sigmaMaj2*cos*cos+sigmaMin2*sin*sin), m.A[0], 1e-15)
	assert.InDelta(t, twoPi2*cos*sin*(sigmaMin2-sigmaMaj2), m.B[0], 1e-15)
	assert.InDelta(t, twoPi2*(sigmaMaj2*sin*sin+sigmaMin2*cos*cos), m.C[0], 1e-15)
}

func TestSetGaussianShapeValidation(t *testing.T) {
	m := New[float64](1)
	require.Error(t, m.SetGaussianShape(0, -1e-3, 1e-4, 0), "negative major axis")
	require.Error(t, m.SetGaussianShape(0, 1e-4, 1e-3, 0), "minor exceeds major")
	require.Error(t, m.SetGaussianShape(5, 1e-3, 1e-4, 0), "index out of range")
	assert.False(t, m.HasShape(), "failed calls must not allocate shape arrays")
}

func TestShapelessSourcesStayPointLike(t *testing.T) {
	// Giving one source a shape leaves the others with zero coefficients.
	m := New[float64](3)
	require.NoError(t, m.SetGaussianShape(1, 1e-3, 5e-4, 0.2))
	assert.Equal(t, 0.0, m.A[0])
	assert.Equal(t, 0.0, m.B[0])
	assert.Equal(t, 0.0, m.C[0])
	assert.Greater(t, m.A[1], 0.0)
}
