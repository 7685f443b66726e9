package pool

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/correlate"
	"github.com/radioastro/visim/types/fcomplex"
)

// testSky is a deterministic batch of stations and sources for kernel tests.
type testSky[T fcomplex.Float] struct {
	numStations, numSources int

	u, v, w        []T
	l, m, n        []T
	si, sq, su, sv []T
	sa, sb, sc     []T

	jones []fcomplex.Jones[T]
}

func makeTestSky[T fcomplex.Float](numStations, numSources int, shaped bool) *testSky[T] {
	sky := &testSky[T]{numStations: numStations, numSources: numSources}
	for s := 0; s < numStations; s++ {
		f := float64(s)
		sky.u = append(sky.u, T(1000*math.Sin(f*1.7)))
		sky.v = append(sky.v, T(800*math.Cos(f*0.9)))
		sky.w = append(sky.w, T(50*math.Sin(f*2.3)))
	}
	for i := 0; i < numSources; i++ {
		f := float64(i)
		l := 0.01 * math.Sin(f*0.61)
		m := 0.01 * math.Cos(f*1.13)
		sky.l = append(sky.l, T(l))
		sky.m = append(sky.m, T(m))
		sky.n = append(sky.n, T(math.Sqrt(1-l*l-m*m)))
		sky.si = append(sky.si, T(1+0.5*math.Sin(f)))
		sky.sq = append(sky.sq, T(0.1*math.Cos(f*0.4)))
		sky.su = append(sky.su, T(0.05*math.Sin(f*0.8)))
		sky.sv = append(sky.sv, T(0.02*math.Cos(f*1.6)))
		if shaped {
			sky.sa = append(sky.sa, T(1e-4*(1+math.Abs(math.Sin(f)))))
			sky.sb = append(sky.sb, T(1e-5*math.Cos(f)))
			sky.sc = append(sky.sc, T(1e-4*(1+math.Abs(math.Cos(f)))))
		}
	}
	sky.jones = make([]fcomplex.Jones[T], numStations*numSources)
	for idx := range sky.jones {
		f := float64(idx)
		sky.jones[idx] = fcomplex.Jones[T]{
			A: fcomplex.Complex[T]{Re: T(math.Cos(f * 0.3)), Im: T(math.Sin(f * 0.3))},
			B: fcomplex.Complex[T]{Re: T(0.1 * math.Sin(f * 0.7))},
			C: fcomplex.Complex[T]{Im: T(0.1 * math.Cos(f * 0.5))},
			D: fcomplex.Complex[T]{Re: T(math.Cos(f * 0.2)), Im: T(-math.Sin(f * 0.2))},
		}
	}
	return sky
}

// identityTestSky puts every source at the phase centre with unit Stokes I
// and identity responses.
func identityTestSky[T fcomplex.Float](numStations, numSources int) *testSky[T] {
	sky := makeTestSky[T](numStations, numSources, false)
	for i := 0; i < numSources; i++ {
		sky.l[i], sky.m[i], sky.n[i] = 0, 0, 1
		sky.si[i], sky.sq[i], sky.su[i], sky.sv[i] = 1, 0, 0, 0
	}
	for idx := range sky.jones {
		sky.jones[idx] = fcomplex.JonesIdentity[T]()
	}
	return sky
}

func upload(t testing.TB, be backends.Backend, flat any) backends.Buffer {
	buf, err := be.BufferFromFlat(flat)
	require.NoError(t, err)
	return buf
}

func (sky *testSky[T]) upload(t testing.TB, be backends.Backend) (
	vis, jones backends.Buffer, src backends.SourceParams, coords backends.StationCoords) {
	vis, err := be.NewBuffer(precisionOf[T](), backends.Jones, correlate.NumBaselines(sky.numStations))
	require.NoError(t, err)
	jones = upload(t, be, sky.jones)
	coords = backends.StationCoords{
		U: upload(t, be, sky.u),
		V: upload(t, be, sky.v),
		W: upload(t, be, sky.w),
	}
	src = backends.SourceParams{
		L: upload(t, be, sky.l), M: upload(t, be, sky.m), N: upload(t, be, sky.n),
		StokesI: upload(t, be, sky.si), StokesQ: upload(t, be, sky.sq),
		StokesU: upload(t, be, sky.su), StokesV: upload(t, be, sky.sv),
	}
	if sky.sa != nil {
		src.A = upload(t, be, sky.sa)
		src.B = upload(t, be, sky.sb)
		src.C = upload(t, be, sky.sc)
	}
	return
}

func precisionOf[T fcomplex.Float]() backends.Precision {
	var zero T
	if _, single := any(zero).(float32); single {
		return backends.Single
	}
	return backends.Double
}

// referenceVisibilities evaluates the correlators the slow, obvious way in
// float64, whatever the width under test.
func referenceVisibilities[T fcomplex.Float](sky *testSky[T],
	invWavelength, fracBandwidth float64, gaussian bool) []fcomplex.Jones[float64] {
	vis := make([]fcomplex.Jones[float64], correlate.NumBaselines(sky.numStations))
	for q := 0; q < sky.numStations; q++ {
		for p := q + 1; p < sky.numStations; p++ {
			uu := (float64(sky.u[p]) - float64(sky.u[q])) * invWavelength
			vv := (float64(sky.v[p]) - float64(sky.v[q])) * invWavelength
			uu2, vv2, uuvv := uu*uu, vv*vv, 2*uu*vv
			uuS, vvS := uu*fracBandwidth, vv*fracBandwidth
			var sum fcomplex.Jones[float64]
			for i := 0; i < sky.numSources; i++ {
				weight := correlate.SincNorm(uuS*float64(sky.l[i]) + vvS*float64(sky.m[i]))
				if gaussian {
					weight *= math.Exp(-(float64(sky.sa[i])*uu2 +
						float64(sky.sb[i])*uuvv + float64(sky.sc[i])*vv2))
				}
				jp := widenJones(sky.jones[p*sky.numSources+i])
				jq := widenJones(sky.jones[q*sky.numSources+i])
				correlate.AccumulateVisibility(&sum, nil, &jp, &jq,
					float64(sky.si[i]), float64(sky.sq[i]),
					float64(sky.su[i]), float64(sky.sv[i]), weight)
			}
			vis[correlate.BaselineIndex(sky.numStations, q, p)] = sum
		}
	}
	return vis
}

func widenJones[T fcomplex.Float](j fcomplex.Jones[T]) fcomplex.Jones[float64] {
	widen := func(c fcomplex.Complex[T]) fcomplex.Complex[float64] {
		return fcomplex.Complex[float64]{Re: float64(c.Re), Im: float64(c.Im)}
	}
	return fcomplex.Jones[float64]{A: widen(j.A), B: widen(j.B), C: widen(j.C), D: widen(j.D)}
}

func assertJonesSliceInDelta[T fcomplex.Float](t *testing.T,
	want []fcomplex.Jones[float64], got []fcomplex.Jones[T], delta float64) {
	require.Equal(t, len(want), len(got))
	for i := range want {
		g := widenJones(got[i])
		assert.InDelta(t, want[i].A.Re, g.A.Re, delta, "slot %d A.Re", i)
		assert.InDelta(t, want[i].A.Im, g.A.Im, delta, "slot %d A.Im", i)
		assert.InDelta(t, want[i].B.Re, g.B.Re, delta, "slot %d B.Re", i)
		assert.InDelta(t, want[i].B.Im, g.B.Im, delta, "slot %d B.Im", i)
		assert.InDelta(t, want[i].C.Re, g.C.Re, delta, "slot %d C.Re", i)
		assert.InDelta(t, want[i].C.Im, g.C.Im, delta, "slot %d C.Im", i)
		assert.InDelta(t, want[i].D.Re, g.D.Re, delta, "slot %d D.Re", i)
		assert.InDelta(t, want[i].D.Im, g.D.Im, delta, "slot %d D.Im", i)
	}
}

func TestCorrelatePointCentreSource(t *testing.T) {
	// One source at the phase centre, identity responses: every baseline
	// accumulates exactly diag(1, 1) whatever the geometry.
	be := New("")
	defer be.Finalize()
	sky := identityTestSky[float64](3, 1)
	vis, jones, src, coords := sky.upload(t, be)

	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1.0/0.21, 0, 3, 1))
	got := make([]fcomplex.Jones[float64], 3)
	require.NoError(t, be.BufferToFlat(vis, got))
	for slot, j := range got {
		assert.Equal(t, 1.0, j.A.Re, "slot %d", slot)
		assert.Equal(t, 1.0, j.D.Re, "slot %d", slot)
		assert.Equal(t, fcomplex.Complex[float64]{}, j.B, "slot %d", slot)
		assert.Equal(t, fcomplex.Complex[float64]{}, j.C, "slot %d", slot)
	}
}

func TestCorrelatePointMatchesReference(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](8, 100, false)
	vis, jones, src, coords := sky.upload(t, be)

	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1.0/0.21, 0.02, 8, 100))
	got := make([]fcomplex.Jones[float64], correlate.NumBaselines(8))
	require.NoError(t, be.BufferToFlat(vis, got))
	want := referenceVisibilities(sky, 1.0/0.21, 0.02, false)
	assertJonesSliceInDelta(t, want, got, 1e-10)
}

func TestCorrelateGaussianMatchesReference(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](6, 80, true)
	vis, jones, src, coords := sky.upload(t, be)

	require.NoError(t, be.CorrelateGaussian(vis, jones, src, coords, 1.0/0.21, 0.02, 6, 80))
	got := make([]fcomplex.Jones[float64], correlate.NumBaselines(6))
	require.NoError(t, be.BufferToFlat(vis, got))
	want := referenceVisibilities(sky, 1.0/0.21, 0.02, true)
	assertJonesSliceInDelta(t, want, got, 1e-10)
}

func TestCorrelateGaussianZeroShapeBitIdentical(t *testing.T) {
	// All-zero shape coefficients must reproduce the point correlator bit
	// for bit, not just within tolerance.
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](5, 40, false)
	sky.sa = make([]float64, 40)
	sky.sb = make([]float64, 40)
	sky.sc = make([]float64, 40)

	visP, jones, src, coords := sky.upload(t, be)
	require.NoError(t, be.CorrelatePoint(visP, jones, src, coords, 1.0/0.21, 0.01, 5, 40))
	point := make([]fcomplex.Jones[float64], correlate.NumBaselines(5))
	require.NoError(t, be.BufferToFlat(visP, point))

	visG, jones2, src2, coords2 := sky.upload(t, be)
	require.NoError(t, be.CorrelateGaussian(visG, jones2, src2, coords2, 1.0/0.21, 0.01, 5, 40))
	gauss := make([]fcomplex.Jones[float64], correlate.NumBaselines(5))
	require.NoError(t, be.BufferToFlat(visG, gauss))

	require.Equal(t, point, gauss)
}

func TestCorrelateAccumulatesAcrossCalls(t *testing.T) {
	// The output buffer is accumulated into, so two identical batches give
	// exactly twice one batch.
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](4, 25, false)
	vis, jones, src, coords := sky.upload(t, be)

	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1.0/0.21, 0, 4, 25))
	once := make([]fcomplex.Jones[float64], correlate.NumBaselines(4))
	require.NoError(t, be.BufferToFlat(vis, once))

	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1.0/0.21, 0, 4, 25))
	twice := make([]fcomplex.Jones[float64], correlate.NumBaselines(4))
	require.NoError(t, be.BufferToFlat(vis, twice))

	for i := range once {
		assert.Equal(t, once[i].Add(once[i]), twice[i], "slot %d", i)
	}

	// And zeroing resets the accumulator.
	require.NoError(t, be.BufferZero(vis))
	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1.0/0.21, 0, 4, 25))
	again := make([]fcomplex.Jones[float64], correlate.NumBaselines(4))
	require.NoError(t, be.BufferToFlat(vis, again))
	assert.Equal(t, once, again)
}

func TestCorrelateSinglePrecisionGuarded(t *testing.T) {
	// A long single-precision accumulation must stay close to the float64
	// reference; the compensated summation is what keeps it there.
	const numStations, numSources = 4, 10_000
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float32](numStations, numSources, false)
	vis, jones, src, coords := sky.upload(t, be)

	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1.0/0.21, 0.01, numStations, numSources))
	got := make([]fcomplex.Jones[float32], correlate.NumBaselines(numStations))
	require.NoError(t, be.BufferToFlat(vis, got))

	want := referenceVisibilities(sky, 1.0/0.21, 0.01, false)
	for i := range want {
		scale := math.Max(1, math.Abs(want[i].A.Re))
		assert.InDelta(t, want[i].A.Re, float64(got[i].A.Re), scale*1e-4, "slot %d", i)
		scale = math.Max(1, math.Abs(want[i].D.Re))
		assert.InDelta(t, want[i].D.Re, float64(got[i].D.Re), scale*1e-4, "slot %d", i)
	}
}

func TestCorrelateSequentialConfigMatchesParallel(t *testing.T) {
	parallel := New("")
	defer parallel.Finalize()
	sequential := New("0")
	defer sequential.Finalize()
	sky := makeTestSky[float64](7, 60, false)

	run := func(be backends.Backend) []fcomplex.Jones[float64] {
		vis, jones, src, coords := sky.upload(t, be)
		require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1.0/0.21, 0.02, 7, 60))
		got := make([]fcomplex.Jones[float64], correlate.NumBaselines(7))
		require.NoError(t, be.BufferToFlat(vis, got))
		return got
	}
	// Per-baseline accumulation order does not depend on the scheduling, so
	// the results are bit-identical.
	assert.Equal(t, run(sequential), run(parallel))
}

func TestEvaluateJonesK(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](5, 33, false)
	_, _, src, coords := sky.upload(t, be)
	k, err := be.NewBuffer(backends.Double, backends.Complex, 5*33)
	require.NoError(t, err)

	const wavenumber = 29.9
	require.NoError(t, be.EvaluateJonesK(k, wavenumber, coords, src, 5, 33))
	got := make([]fcomplex.Complex[float64], 5*33)
	require.NoError(t, be.BufferToFlat(k, got))

	want := make([]fcomplex.Complex[float64], 5*33)
	correlate.EvaluateK(want, wavenumber, sky.u, sky.v, sky.w, sky.l, sky.m, sky.n)
	assert.Equal(t, want, got)
}

func TestJoinJones(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](3, 10, false)
	jones := upload(t, be, sky.jones)
	kHost := make([]fcomplex.Complex[float64], 3*10)
	for i := range kHost {
		kHost[i] = fcomplex.Complex[float64]{Re: math.Cos(float64(i)), Im: math.Sin(float64(i))}
	}
	k := upload(t, be, kHost)
	out, err := be.NewBuffer(backends.Double, backends.Jones, 3*10)
	require.NoError(t, err)

	require.NoError(t, be.JoinJones(out, k, jones, 3, 10))
	got := make([]fcomplex.Jones[float64], 3*10)
	require.NoError(t, be.BufferToFlat(out, got))
	for i := range got {
		assert.Equal(t, sky.jones[i].ScaleComplex(kHost[i]), got[i], "element %d", i)
	}
}

func TestCrossPowerBeamTwoStations(t *testing.T) {
	// With two stations the normalization is 1 and the beam reduces to
	// j0·conj(j1) per source.
	be := New("")
	defer be.Finalize()
	jHost := []fcomplex.Complex[float64]{
		{Re: 2, Im: 1}, {Re: 0, Im: -1},
		{Re: 1, Im: -1}, {Re: 3, Im: 0.5},
	}
	jones := upload(t, be, jHost)
	beam, err := be.NewBuffer(backends.Double, backends.Complex, 2)
	require.NoError(t, err)

	require.NoError(t, be.CrossPowerBeam(beam, jones, 2, 2))
	got := make([]fcomplex.Complex[float64], 2)
	require.NoError(t, be.BufferToFlat(beam, got))
	assert.Equal(t, jHost[0].MulConj(jHost[2]), got[0])
	assert.Equal(t, jHost[1].MulConj(jHost[3]), got[1])
}

func TestCrossPowerBeamNormalization(t *testing.T) {
	// Identical unit responses on every station: the averaged cross-power
	// is exactly 1 for any station count.
	const numStations, numSources = 9, 5
	be := New("")
	defer be.Finalize()
	jHost := make([]fcomplex.Complex[float64], numStations*numSources)
	for i := range jHost {
		jHost[i] = fcomplex.Complex[float64]{Re: 1}
	}
	jones := upload(t, be, jHost)
	beam, err := be.NewBuffer(backends.Double, backends.Complex, numSources)
	require.NoError(t, err)

	require.NoError(t, be.CrossPowerBeam(beam, jones, numStations, numSources))
	got := make([]fcomplex.Complex[float64], numSources)
	require.NoError(t, be.BufferToFlat(beam, got))
	for i, c := range got {
		assert.InDelta(t, 1.0, c.Re, 1e-12, "source %d", i)
		assert.InDelta(t, 0.0, c.Im, 1e-12, "source %d", i)
	}
}

func TestCrossPowerBeamNeedsTwoStations(t *testing.T) {
	be := New("")
	defer be.Finalize()
	jones := upload(t, be, make([]fcomplex.Complex[float64], 3))
	beam, err := be.NewBuffer(backends.Double, backends.Complex, 3)
	require.NoError(t, err)

	err = be.CrossPowerBeam(beam, jones, 1, 3)
	assert.True(t, errors.Is(err, backends.ErrInvalidArgument))
}

func TestNilBufferIsInvalidArgument(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](3, 4, false)
	vis, jones, src, coords := sky.upload(t, be)
	src.L = nil

	err := be.CorrelatePoint(vis, jones, src, coords, 1, 0, 3, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backends.ErrInvalidArgument))
}

func TestForeignHandleIsBadLocation(t *testing.T) {
	be := New("")
	defer be.Finalize()
	var notMine struct{ backendTag string }

	_, err := be.BufferLen(&notMine)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backends.ErrBadLocation))
}

func TestFinalizedBufferIsInvalidArgument(t *testing.T) {
	be := New("")
	defer be.Finalize()
	buf := upload(t, be, []float64{1, 2, 3})
	require.NoError(t, be.BufferFinalize(buf))

	err := be.BufferZero(buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backends.ErrInvalidArgument))
}

func TestMixedPrecisionIsInvalidArgument(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](3, 4, false)
	vis, jones, src, coords := sky.upload(t, be)
	coords.U = upload(t, be, []float32{0, 1, 2})

	err := be.CorrelatePoint(vis, jones, src, coords, 1, 0, 3, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backends.ErrInvalidArgument))
}

func TestShortVisBufferIsInvalidArgument(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](4, 4, false)
	_, jones, src, coords := sky.upload(t, be)
	vis, err := be.NewBuffer(backends.Double, backends.Jones, correlate.NumBaselines(4)-1)
	require.NoError(t, err)

	err = be.CorrelatePoint(vis, jones, src, coords, 1, 0, 4, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backends.ErrInvalidArgument))
}

func TestNegativeCountsAreInvalidArgument(t *testing.T) {
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](3, 4, false)
	vis, jones, src, coords := sky.upload(t, be)

	err := be.CorrelatePoint(vis, jones, src, coords, 1, 0, -3, 4)
	assert.True(t, errors.Is(err, backends.ErrInvalidArgument))
}

func TestCorrelateDegenerateCountsAreNoOps(t *testing.T) {
	// Zero sources and single-station arrays are valid: nothing to do.
	be := New("")
	defer be.Finalize()
	sky := makeTestSky[float64](3, 4, false)
	vis, jones, src, coords := sky.upload(t, be)

	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1, 0, 3, 0))
	require.NoError(t, be.CorrelatePoint(vis, jones, src, coords, 1, 0, 1, 4))
	got := make([]fcomplex.Jones[float64], correlate.NumBaselines(3))
	require.NoError(t, be.BufferToFlat(vis, got))
	for i, j := range got {
		assert.Equal(t, fcomplex.Jones[float64]{}, j, "slot %d", i)
	}
}
