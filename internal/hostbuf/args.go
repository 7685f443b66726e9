package hostbuf

import (
	"github.com/pkg/errors"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/correlate"
	"github.com/radioastro/visim/types/fcomplex"
)

// Own unwraps a backend handle into its host storage. Each backend supplies
// its own implementation, which is where provenance (bad location) and
// liveness are enforced.
type Own func(handle backends.Buffer, name string) (*Buffer, error)

// CheckCounts rejects negative station/source counts. Zero sources and
// fewer than two stations are valid no-ops for the correlators, so they
// pass.
func CheckCounts(numStations, numSources int) error {
	if numStations < 0 || numSources < 0 {
		return errors.Wrapf(backends.ErrInvalidArgument,
			"negative counts: numStations=%d numSources=%d", numStations, numSources)
	}
	return nil
}

// CheckPrecision verifies that every buffer of one call has the width of
// the first.
func CheckPrecision(bufs ...*Buffer) error {
	for _, buf := range bufs[1:] {
		if buf.Prec != bufs[0].Prec {
			return errors.Wrapf(backends.ErrInvalidArgument,
				"mixed buffer precisions %s and %s in one call", bufs[0].Prec, buf.Prec)
		}
	}
	return nil
}

// CorrelateCall holds the validated, unwrapped buffers of one correlator
// invocation, still untyped. Gathering is shared; iteration is not.
type CorrelateCall struct {
	Vis, Jones              *Buffer
	L, M                    *Buffer
	SI, SQ, SU, SV          *Buffer
	A, B, C                 *Buffer
	U, V                    *Buffer
	NumStations, NumSources int
	Gaussian                bool
	Prec                    backends.Precision
}

// GatherCorrelate unwraps and cross-checks the arguments of
// CorrelatePoint/CorrelateGaussian.
func GatherCorrelate(own Own, vis, jones backends.Buffer, src backends.SourceParams,
	coords backends.StationCoords, numStations, numSources int, gaussian bool) (*CorrelateCall, error) {
	if err := CheckCounts(numStations, numSources); err != nil {
		return nil, err
	}
	call := &CorrelateCall{NumStations: numStations, NumSources: numSources, Gaussian: gaussian}
	var err error
	for _, field := range []struct {
		handle backends.Buffer
		dst    **Buffer
		name   string
	}{
		{vis, &call.Vis, "vis"},
		{jones, &call.Jones, "jones"},
		{src.L, &call.L, "source l"},
		{src.M, &call.M, "source m"},
		{src.StokesI, &call.SI, "Stokes I"},
		{src.StokesQ, &call.SQ, "Stokes Q"},
		{src.StokesU, &call.SU, "Stokes U"},
		{src.StokesV, &call.SV, "Stokes V"},
		{coords.U, &call.U, "station u"},
		{coords.V, &call.V, "station v"},
	} {
		if *field.dst, err = own(field.handle, field.name); err != nil {
			return nil, err
		}
	}
	bufs := []*Buffer{call.Vis, call.Jones, call.L, call.M,
		call.SI, call.SQ, call.SU, call.SV, call.U, call.V}
	if gaussian {
		for _, field := range []struct {
			handle backends.Buffer
			dst    **Buffer
			name   string
		}{
			{src.A, &call.A, "shape a"},
			{src.B, &call.B, "shape b"},
			{src.C, &call.C, "shape c"},
		} {
			if *field.dst, err = own(field.handle, field.name); err != nil {
				return nil, err
			}
		}
		bufs = append(bufs, call.A, call.B, call.C)
	}
	if err = CheckPrecision(bufs...); err != nil {
		return nil, err
	}
	call.Prec = call.Vis.Prec
	return call, nil
}

// typedField pairs a buffer with the typed slice it populates.
type typedField[T fcomplex.Float] struct {
	buf  *Buffer
	dst  *[]T
	name string
}

// TypedCorrelate is a CorrelateCall's storage viewed at width T, with all
// length checks done.
type TypedCorrelate[T fcomplex.Float] struct {
	Vis   []fcomplex.Jones[T]
	Jones []fcomplex.Jones[T]
	U, V  []T
	Src   correlate.Sources[T]
}

// TypeCorrelate extracts the typed views of a gathered correlator call.
func TypeCorrelate[T fcomplex.Float](call *CorrelateCall) (*TypedCorrelate[T], error) {
	t := &TypedCorrelate[T]{}
	var err error
	if t.Vis, err = JonesMatrices[T](call.Vis, "vis"); err != nil {
		return nil, err
	}
	if t.Jones, err = JonesMatrices[T](call.Jones, "jones"); err != nil {
		return nil, err
	}
	if t.U, err = Floats[T](call.U, "station u"); err != nil {
		return nil, err
	}
	if t.V, err = Floats[T](call.V, "station v"); err != nil {
		return nil, err
	}
	fields := []typedField[T]{
		{call.L, &t.Src.L, "source l"},
		{call.M, &t.Src.M, "source m"},
		{call.SI, &t.Src.StokesI, "Stokes I"},
		{call.SQ, &t.Src.StokesQ, "Stokes Q"},
		{call.SU, &t.Src.StokesU, "Stokes U"},
		{call.SV, &t.Src.StokesV, "Stokes V"},
	}
	if call.Gaussian {
		fields = append(fields,
			typedField[T]{call.A, &t.Src.A, "shape a"},
			typedField[T]{call.B, &t.Src.B, "shape b"},
			typedField[T]{call.C, &t.Src.C, "shape c"})
	}
	for _, field := range fields {
		if *field.dst, err = Floats[T](field.buf, field.name); err != nil {
			return nil, err
		}
		if err = field.buf.CheckLen(field.name, call.NumSources); err != nil {
			return nil, err
		}
	}
	if err = call.Vis.CheckLen("vis", correlate.NumBaselines(call.NumStations)); err != nil {
		return nil, err
	}
	if err = call.Jones.CheckLen("jones", call.NumStations*call.NumSources); err != nil {
		return nil, err
	}
	if err = call.U.CheckLen("station u", call.NumStations); err != nil {
		return nil, err
	}
	if err = call.V.CheckLen("station v", call.NumStations); err != nil {
		return nil, err
	}
	return t, nil
}

// KCall holds the validated buffers of an EvaluateJonesK invocation.
type KCall struct {
	K                       *Buffer
	U, V, W                 *Buffer
	L, M, N                 *Buffer
	NumStations, NumSources int
	Prec                    backends.Precision
}

// GatherK unwraps and cross-checks the arguments of EvaluateJonesK. The w
// coordinates and n direction cosines are required here.
func GatherK(own Own, k backends.Buffer, coords backends.StationCoords,
	src backends.SourceParams, numStations, numSources int) (*KCall, error) {
	if err := CheckCounts(numStations, numSources); err != nil {
		return nil, err
	}
	call := &KCall{NumStations: numStations, NumSources: numSources}
	var err error
	for _, field := range []struct {
		handle backends.Buffer
		dst    **Buffer
		name   string
	}{
		{k, &call.K, "k"},
		{coords.U, &call.U, "station u"},
		{coords.V, &call.V, "station v"},
		{coords.W, &call.W, "station w"},
		{src.L, &call.L, "source l"},
		{src.M, &call.M, "source m"},
		{src.N, &call.N, "source n"},
	} {
		if *field.dst, err = own(field.handle, field.name); err != nil {
			return nil, err
		}
	}
	if err = CheckPrecision(call.K, call.U, call.V, call.W, call.L, call.M, call.N); err != nil {
		return nil, err
	}
	call.Prec = call.K.Prec
	return call, nil
}

// TypedK is a KCall's storage viewed at width T.
type TypedK[T fcomplex.Float] struct {
	K       []fcomplex.Complex[T]
	U, V, W []T
	L, M, N []T
}

// TypeK extracts the typed views of a gathered EvaluateJonesK call.
func TypeK[T fcomplex.Float](call *KCall) (*TypedK[T], error) {
	t := &TypedK[T]{}
	var err error
	if t.K, err = Complexes[T](call.K, "k"); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		buf  *Buffer
		dst  *[]T
		name string
		min  int
	}{
		{call.U, &t.U, "station u", call.NumStations},
		{call.V, &t.V, "station v", call.NumStations},
		{call.W, &t.W, "station w", call.NumStations},
		{call.L, &t.L, "source l", call.NumSources},
		{call.M, &t.M, "source m", call.NumSources},
		{call.N, &t.N, "source n", call.NumSources},
	} {
		if *field.dst, err = Floats[T](field.buf, field.name); err != nil {
			return nil, err
		}
		if err = field.buf.CheckLen(field.name, field.min); err != nil {
			return nil, err
		}
	}
	if err = call.K.CheckLen("k", call.NumStations*call.NumSources); err != nil {
		return nil, err
	}
	return t, nil
}

// JoinCall holds the validated buffers of a JoinJones invocation.
type JoinCall struct {
	Out, K, Jones           *Buffer
	NumStations, NumSources int
	Prec                    backends.Precision
}

// GatherJoin unwraps and cross-checks the arguments of JoinJones.
func GatherJoin(own Own, out, k, jones backends.Buffer, numStations, numSources int) (*JoinCall, error) {
	if err := CheckCounts(numStations, numSources); err != nil {
		return nil, err
	}
	call := &JoinCall{NumStations: numStations, NumSources: numSources}
	var err error
	if call.Out, err = own(out, "out"); err != nil {
		return nil, err
	}
	if call.K, err = own(k, "k"); err != nil {
		return nil, err
	}
	if call.Jones, err = own(jones, "jones"); err != nil {
		return nil, err
	}
	if err = CheckPrecision(call.Out, call.K, call.Jones); err != nil {
		return nil, err
	}
	call.Prec = call.Out.Prec
	return call, nil
}

// TypedJoin is a JoinCall's storage viewed at width T.
type TypedJoin[T fcomplex.Float] struct {
	Out   []fcomplex.Jones[T]
	K     []fcomplex.Complex[T]
	Jones []fcomplex.Jones[T]
}

// TypeJoin extracts the typed views of a gathered JoinJones call.
func TypeJoin[T fcomplex.Float](call *JoinCall) (*TypedJoin[T], error) {
	t := &TypedJoin[T]{}
	var err error
	if t.Out, err = JonesMatrices[T](call.Out, "out"); err != nil {
		return nil, err
	}
	if t.K, err = Complexes[T](call.K, "k"); err != nil {
		return nil, err
	}
	if t.Jones, err = JonesMatrices[T](call.Jones, "jones"); err != nil {
		return nil, err
	}
	total := call.NumStations * call.NumSources
	if err = call.Out.CheckLen("out", total); err != nil {
		return nil, err
	}
	if err = call.K.CheckLen("k", total); err != nil {
		return nil, err
	}
	if err = call.Jones.CheckLen("jones", total); err != nil {
		return nil, err
	}
	return t, nil
}

// CrossPowerCall holds the validated buffers of a CrossPowerBeam invocation.
type CrossPowerCall struct {
	Beam, Jones             *Buffer
	NumStations, NumSources int
	Prec                    backends.Precision
}

// GatherCrossPower unwraps and cross-checks the arguments of CrossPowerBeam.
// At least two stations are required: the beam is normalized by the number
// of baselines.
func GatherCrossPower(own Own, beam, jones backends.Buffer, numStations, numSources int) (*CrossPowerCall, error) {
	if err := CheckCounts(numStations, numSources); err != nil {
		return nil, err
	}
	if numStations < 2 {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"cross-power beam needs at least 2 stations, got %d", numStations)
	}
	call := &CrossPowerCall{NumStations: numStations, NumSources: numSources}
	var err error
	if call.Beam, err = own(beam, "beam"); err != nil {
		return nil, err
	}
	if call.Jones, err = own(jones, "jones"); err != nil {
		return nil, err
	}
	if err = CheckPrecision(call.Beam, call.Jones); err != nil {
		return nil, err
	}
	call.Prec = call.Beam.Prec
	return call, nil
}

// TypedCrossPower is a CrossPowerCall's storage viewed at width T.
type TypedCrossPower[T fcomplex.Float] struct {
	Beam  []fcomplex.Complex[T]
	Jones []fcomplex.Complex[T]
}

// TypeCrossPower extracts the typed views of a gathered CrossPowerBeam call.
func TypeCrossPower[T fcomplex.Float](call *CrossPowerCall) (*TypedCrossPower[T], error) {
	t := &TypedCrossPower[T]{}
	var err error
	if t.Beam, err = Complexes[T](call.Beam, "beam"); err != nil {
		return nil, err
	}
	if t.Jones, err = Complexes[T](call.Jones, "jones"); err != nil {
		return nil, err
	}
	if err = call.Beam.CheckLen("beam", call.NumSources); err != nil {
		return nil, err
	}
	if err = call.Jones.CheckLen("jones", call.NumStations*call.NumSources); err != nil {
		return nil, err
	}
	return t, nil
}
