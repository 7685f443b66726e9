package grid

import (
	"github.com/pkg/errors"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/correlate"
	"github.com/radioastro/visim/internal/hostbuf"
	"github.com/radioastro/visim/types/fcomplex"
)

// Block sizes of the emulated device kernels. sourceTile bounds the
// block-local operand cache of the correlators; kTile is the square tile of
// the phase-factor grid; joinChunk and beamTile size the elementwise units.
const (
	sourceTile = 256
	kTile      = 16
	joinChunk  = 4096
	beamTile   = 64
)

// CorrelatePoint implements backends.Kernels.
func (b *Backend) CorrelatePoint(vis, jones backends.Buffer, src backends.SourceParams,
	coords backends.StationCoords, invWavelength, fracBandwidth float64,
	numStations, numSources int) error {
	return errors.WithMessage(
		b.correlate(vis, jones, src, coords, invWavelength, fracBandwidth, numStations, numSources, false),
		"CorrelatePoint")
}

// CorrelateGaussian implements backends.Kernels.
func (b *Backend) CorrelateGaussian(vis, jones backends.Buffer, src backends.SourceParams,
	coords backends.StationCoords, invWavelength, fracBandwidth float64,
	numStations, numSources int) error {
	return errors.WithMessage(
		b.correlate(vis, jones, src, coords, invWavelength, fracBandwidth, numStations, numSources, true),
		"CorrelateGaussian")
}

func (b *Backend) correlate(vis, jones backends.Buffer, src backends.SourceParams,
	coords backends.StationCoords, invWavelength, fracBandwidth float64,
	numStations, numSources int, gaussian bool) error {
	call, err := hostbuf.GatherCorrelate(b.own, vis, jones, src, coords, numStations, numSources, gaussian)
	if err != nil {
		return err
	}
	if call.Prec == backends.Single {
		return correlateRun[float32](b, call, float32(invWavelength), float32(fracBandwidth), true)
	}
	return correlateRun[float64](b, call, invWavelength, fracBandwidth, false)
}

// correlateRun maps one work unit to one baseline. Each device thread
// stages source operands tile by tile into its block-local cache and keeps
// the baseline accumulator (plus Kahan guard at single precision) private
// until the one final write to the output slot; the unit index is the
// baseline slot, so writes never collide.
func correlateRun[T fcomplex.Float](b *Backend, call *hostbuf.CorrelateCall,
	invWavelength, fracBandwidth T, guarded bool) error {
	t, err := hostbuf.TypeCorrelate[T](call)
	if err != nil {
		return err
	}
	numStations, numSources := call.NumStations, call.NumSources
	gaussian := call.Gaussian
	return b.launch(correlate.NumBaselines(numStations), func() func(unit int) {
		// Block-local operand cache of this device thread.
		cache := correlate.Sources[T]{
			L:       make([]T, sourceTile),
			M:       make([]T, sourceTile),
			StokesI: make([]T, sourceTile),
			StokesQ: make([]T, sourceTile),
			StokesU: make([]T, sourceTile),
			StokesV: make([]T, sourceTile),
		}
		if gaussian {
			cache.A = make([]T, sourceTile)
			cache.B = make([]T, sourceTile)
			cache.C = make([]T, sourceTile)
		}
		jp := make([]fcomplex.Jones[T], sourceTile)
		jq := make([]fcomplex.Jones[T], sourceTile)
		return func(unit int) {
			q, p := correlate.BaselinePair(numStations, unit)
			bl := correlate.MakeBaseline(t.U[p], t.V[p], t.U[q], t.V[q], invWavelength, fracBandwidth)
			var sum, guard fcomplex.Jones[T]
			g := &guard
			if !guarded {
				g = nil
			}
			for start := 0; start < numSources; start += sourceTile {
				n := min(sourceTile, numSources-start)
				tile := correlate.Sources[T]{
					L:       cache.L[:n],
					M:       cache.M[:n],
					StokesI: cache.StokesI[:n],
					StokesQ: cache.StokesQ[:n],
					StokesU: cache.StokesU[:n],
					StokesV: cache.StokesV[:n],
				}
				copy(tile.L, t.Src.L[start:start+n])
				copy(tile.M, t.Src.M[start:start+n])
				copy(tile.StokesI, t.Src.StokesI[start:start+n])
				copy(tile.StokesQ, t.Src.StokesQ[start:start+n])
				copy(tile.StokesU, t.Src.StokesU[start:start+n])
				copy(tile.StokesV, t.Src.StokesV[start:start+n])
				copy(jp[:n], t.Jones[p*numSources+start:p*numSources+start+n])
				copy(jq[:n], t.Jones[q*numSources+start:q*numSources+start+n])
				if gaussian {
					tile.A = cache.A[:n]
					tile.B = cache.B[:n]
					tile.C = cache.C[:n]
					copy(tile.A, t.Src.A[start:start+n])
					copy(tile.B, t.Src.B[start:start+n])
					copy(tile.C, t.Src.C[start:start+n])
					correlate.BaselineGaussian(&sum, g, jp[:n], jq[:n], &tile, bl)
				} else {
					correlate.BaselinePoint(&sum, g, jp[:n], jq[:n], &tile, bl)
				}
			}
			// Single final write; unit is this baseline's slot.
			t.Vis[unit] = t.Vis[unit].Add(sum)
		}
	})
}

// EvaluateJonesK implements backends.Kernels. One work unit is one
// kTile×kTile tile of the station×source grid; the thread caches the tile's
// station coordinates and source cosines once before the inner loops.
func (b *Backend) EvaluateJonesK(k backends.Buffer, wavenumber float64,
	coords backends.StationCoords, src backends.SourceParams,
	numStations, numSources int) error {
	call, err := hostbuf.GatherK(b.own, k, coords, src, numStations, numSources)
	if err != nil {
		return errors.WithMessage(err, "EvaluateJonesK")
	}
	if call.Prec == backends.Single {
		err = evaluateKRun[float32](b, call, wavenumber)
	} else {
		err = evaluateKRun[float64](b, call, wavenumber)
	}
	return errors.WithMessage(err, "EvaluateJonesK")
}

func evaluateKRun[T fcomplex.Float](b *Backend, call *hostbuf.KCall, wavenumber float64) error {
	t, err := hostbuf.TypeK[T](call)
	if err != nil {
		return err
	}
	wn := T(wavenumber)
	numStations, numSources := call.NumStations, call.NumSources
	tileCols := (numSources + kTile - 1) / kTile
	tileRows := (numStations + kTile - 1) / kTile
	return b.launch(tileRows*tileCols, func() func(unit int) {
		var u, v, w, l, m, n [kTile]T
		return func(unit int) {
			s0 := (unit / tileCols) * kTile
			i0 := (unit % tileCols) * kTile
			rows := min(kTile, numStations-s0)
			cols := min(kTile, numSources-i0)
			copy(u[:rows], t.U[s0:s0+rows])
			copy(v[:rows], t.V[s0:s0+rows])
			copy(w[:rows], t.W[s0:s0+rows])
			copy(l[:cols], t.L[i0:i0+cols])
			copy(m[:cols], t.M[i0:i0+cols])
			copy(n[:cols], t.N[i0:i0+cols])
			for s := 0; s < rows; s++ {
				row := t.K[(s0+s)*numSources+i0:]
				for i := 0; i < cols; i++ {
					row[i] = correlate.PhaseFactor(wn, u[s], v[s], w[s], l[i], m[i], n[i])
				}
			}
		}
	})
}

// JoinJones implements backends.Kernels. Work units are flat element
// chunks.
func (b *Backend) JoinJones(out, k, jones backends.Buffer, numStations, numSources int) error {
	call, err := hostbuf.GatherJoin(b.own, out, k, jones, numStations, numSources)
	if err != nil {
		return errors.WithMessage(err, "JoinJones")
	}
	if call.Prec == backends.Single {
		err = joinJonesRun[float32](b, call)
	} else {
		err = joinJonesRun[float64](b, call)
	}
	return errors.WithMessage(err, "JoinJones")
}

func joinJonesRun[T fcomplex.Float](b *Backend, call *hostbuf.JoinCall) error {
	t, err := hostbuf.TypeJoin[T](call)
	if err != nil {
		return err
	}
	total := call.NumStations * call.NumSources
	units := (total + joinChunk - 1) / joinChunk
	return b.launch(units, func() func(unit int) {
		return func(unit int) {
			start := unit * joinChunk
			end := min(start+joinChunk, total)
			for i := start; i < end; i++ {
				t.Out[i] = t.Jones[i].ScaleComplex(t.K[i])
			}
		}
	})
}

// CrossPowerBeam implements backends.Kernels. Work units are source tiles;
// each source's pairwise sum stays private to its thread until the single
// write of the normalized beam value.
func (b *Backend) CrossPowerBeam(beam, jones backends.Buffer, numStations, numSources int) error {
	call, err := hostbuf.GatherCrossPower(b.own, beam, jones, numStations, numSources)
	if err != nil {
		return errors.WithMessage(err, "CrossPowerBeam")
	}
	if call.Prec == backends.Single {
		err = crossPowerRun[float32](b, call)
	} else {
		err = crossPowerRun[float64](b, call)
	}
	return errors.WithMessage(err, "CrossPowerBeam")
}

func crossPowerRun[T fcomplex.Float](b *Backend, call *hostbuf.CrossPowerCall) error {
	t, err := hostbuf.TypeCrossPower[T](call)
	if err != nil {
		return err
	}
	numStations, numSources := call.NumStations, call.NumSources
	norm := T(2) / T(numStations*(numStations-1))
	units := (numSources + beamTile - 1) / beamTile
	return b.launch(units, func() func(unit int) {
		return func(unit int) {
			start := unit * beamTile
			end := min(start+beamTile, numSources)
			for i := start; i < end; i++ {
				t.Beam[i] = correlate.CrossPower(t.Jones, numSources, i, numStations).Scale(norm)
			}
		}
	})
}
