package pool

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/correlate"
	"github.com/radioastro/visim/internal/hostbuf"
	"github.com/radioastro/visim/types/fcomplex"
)

// parallelFor runs body(i) for every i in [0, n), drawing indices one at a
// time from an atomic cursor so that unevenly sized iterations stay
// balanced across workers. With parallelism disabled it degenerates to a
// sequential loop.
func (b *Backend) parallelFor(n int, body func(i int)) {
	if n <= 0 {
		return
	}
	workers := b.workers.MaxParallelism()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			body(i)
		}
		return
	}
	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		b.workers.WaitToStart(func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				body(i)
			}
		})
	}
	wg.Wait()
}

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

// correlateRun is the width-instantiated scheduling wrapper shared by both
// correlators. guarded selects Kahan compensation of the per-baseline
// accumulators: on for float32, off for float64.
func correlateRun[T fcomplex.Float](b *Backend, call *hostbuf.CorrelateCall,
	invWavelength, fracBandwidth T, guarded bool) error {
	t, err := hostbuf.TypeCorrelate[T](call)
	if err != nil {
		return err
	}
	numStations, numSources := call.NumStations, call.NumSources
	b.parallelFor(numStations, func(q int) {
		sq := t.Jones[q*numSources : (q+1)*numSources]
		for p := q + 1; p < numStations; p++ {
			sp := t.Jones[p*numSources : (p+1)*numSources]
			bl := correlate.MakeBaseline(t.U[p], t.V[p], t.U[q], t.V[q], invWavelength, fracBandwidth)
			var sum, guard fcomplex.Jones[T]
			g := &guard
			if !guarded {
				g = nil
			}
			if call.Gaussian {
				correlate.BaselineGaussian(&sum, g, sp, sq, &t.Src, bl)
			} else {
				correlate.BaselinePoint(&sum, g, sp, sq, &t.Src, bl)
			}
			// The only shared write for this baseline: q owns a disjoint
			// contiguous slot range, so no synchronization is needed.
			slot := correlate.BaselineIndex(numStations, q, p)
			t.Vis[slot] = t.Vis[slot].Add(sum)
		}
	})
	return nil
}

// EvaluateJonesK implements backends.Kernels.
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
	numSources := call.NumSources
	b.parallelFor(call.NumStations, func(s int) {
		row := t.K[s*numSources : (s+1)*numSources]
		for i := range row {
			row[i] = correlate.PhaseFactor(wn, t.U[s], t.V[s], t.W[s], t.L[i], t.M[i], t.N[i])
		}
	})
	return nil
}

// JoinJones implements backends.Kernels.
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
	numSources := call.NumSources
	b.parallelFor(call.NumStations, func(s int) {
		for i := s * numSources; i < (s+1)*numSources; i++ {
			t.Out[i] = t.Jones[i].ScaleComplex(t.K[i])
		}
	})
	return nil
}

// CrossPowerBeam implements backends.Kernels.
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
	b.parallelFor(numSources, func(i int) {
		t.Beam[i] = correlate.CrossPower(t.Jones, numSources, i, numStations).Scale(norm)
	})
	return nil
}
