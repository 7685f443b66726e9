// Package interferometer orchestrates the per-channel correlation
// pipeline: evaluate the geometric phase (K) term on the backend, join it
// with the supplied beam response, run the correlator, and download the
// baseline visibilities.
//
// Every stage reports through an error; the first non-nil error aborts the
// remaining stages of that channel and must abort the caller's remaining
// channels too. Visibility contents after a failed channel are undefined.
package interferometer

import (
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/radioastro/visim/backends"
	"github.com/radioastro/visim/correlate"
	"github.com/radioastro/visim/sky"
	"github.com/radioastro/visim/types/fcomplex"
)

const speedOfLight = 299792458.0 // m/s

// Options fix the spectral setup of one simulation.
type Options struct {
	// StartFrequencyHz is the centre frequency of channel 0.
	StartFrequencyHz float64
	// ChannelBandwidthHz is the width of (and spacing between) channels.
	ChannelBandwidthHz float64
	// NumChannels is the number of frequency channels to simulate.
	NumChannels int
	// FracBandwidth is the fractional bandwidth Δν/ν of the
	// bandwidth-smearing term; 0 disables smearing.
	FracBandwidth float64
}

// Simulator runs the correlation pipeline for one array layout and one sky
// batch, channel by channel, on a chosen backend. The width parameter T
// selects single or double precision end to end.
type Simulator[T fcomplex.Float] struct {
	backend backends.Backend
	opts    Options

	numStations, numSources int
	gaussian                bool

	coords        backends.StationCoords
	src           backends.SourceParams
	beam          backends.Buffer
	k, jones, vis backends.Buffer

	host []fcomplex.Jones[T]
}

// New uploads the array layout, sky batch and per-station beam responses to
// the backend and prepares the work buffers. u, v, w are station
// coordinates in metres relative to the array reference point. beam holds
// one Jones matrix per (station, source) pair, station-major; nil means an
// ideal (identity) response.
func New[T fcomplex.Float](be backends.Backend, opts Options, sk *sky.Model[T],
	u, v, w []T, beam []fcomplex.Jones[T]) (*Simulator[T], error) {
	if be == nil {
		return nil, errors.Wrap(backends.ErrInvalidArgument, "nil backend")
	}
	if sk == nil {
		return nil, errors.Wrap(backends.ErrInvalidArgument, "nil sky model")
	}
	if opts.NumChannels <= 0 || opts.StartFrequencyHz <= 0 {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"need positive channel count and start frequency, got %d and %v Hz",
			opts.NumChannels, opts.StartFrequencyHz)
	}
	numStations := len(u)
	if len(v) != numStations || len(w) != numStations {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"station coordinate lengths differ: u=%d v=%d w=%d", len(u), len(v), len(w))
	}
	numSources := sk.NumSources()
	if beam != nil && len(beam) != numStations*numSources {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"beam holds %d entries, need %d stations × %d sources", len(beam), numStations, numSources)
	}
	if beam == nil {
		beam = make([]fcomplex.Jones[T], numStations*numSources)
		for i := range beam {
			beam[i] = fcomplex.JonesIdentity[T]()
		}
	}

	s := &Simulator[T]{
		backend:     be,
		opts:        opts,
		numStations: numStations,
		numSources:  numSources,
		gaussian:    sk.HasShape(),
		host:        make([]fcomplex.Jones[T], correlate.NumBaselines(numStations)),
	}
	var err error
	upload := func(dst *backends.Buffer, flat any, name string) {
		if err != nil {
			return
		}
		*dst, err = be.BufferFromFlat(flat)
		err = errors.WithMessagef(err, "uploading %s", name)
	}
	upload(&s.coords.U, u, "station u")
	upload(&s.coords.V, v, "station v")
	upload(&s.coords.W, w, "station w")
	upload(&s.src.L, sk.L, "source l")
	upload(&s.src.M, sk.M, "source m")
	upload(&s.src.N, sk.N, "source n")
	upload(&s.src.StokesI, sk.StokesI, "Stokes I")
	upload(&s.src.StokesQ, sk.StokesQ, "Stokes Q")
	upload(&s.src.StokesU, sk.StokesU, "Stokes U")
	upload(&s.src.StokesV, sk.StokesV, "Stokes V")
	if s.gaussian {
		upload(&s.src.A, sk.A, "shape a")
		upload(&s.src.B, sk.B, "shape b")
		upload(&s.src.C, sk.C, "shape c")
	}
	upload(&s.beam, beam, "beam jones")
	if err != nil {
		return nil, err
	}

	prec := backends.Double
	if _, single := any(u).([]float32); single {
		prec = backends.Single
	}
	alloc := func(dst *backends.Buffer, kind backends.ElemKind, n int, name string) {
		if err != nil {
			return
		}
		*dst, err = be.NewBuffer(prec, kind, n)
		err = errors.WithMessagef(err, "allocating %s", name)
	}
	alloc(&s.k, backends.Complex, numStations*numSources, "k terms")
	alloc(&s.jones, backends.Jones, numStations*numSources, "joined jones")
	alloc(&s.vis, backends.Jones, correlate.NumBaselines(numStations), "visibilities")
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("simulator ready: %d stations, %d sources, %d channels, %s, backend %q",
		numStations, numSources, opts.NumChannels, prec, be.Name())
	return s, nil
}

// NumBaselines returns the number of visibility slots per channel.
func (s *Simulator[T]) NumBaselines() int { return correlate.NumBaselines(s.numStations) }

// ChannelFrequency returns the centre frequency of a channel in Hz.
func (s *Simulator[T]) ChannelFrequency(channel int) float64 {
	return s.opts.StartFrequencyHz + float64(channel)*s.opts.ChannelBandwidthHz
}

// RunChannel computes the visibilities of one frequency channel. The
// returned slice is reused by the next call; copy it to keep it. On error
// the slice contents are undefined.
func (s *Simulator[T]) RunChannel(channel int) ([]fcomplex.Jones[T], error) {
	if channel < 0 || channel >= s.opts.NumChannels {
		return nil, errors.Wrapf(backends.ErrInvalidArgument,
			"channel %d out of range [0,%d)", channel, s.opts.NumChannels)
	}
	freq := s.ChannelFrequency(channel)
	wavelength := speedOfLight / freq
	wavenumber := 2 * math.Pi / wavelength

	fail := func(err error, stage string) ([]fcomplex.Jones[T], error) {
		return nil, errors.WithMessagef(err, "channel %d: %s", channel, stage)
	}
	if err := s.backend.EvaluateJonesK(s.k, wavenumber, s.coords, s.src,
		s.numStations, s.numSources); err != nil {
		return fail(err, "phase terms")
	}
	if err := s.backend.JoinJones(s.jones, s.k, s.beam,
		s.numStations, s.numSources); err != nil {
		return fail(err, "joining beam")
	}
	if err := s.backend.BufferZero(s.vis); err != nil {
		return fail(err, "clearing visibilities")
	}
	correlateOp := s.backend.CorrelatePoint
	if s.gaussian {
		correlateOp = s.backend.CorrelateGaussian
	}
	if err := correlateOp(s.vis, s.jones, s.src, s.coords,
		1/wavelength, s.opts.FracBandwidth, s.numStations, s.numSources); err != nil {
		return fail(err, "correlating")
	}
	if err := s.backend.BufferToFlat(s.vis, s.host); err != nil {
		return fail(err, "downloading visibilities")
	}
	klog.V(2).Infof("channel %d done (%.3f MHz)", channel, freq/1e6)
	return s.host, nil
}

// Close releases the simulator's backend buffers. The simulator must not
// be used afterwards.
func (s *Simulator[T]) Close() error {
	var first error
	finalize := func(buf backends.Buffer) {
		if buf == nil {
			return
		}
		if err := s.backend.BufferFinalize(buf); err != nil && first == nil {
			first = err
		}
	}
	for _, buf := range []backends.Buffer{
		s.coords.U, s.coords.V, s.coords.W,
		s.src.L, s.src.M, s.src.N,
		s.src.StokesI, s.src.StokesQ, s.src.StokesU, s.src.StokesV,
		s.src.A, s.src.B, s.src.C,
		s.beam, s.k, s.jones, s.vis,
	} {
		finalize(buf)
	}
	return first
}
