// visim is a demonstration driver for the visibility engine: it builds a
// synthetic (or JSON5-file) sky, lays out a random array, and correlates a
// run of frequency channels on a chosen backend, reporting throughput.
//
// The real owners of settings parsing and visibility-set serialization live
// outside this module; this command exists to exercise the engine end to
// end from a shell.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/stat/distuv"
	"k8s.io/klog/v2"

	"github.com/radioastro/visim/backends"
	_ "github.com/radioastro/visim/backends/default"
	"github.com/radioastro/visim/interferometer"
	"github.com/radioastro/visim/sky"
	"github.com/radioastro/visim/types/fcomplex"
)

type config struct {
	backend       string
	stations      int
	sources       int
	channels      int
	precision     string
	skyFile       string
	gaussian      bool
	seed          uint64
	startFreqHz   float64
	chanWidthHz   float64
	fracBandwidth float64
	arrayRadiusM  float64
}

func main() {
	var cfg config
	flag.StringVar(&cfg.backend, "backend", "", `backend configuration, e.g. "pool", "grid" or "grid:8"; empty uses VISIM_BACKEND or the default`)
	flag.IntVar(&cfg.stations, "stations", 30, "number of stations in the synthetic array")
	flag.IntVar(&cfg.sources, "sources", 1024, "number of synthetic sources (ignored with -sky)")
	flag.IntVar(&cfg.channels, "channels", 16, "number of frequency channels")
	flag.StringVar(&cfg.precision, "precision", "double", "floating-point width: single or double")
	flag.StringVar(&cfg.skyFile, "sky", "", "JSON5 sky model file; empty generates a random sky")
	flag.BoolVar(&cfg.gaussian, "gaussian", false, "give synthetic sources Gaussian extents")
	flag.Uint64Var(&cfg.seed, "seed", 1, "seed of the synthetic sky and array layout")
	flag.Float64Var(&cfg.startFreqHz, "start-freq", 100e6, "centre frequency of channel 0, Hz")
	flag.Float64Var(&cfg.chanWidthHz, "channel-width", 100e3, "channel width, Hz")
	flag.Float64Var(&cfg.fracBandwidth, "frac-bandwidth", 0, "fractional bandwidth of the smearing term")
	flag.Float64Var(&cfg.arrayRadiusM, "array-radius", 2000, "radius of the synthetic array, metres")
	klog.InitFlags(nil)
	flag.Parse()

	var be backends.Backend
	if cfg.backend != "" {
		be = backends.NewWithConfig(cfg.backend)
	} else {
		be = backends.New()
	}
	defer be.Finalize()

	var err error
	switch cfg.precision {
	case "single":
		err = run[float32](be, cfg)
	case "double":
		err = run[float64](be, cfg)
	default:
		err = fmt.Errorf("unknown precision %q", cfg.precision)
	}
	if err != nil {
		klog.Errorf("simulation failed: %v", err)
		os.Exit(1)
	}
}

func run[T fcomplex.Float](be backends.Backend, cfg config) error {
	rng := rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15)

	var sk *sky.Model[T]
	var err error
	if cfg.skyFile != "" {
		if sk, err = loadSky[T](cfg.skyFile); err != nil {
			return err
		}
	} else if sk, err = syntheticSky[T](rng, cfg.sources, cfg.gaussian); err != nil {
		return err
	}

	u, v, w := syntheticLayout[T](rng, cfg.stations, cfg.arrayRadiusM)

	sim, err := interferometer.New(be, interferometer.Options{
		StartFrequencyHz:   cfg.startFreqHz,
		ChannelBandwidthHz: cfg.chanWidthHz,
		NumChannels:        cfg.channels,
		FracBandwidth:      cfg.fracBandwidth,
	}, sk, u, v, w, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sim.Close() }()

	fmt.Printf("backend: %s -- %s\n", be.Name(), be.Description())
	fmt.Printf("array: %d stations, %s baselines; sky: %s sources; %d channels\n",
		cfg.stations, humanize.Comma(int64(sim.NumBaselines())),
		humanize.Comma(int64(sk.NumSources())), cfg.channels)

	bar := progressbar.Default(int64(cfg.channels), "correlating")
	start := time.Now()
	var meanAmp float64
	for ch := 0; ch < cfg.channels; ch++ {
		vis, err := sim.RunChannel(ch)
		if err != nil {
			// One failed channel invalidates the run; skip the rest.
			return err
		}
		meanAmp = meanAmplitude(vis)
		_ = bar.Add(1)
	}
	elapsed := time.Since(start)

	contributions := float64(sim.NumBaselines()) * float64(sk.NumSources()) * float64(cfg.channels)
	fmt.Printf("done in %v: %s source-baseline products (%s/s)\n",
		elapsed.Round(time.Millisecond),
		humanize.SIWithDigits(contributions, 2, ""),
		humanize.SIWithDigits(contributions/elapsed.Seconds(), 2, ""))
	fmt.Printf("mean visibility amplitude, last channel: %.6g\n", meanAmp)
	return nil
}

// syntheticSky draws sources near the phase centre with unit Stokes I.
func syntheticSky[T fcomplex.Float](src rand.Source, numSources int, gaussian bool) (*sky.Model[T], error) {
	sk := sky.New[T](numSources)
	pos := distuv.Normal{Mu: 0, Sigma: 0.02, Src: src}
	fwhm := distuv.Uniform{Min: 1e-4, Max: 1e-3, Src: src}
	angle := distuv.Uniform{Min: 0, Max: 3.141592653589793, Src: src}
	for i := 0; i < numSources; i++ {
		l, m := T(pos.Rand()), T(pos.Rand())
		if err := sk.SetSource(i, l, m, 1, 0, 0, 0); err != nil {
			return nil, err
		}
		if gaussian {
			fwhmMaj := fwhm.Rand()
			if err := sk.SetGaussianShape(i, fwhmMaj, fwhmMaj*0.5, angle.Rand()); err != nil {
				return nil, err
			}
		}
	}
	return sk, nil
}

// syntheticLayout scatters stations over a disc of the given radius, flat
// on the ground (w = 0).
func syntheticLayout[T fcomplex.Float](src rand.Source, numStations int, radius float64) (u, v, w []T) {
	pos := distuv.Uniform{Min: -radius, Max: radius, Src: src}
	u = make([]T, numStations)
	v = make([]T, numStations)
	w = make([]T, numStations)
	for s := 0; s < numStations; s++ {
		u[s], v[s] = T(pos.Rand()), T(pos.Rand())
	}
	return u, v, w
}

func meanAmplitude[T fcomplex.Float](vis []fcomplex.Jones[T]) float64 {
	if len(vis) == 0 {
		return 0
	}
	var total float64
	for _, j := range vis {
		total += float64(j.A.AbsSq() + j.D.AbsSq())
	}
	return total / float64(2*len(vis))
}
