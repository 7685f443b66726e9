// Package backends defines the execution-backend abstraction of the
// visibility engine: the kernel operations every backend realizes, the
// opaque buffer handles backends own, and a registry of named backend
// constructors.
//
// Two backends ship with the module: "pool" (backends/pool), which
// distributes the outer station loop over a shared-memory workers pool, and
// "grid" (backends/grid), which emulates a massively parallel device by
// consuming a flat global thread index over tiled work units. Both implement
// the same pure cores from the correlate package, in single and double
// precision.
//
// All operations report failures through returned errors built on the
// sentinel kinds in errors.go; nothing is thrown across the API.
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/exceptions"
)

// DeviceNum identifies which device of a backend holds a buffer or runs a
// computation. The bundled backends are single-device.
type DeviceNum int

// Precision selects the floating-point width of a buffer or computation.
type Precision int

const (
	// Single is 32-bit floating point. The correlators guard their
	// accumulators with compensated summation in this mode.
	Single Precision = iota
	// Double is 64-bit floating point, accumulated without a guard.
	Double
)

// String implements fmt.Stringer.
func (p Precision) String() string {
	switch p {
	case Single:
		return "single"
	case Double:
		return "double"
	}
	return "invalid"
}

// ElemKind is the element type stored in a buffer.
type ElemKind int

const (
	// Real elements are plain floats (coordinates, Stokes values).
	Real ElemKind = iota
	// Complex elements are fcomplex.Complex values (scalar K terms, beams).
	Complex
	// Jones elements are 2×2 fcomplex.Jones matrices (responses,
	// visibilities).
	Jones
)

// String implements fmt.Stringer.
func (k ElemKind) String() string {
	switch k {
	case Real:
		return "real"
	case Complex:
		return "complex"
	case Jones:
		return "jones"
	}
	return "invalid"
}

// Buffer is an opaque handle to a dense array owned by one backend. Handles
// are only meaningful to the backend that created them; presenting a handle
// to any other backend fails with ErrBadLocation, never a silent copy.
type Buffer any

// StationCoords groups the per-station projected coordinates of one array
// layout, in metres relative to the array reference point. W may be nil for
// operations that do not use a w term.
type StationCoords struct {
	U, V Buffer
	W    Buffer
}

// SourceParams groups the per-source arrays of one sky batch. N is only
// read by EvaluateJonesK; A, B and C are the elliptical-Gaussian shape
// coefficients and stay nil for point-source batches.
type SourceParams struct {
	L, M, N Buffer

	StokesI, StokesQ, StokesU, StokesV Buffer

	A, B, C Buffer
}

// Kernels are the correlation operations every backend provides. Inputs are
// immutable for the duration of a call; the first (output) buffer is the
// only one written. Output visibility buffers are caller-allocated and
// accumulated into, so callers zero them (BufferZero) before the first of a
// series of batches.
type Kernels interface {
	// EvaluateJonesK fills k (numStations×numSources complex, station-major)
	// with the geometric phase factors exp(i·wavenumber·(u·l+v·m+w·(n−1))).
	// coords.W and src.N are required here.
	EvaluateJonesK(k Buffer, wavenumber float64, coords StationCoords,
		src SourceParams, numStations, numSources int) error

	// JoinJones writes out[s][i] = k[s][i] · jones[s][i], joining scalar
	// phase factors onto full beam Jones matrices. out may alias jones.
	JoinJones(out, k, jones Buffer, numStations, numSources int) error

	// CorrelatePoint accumulates every source's visibility contribution onto
	// every baseline for point sources, applying bandwidth smearing. vis has
	// numStations·(numStations−1)/2 Jones entries laid out by
	// correlate.BaselineIndex; jones is numStations×numSources Jones entries.
	CorrelatePoint(vis, jones Buffer, src SourceParams, coords StationCoords,
		invWavelength, fracBandwidth float64, numStations, numSources int) error

	// CorrelateGaussian is CorrelatePoint with the per-source
	// elliptical-Gaussian shape attenuation; src.A, src.B and src.C are
	// required.
	CorrelateGaussian(vis, jones Buffer, src SourceParams, coords StationCoords,
		invWavelength, fracBandwidth float64, numStations, numSources int) error

	// CrossPowerBeam writes, per source, the average scalar cross-power of
	// all station pairs: beam[i] = 2/(N·(N−1)) · Σ_{p<q} j[p][i]·conj(j[q][i]).
	// jones holds scalar complex values, numStations×numSources; beam holds
	// numSources complex values. Requires numStations ≥ 2.
	CrossPowerBeam(beam, jones Buffer, numStations, numSources int) error
}

// DataInterface moves dense arrays between the caller and a backend's
// memory space.
type DataInterface interface {
	// NewBuffer allocates a zero-initialized buffer of n elements.
	NewBuffer(prec Precision, kind ElemKind, n int) (Buffer, error)

	// BufferFromFlat uploads a host slice and returns the backend handle.
	// Accepted types: []float32, []float64, []fcomplex.Complex[...] and
	// []fcomplex.Jones[...] of either width.
	BufferFromFlat(flat any) (Buffer, error)

	// BufferToFlat downloads a buffer into flat, which must have the
	// buffer's element type and exact length.
	BufferToFlat(buf Buffer, flat any) error

	// BufferZero resets every element of the buffer.
	BufferZero(buf Buffer) error

	// BufferLen returns the number of elements in the buffer.
	BufferLen(buf Buffer) (int, error)

	// BufferPrecision returns the floating-point width of the buffer.
	BufferPrecision(buf Buffer) (Precision, error)

	// BufferFinalize releases the buffer immediately. The handle must not
	// be used afterwards.
	BufferFinalize(buf Buffer) error
}

// Backend is the full contract a visim execution backend implements.
type Backend interface {
	// Name is the short registry name, e.g. "pool" or "grid".
	Name() string

	// Description is a longer human-readable description.
	Description() string

	// NumDevices returns the number of devices this backend drives.
	NumDevices() DeviceNum

	Kernels
	DataInterface

	// Finalize releases all backend resources and invalidates the backend.
	Finalize()
}

// Constructor builds a Backend from a backend-specific config string.
type Constructor func(config string) Backend

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a backend constructor under the given name. Call from an init
// function; the first registered backend becomes the fallback default.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is used by New when VISIM_BACKEND is not set.
var DefaultConfig string

// VISIM_BACKEND is the environment variable selecting the default backend.
// Its value has the form "<backend_name>:<backend_configuration>", where the
// configuration part is backend specific (for the bundled backends, the
// worker count).
const VISIM_BACKEND = "VISIM_BACKEND"

// New returns a backend built from, in order of preference: the
// VISIM_BACKEND environment variable, DefaultConfig, or the first registered
// backend with an empty configuration.
//
// It panics if no backend was registered.
func New() Backend {
	if config, found := os.LookupEnv(VISIM_BACKEND); found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig builds the backend selected by a
// "<backend_name>:<backend_configuration>" string. The configuration part is
// optional; an empty name selects the first registered backend.
func NewWithConfig(config string) Backend {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no registered visim backends -- import the bundled ones with import _ "github.com/radioastro/visim/backends/default"`)
	}
	backendName, backendConfig, _ := strings.Cut(config, ":")
	if backendName == "" {
		backendName = firstRegistered
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		exceptions.Panicf("can't find backend %q for configuration %q", backendName, config)
	}
	return constructor(backendConfig)
}
