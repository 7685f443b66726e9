// Package grid implements the device-parallel backend.
//
// It realizes the massively parallel execution model in Go: every kernel is
// launched as a set of small work units consumed by a fixed grid of worker
// goroutines through a flat global thread index, the way device threads
// walk a kernel grid. Workers stage the operands of each unit into
// block-local caches (the shared-memory analogue) and hold each output
// accumulation privately until a single final write, so no cross-worker
// synchronization is needed.
//
// Buffers belong to this backend's memory space: handles from any other
// backend are rejected with backends.ErrBadLocation rather than silently
// copied.
package grid

import (
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/radioastro/visim/backends"
)

// BackendName for use in VISIM_BACKEND or backends.NewWithConfig.
const BackendName = "grid"

func init() {
	backends.Register(BackendName, New)
}

// New constructs a grid backend. The config string is empty or the grid
// width (number of device threads) as a positive integer.
func New(config string) backends.Backend {
	width := runtime.NumCPU()
	if config != "" {
		w, err := strconv.Atoi(config)
		if err != nil || w < 1 {
			exceptions.Panicf("grid backend config must be a positive thread count, got %q", config)
		}
		width = w
	}
	klog.V(1).Infof("grid backend created, width=%d", width)
	return &Backend{gridWidth: width}
}

// Backend implements backends.Backend as an emulated parallel device.
type Backend struct {
	gridWidth int
}

// Compile-time check.
var _ backends.Backend = (*Backend)(nil)

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements backends.Backend.
func (b *Backend) Description() string {
	return "Device-style backend (flat thread grid over tiled work units)"
}

// NumDevices implements backends.Backend.
func (b *Backend) NumDevices() backends.DeviceNum { return 1 }

// Finalize implements backends.Backend.
func (b *Backend) Finalize() {}

// launch runs total work units on the thread grid. makeWorker builds one
// worker per grid thread, giving each a place to hold its block-local
// caches; the returned function is then called with every unit index the
// thread claims.
//
// A panic inside any unit is the device-execution failure mode: it is
// caught after the launch and reported as backends.ErrExecFailure.
func (b *Backend) launch(total int, makeWorker func() func(unit int)) error {
	if total <= 0 {
		return nil
	}
	threads := b.gridWidth
	if threads > total {
		threads = total
	}
	var next atomic.Int64
	var wg sync.WaitGroup
	var failOnce sync.Once
	var failure any
	wg.Add(threads)
	for i := 0; i < threads; i++ {
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failOnce.Do(func() { failure = r })
				}
			}()
			worker := makeWorker()
			for {
				unit := int(next.Add(1) - 1)
				if unit >= total {
					return
				}
				worker(unit)
			}
		}()
	}
	wg.Wait()
	if failure != nil {
		return errors.Wrapf(backends.ErrExecFailure, "kernel aborted: %v", failure)
	}
	return nil
}
