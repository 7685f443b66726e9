// Package pool implements the shared-memory parallel backend.
//
// The correlators distribute the outer station index q dynamically over a
// soft-limited workers pool: the per-q work shrinks as q grows (the baseline
// loop is triangular), so indices are drawn one at a time from an atomic
// cursor rather than statically chunked. The baseline index layout
// guarantees each q writes a disjoint contiguous range of the output, so no
// locks are needed.
package pool

import (
	"strconv"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/radioastro/visim/backends"
)

// BackendName for use in VISIM_BACKEND or backends.NewWithConfig.
const BackendName = "pool"

func init() {
	backends.Register(BackendName, New)
}

// New constructs a pool backend. The config string is empty or the maximum
// worker parallelism as an integer; 0 disables parallelism (all kernels run
// sequentially, useful for deterministic debugging).
func New(config string) backends.Backend {
	b := &Backend{}
	b.workers.Initialize()
	if config != "" {
		maxParallelism, err := strconv.Atoi(config)
		if err != nil || maxParallelism < 0 {
			exceptions.Panicf("pool backend config must be a non-negative worker count, got %q", config)
		}
		b.workers.SetMaxParallelism(maxParallelism)
	}
	klog.V(1).Infof("pool backend created, maxParallelism=%d", b.workers.MaxParallelism())
	return b
}

// Backend implements backends.Backend over the host CPU.
type Backend struct {
	workers workersPool
}

// Compile-time check.
var _ backends.Backend = (*Backend)(nil)

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements backends.Backend.
func (b *Backend) Description() string {
	return "Shared-memory CPU backend (dynamic station scheduling)"
}

// NumDevices implements backends.Backend. The pool backend is the host.
func (b *Backend) NumDevices() backends.DeviceNum { return 1 }

// Finalize implements backends.Backend.
func (b *Backend) Finalize() {}
