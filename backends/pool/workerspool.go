package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// workersPool bounds the number of concurrently running kernel workers.
// maxParallelism is a soft target: the goroutine limit is a small multiple
// of it, because workers occasionally block on each other.
type workersPool struct {
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // signaled whenever numRunning decreases
	numRunning     int

	// extraParallelism is temporarily increased while a worker sleeps.
	extraParallelism atomic.Int32
}

// Initialize must be called before use.
func (w *workersPool) Initialize() {
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
}

// MaxParallelism returns the soft parallelism target. 0 means parallelism
// is disabled.
func (w *workersPool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism changes the soft target. Only call before any workers
// start running; changing it mid-execution is undefined.
func (w *workersPool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

const goroutineToParallelismRatio = 2

// lockedIsFull reports whether all available workers are in use.
// Call with w.mu held.
func (w *workersPool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	}
	return w.numRunning >= goroutineToParallelismRatio*w.maxParallelism+int(w.extraParallelism.Load())
}

// WaitToStart blocks until a worker slot is free, then runs task in its own
// goroutine. With parallelism disabled the task runs inline.
func (w *workersPool) WaitToStart(task func()) {
	if w.maxParallelism == 0 {
		task()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

// lockedRunTaskInGoroutine keeps tabs on w.numRunning.
// Call with w.mu held.
func (w *workersPool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}
