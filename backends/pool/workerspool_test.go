package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkersPoolRunsAllTasks(t *testing.T) {
	var w workersPool
	w.Initialize()

	const numTasks = 100
	var done atomic.Int32
	var wg sync.WaitGroup
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		w.WaitToStart(func() {
			defer wg.Done()
			done.Add(1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(numTasks), done.Load())
}

func TestWorkersPoolDisabledRunsInline(t *testing.T) {
	var w workersPool
	w.Initialize()
	w.SetMaxParallelism(0)

	// With parallelism off the task runs before WaitToStart returns, so no
	// synchronization is needed to observe its effect.
	ran := false
	w.WaitToStart(func() { ran = true })
	assert.True(t, ran)
}

func TestWorkersPoolBoundsConcurrency(t *testing.T) {
	var w workersPool
	w.Initialize()
	const maxParallelism = 2
	w.SetMaxParallelism(maxParallelism)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	const numTasks = 20
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		w.WaitToStart(func() {
			defer wg.Done()
			now := running.Add(1)
			for {
				p := peak.Load()
				if now <= p || peak.CompareAndSwap(p, now) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(goroutineToParallelismRatio*maxParallelism))
}
