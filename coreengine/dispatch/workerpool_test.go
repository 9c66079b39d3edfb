package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolDefaultSizeIsFIFO(t *testing.T) {
	pool := NewWorkerPool(0, 10)
	defer pool.Shutdown()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWorkerPoolRunsConcurrentlyWhenSizedUp(t *testing.T) {
	pool := NewWorkerPool(4, 10)
	defer pool.Shutdown()

	var running int32
	var maxSeen int32
	release := make(chan struct{})
	var releaseOnce sync.Once
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			// Hold every job until all four are running at once.
			if n == 4 {
				releaseOnce.Do(func() { close(release) })
			}
			select {
			case <-release:
			case <-time.After(time.Second):
			}
			atomic.AddInt32(&running, -1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(4), maxSeen)
}

func TestWorkerPoolSubmitAfterShutdownFails(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Shutdown()

	err := pool.Submit(func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestWorkerPoolShutdownWaitsForQueuedJobs(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	var completed int32
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(func() {
			atomic.AddInt32(&completed, 1)
		}))
	}
	pool.Shutdown()
	assert.Equal(t, int32(4), completed)
}
