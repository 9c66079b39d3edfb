package dispatch

import (
	"errors"
	"sync"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/observability"
)

// ErrPoolClosed is returned by Submit once Shutdown has been called.
var ErrPoolClosed = errors.New("dispatch: worker pool is shut down")

// WorkerPool runs submitted jobs on a fixed number of goroutines. With the
// default size of one, jobs complete in the order they were submitted,
// matching the dispatcher's single-worker FIFO default; a larger size trades
// that ordering guarantee for throughput, which is the caller's choice to
// make, not this package's.
//
// Shutdown's drain-then-report shape follows kernel.StartCleanupLoop's
// done-channel idiom, adapted from a ticker loop to a
// job queue.
type WorkerPool struct {
	jobs chan func()
	wg   sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWorkerPool starts a pool of size workers reading from a queue of the
// given depth. size < 1 is treated as 1.
func NewWorkerPool(size, queueDepth int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}
	p := &WorkerPool{
		jobs:   make(chan func(), queueDepth),
		closed: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit enqueues job to run on a worker, or fails with ErrPoolClosed once
// Shutdown has been called.
func (p *WorkerPool) Submit(job func()) error {
	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- job:
		observability.SetWorkerPoolQueueDepth(len(p.jobs))
		return nil
	case <-p.closed:
		return ErrPoolClosed
	}
}

// Shutdown stops accepting new jobs, waits for everything already queued
// to finish, and returns once every worker has exited.
func (p *WorkerPool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.closed)
		close(p.jobs)
	})
	p.wg.Wait()
}
