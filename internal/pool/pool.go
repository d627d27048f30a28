// Package pool provides a bounded worker pool for fanning out per-image work.
//
// The pool executes jobs on a fixed number of goroutines. Jobs added after
// Stop() are discarded; Wait() drains the queue, shuts the workers down, and
// reports the first job error. A Pool is single-use: create one per batch.
package pool

import "sync"

// Job is a unit of work executed by the pool.
type Job func() error

// Pool runs jobs on a fixed number of worker goroutines.
//
// All methods are safe for concurrent use. After Wait returns the pool's
// workers have exited and the pool must not be reused.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Job
	active   int
	closed   bool
	stopped  bool
	firstErr error

	// Failed counts jobs that returned a non-nil error.
	failed int
}

// New creates a pool with the given number of workers. Worker counts below
// one are treated as one.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Add queues jobs for execution. Jobs added after Stop or Wait are dropped.
func (p *Pool) Add(jobs []Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.stopped {
		return
	}
	p.queue = append(p.queue, jobs...)
	p.cond.Broadcast()
}

// Stop discards all queued jobs. In-flight jobs run to completion.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.queue = nil
	p.cond.Broadcast()
}

// Wait blocks until every queued job has finished, then shuts down the
// workers. It returns the first error returned by any job.
func (p *Pool) Wait() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	for len(p.queue) > 0 || p.active > 0 {
		p.cond.Wait()
	}
	return p.firstErr
}

// Failed reports how many jobs returned an error so far.
func (p *Pool) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

func (p *Pool) worker() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed && !p.stopped {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// Closed or stopped and fully drained.
			p.cond.Broadcast()
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		err := job()

		p.mu.Lock()
		p.active--
		if err != nil {
			p.failed++
			if p.firstErr == nil {
				p.firstErr = err
			}
		}
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}
