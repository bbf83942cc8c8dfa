package tiled

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs prerender tasks on a fixed set of goroutines.
//
// Pending tasks form a bounded stack: the most recently submitted task is
// serviced first, and when the stack is full the oldest task is dropped.
// A dropped task's drop callback runs instead of its work.
//
// WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	limit   int

	mu     sync.Mutex
	cond   *sync.Cond
	stack  []poolTask
	closed bool

	wg      sync.WaitGroup
	dropped atomic.Uint64
	done    atomic.Uint64
}

type poolTask struct {
	work func()
	drop func()
}

// NewWorkerPool starts a pool with the given number of workers and queue
// limit. Non-positive workers means GOMAXPROCS; a non-positive limit means
// four tasks per worker.
func NewWorkerPool(workers, limit int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if limit <= 0 {
		limit = max(workers*4, 8)
	}
	p := &WorkerPool{workers: workers, limit: limit}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.stack) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		n := len(p.stack) - 1
		t := p.stack[n]
		p.stack[n] = poolTask{}
		p.stack = p.stack[:n]
		p.mu.Unlock()

		t.work()
		p.done.Add(1)
	}
}

// Submit queues work. drop, if non-nil, runs instead of work when the task
// is evicted from a full queue or discarded by Close. Submit after Close
// runs drop immediately.
func (p *WorkerPool) Submit(work, drop func()) {
	if work == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		runDrop(drop)
		return
	}
	p.stack = append(p.stack, poolTask{work: work, drop: drop})
	var evicted poolTask
	if len(p.stack) > p.limit {
		evicted = p.stack[0]
		copy(p.stack, p.stack[1:])
		p.stack[len(p.stack)-1] = poolTask{}
		p.stack = p.stack[:len(p.stack)-1]
	}
	p.mu.Unlock()
	p.cond.Signal()

	if evicted.work != nil {
		p.dropped.Add(1)
		runDrop(evicted.drop)
	}
}

func runDrop(drop func()) {
	if drop != nil {
		drop()
	}
}

// Close stops the workers after their current task and drops every queued
// task. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := p.stack
	p.stack = nil
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, t := range pending {
		p.dropped.Add(1)
		runDrop(t.drop)
	}
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int { return p.workers }

// Limit returns the queue limit.
func (p *WorkerPool) Limit() int { return p.limit }

// Queued returns the number of tasks waiting for a worker.
func (p *WorkerPool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stack)
}

// Dropped returns the number of tasks dropped without running.
func (p *WorkerPool) Dropped() uint64 { return p.dropped.Load() }

// Completed returns the number of tasks that ran.
func (p *WorkerPool) Completed() uint64 { return p.done.Load() }
