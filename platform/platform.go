package platform

import (
	"runtime"
	"sync"

	enginehost "github.com/wippyai/engine-host"
)

// Platform runs background tasks for registered instances on a shared
// worker pool. It implements enginehost.Platform.
type Platform struct {
	mu      sync.Mutex
	queues  map[uint64]*instanceQueue
	tasks   chan func()
	workers sync.WaitGroup
	closed  bool
}

type instanceQueue struct {
	pending sync.WaitGroup
}

// New creates a platform with the given number of workers; 0 means one
// per CPU.
func New(workers int) *Platform {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Platform{
		queues: make(map[uint64]*instanceQueue),
		tasks:  make(chan func(), 64),
	}
	p.workers.Add(workers)
	for range workers {
		go func() {
			defer p.workers.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Register makes the platform track background tasks for an instance.
// Registering twice is a no-op.
func (p *Platform) Register(instanceID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.queues[instanceID]; !ok {
		p.queues[instanceID] = &instanceQueue{}
	}
}

// Registered reports whether the instance is currently tracked.
func (p *Platform) Registered(instanceID uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.queues[instanceID]
	return ok
}

// Post queues a background task for an instance. Tasks posted for
// unregistered or retired instances are dropped.
func (p *Platform) Post(instanceID uint64, task func()) {
	if task == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.queues[instanceID]
	if !ok || p.closed {
		return
	}
	q.pending.Add(1)

	// The send stays under the lock so Shutdown cannot close the channel
	// between the check and the send. Workers never take the lock, so the
	// queue keeps draining while a sender waits.
	p.tasks <- func() {
		defer q.pending.Done()
		task()
	}
}

// DrainTasks blocks until every task posted for the instance so far has
// finished. Draining an unknown instance is a no-op, so repeated drains
// are harmless.
func (p *Platform) DrainTasks(instanceID uint64) {
	p.mu.Lock()
	q, ok := p.queues[instanceID]
	p.mu.Unlock()
	if !ok {
		return
	}
	q.pending.Wait()
}

// Unregister drains the instance's tasks and stops tracking it.
func (p *Platform) Unregister(instanceID uint64) {
	p.DrainTasks(instanceID)

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.queues, instanceID)
}

// Shutdown stops the workers after the queued tasks finish. The platform
// accepts no work afterward.
func (p *Platform) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.workers.Wait()
}

var _ enginehost.Platform = (*Platform)(nil)
