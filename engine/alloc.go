package engine

import (
	"sync"

	"github.com/wippyai/engine-host/errors"
)

// BufferAllocator hands out host-side scratch buffers on behalf of one
// owned engine instance. It tracks outstanding bytes against a budget so
// the leak audit can report buffers that were never freed.
//
// The allocator must outlive the instance that uses it; the owning
// lifecycle manager guarantees that.
type BufferAllocator struct {
	mu          sync.Mutex
	budget      uint64
	outstanding uint64
	buffers     int
	highWater   uint64
	tracking    bool
}

// NewBufferAllocator creates an allocator with the given byte budget.
// A zero budget means unlimited.
func NewBufferAllocator(budget uint64) *BufferAllocator {
	return &BufferAllocator{budget: budget}
}

// Alloc returns a zeroed buffer of size bytes, or an error when the
// allocation would exceed the budget.
func (a *BufferAllocator) Alloc(size uint64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.budget > 0 && a.outstanding+size > a.budget {
		return nil, errors.BudgetExceeded(size, a.budget)
	}

	a.outstanding += size
	a.buffers++
	if a.tracking && a.outstanding > a.highWater {
		a.highWater = a.outstanding
	}
	return make([]byte, size), nil
}

// Free returns a buffer to the allocator. Freeing nil is a no-op.
func (a *BufferAllocator) Free(buf []byte) {
	if buf == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	size := uint64(len(buf))
	if size > a.outstanding {
		size = a.outstanding
	}
	a.outstanding -= size
	if a.buffers > 0 {
		a.buffers--
	}
}

// OutstandingBytes reports bytes allocated but not yet freed.
func (a *BufferAllocator) OutstandingBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outstanding
}

// OutstandingBuffers reports buffers allocated but not yet freed.
func (a *BufferAllocator) OutstandingBuffers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffers
}

// Budget returns the configured byte budget, 0 meaning unlimited.
func (a *BufferAllocator) Budget() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.budget
}

// StartTracking begins recording the allocation high-water mark.
func (a *BufferAllocator) StartTracking() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracking = true
	a.highWater = a.outstanding
}

// HighWater reports the peak outstanding bytes observed since
// StartTracking.
func (a *BufferAllocator) HighWater() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highWater
}
