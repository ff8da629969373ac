package engine

// wasmPageSize is the WebAssembly linear-memory page size.
const wasmPageSize = 64 * 1024

// defaultScratchBudget bounds the scratch allocator when no constraint
// says otherwise.
const defaultScratchBudget = 16 << 20

// Constraints are the creation-time limits an instance is built under.
type Constraints struct {
	// MemoryLimitPages caps instance memory in 64KiB pages. 0 means the
	// engine default.
	MemoryLimitPages uint32

	// ScratchBudgetBytes caps the scratch allocator. 0 derives a budget
	// from MemoryLimitPages.
	ScratchBudgetBytes uint64
}

// ScratchBudget resolves the effective scratch-allocator budget: the
// explicit budget if set, otherwise a quarter of the memory limit,
// otherwise the package default.
func (c Constraints) ScratchBudget() uint64 {
	if c.ScratchBudgetBytes > 0 {
		return c.ScratchBudgetBytes
	}
	if c.MemoryLimitPages > 0 {
		return uint64(c.MemoryLimitPages) * wasmPageSize / 4
	}
	return defaultScratchBudget
}

// Params bundle the creation-time settings for an owned instance: the
// allocator it will use and the constraints it is built under. Borrowed
// instances have no Params; whoever built them consumed theirs.
type Params struct {
	Allocator   *BufferAllocator
	Constraints Constraints
}

// NewParams builds instance parameters referencing an allocator sized to
// the constraints.
func NewParams(c Constraints) *Params {
	return &Params{
		Allocator:   NewBufferAllocator(c.ScratchBudget()),
		Constraints: c,
	}
}
