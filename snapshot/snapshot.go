package snapshot

import (
	"bytes"
	"os"

	"github.com/wippyai/engine-host/errors"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// Constraints are the creation-time limits recorded in a snapshot. They
// seed the instance parameters when an instance is restored from the
// snapshot.
type Constraints struct {
	// MemoryLimitPages caps instance memory in 64KiB pages. 0 means the
	// engine default.
	MemoryLimitPages uint32

	// ScratchBudgetBytes caps the host-side scratch allocator. 0 derives
	// the budget from MemoryLimitPages.
	ScratchBudgetBytes uint64
}

// Snapshot is an immutable handle to previously serialized engine state:
// the program to restore plus the constraints it was built under.
type Snapshot struct {
	program     []byte
	cacheDir    string
	constraints Constraints
}

// Option configures snapshot construction.
type Option func(*Snapshot)

// WithCacheDir points the snapshot at a compilation-cache directory so
// restoring skips recompilation across processes.
func WithCacheDir(dir string) Option {
	return func(s *Snapshot) {
		s.cacheDir = dir
	}
}

// WithConstraints records the creation-time limits.
func WithConstraints(c Constraints) Option {
	return func(s *Snapshot) {
		s.constraints = c
	}
}

// FromBytes builds a snapshot handle around serialized program state.
// The bytes are validated eagerly; the slice is not copied and must not
// be mutated afterward.
func FromBytes(program []byte, opts ...Option) (*Snapshot, error) {
	if len(program) < 8 || !bytes.Equal(program[:4], wasmMagic) {
		return nil, errors.InvalidInput(errors.PhaseSnapshot, "program is not a serialized module")
	}

	s := &Snapshot{program: program}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromFile reads and validates a snapshot program from disk.
func FromFile(path string, opts ...Option) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSnapshot, errors.KindInvalidInput, err, "read snapshot")
	}
	return FromBytes(data, opts...)
}

// Program returns the serialized program state.
func (s *Snapshot) Program() []byte {
	return s.program
}

// CacheDir returns the compilation-cache directory, or "" when none was
// configured.
func (s *Snapshot) CacheDir() string {
	return s.cacheDir
}

// Constraints returns the creation-time limits recorded in the snapshot.
func (s *Snapshot) Constraints() Constraints {
	return s.constraints
}

// EmbedderView is the slice of snapshot state that per-instance data
// keeps for the lifetime of the instance.
type EmbedderView struct {
	ProgramSize int
	Cached      bool
}

// EmbedderView returns the embedder-facing view of the snapshot.
func (s *Snapshot) EmbedderView() *EmbedderView {
	return &EmbedderView{
		ProgramSize: len(s.program),
		Cached:      s.cacheDir != "",
	}
}
