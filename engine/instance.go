package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/engine-host/errors"
	"github.com/wippyai/engine-host/snapshot"
)

var nextInstanceID atomic.Uint64

// Instance is a heavyweight, isolated execution context: a dedicated
// wazero runtime capable of running one program independently of any
// other instance.
//
// Use of an instance is serialized through Lock. Ownership (who disposes
// it) is decided by the lifecycle manager, not here.
type Instance struct {
	id       uint64
	rt       wazero.Runtime
	cache    wazero.CompilationCache
	restored *Context

	mu       sync.Mutex
	dataMu   sync.Mutex
	data     *InstanceData
	contexts atomic.Int32
	disposed atomic.Bool
}

// New creates an engine instance built under params, restoring from snap
// when it is non-nil. Restoration compiles the snapshot's program
// immediately so the environment bootstrapper can reuse the restored
// context without constructing a fresh one.
func New(ctx context.Context, params *Params, snap *snapshot.Snapshot) (*Instance, error) {
	if params == nil {
		return nil, errors.NotInitialized(errors.PhaseCreate, "instance parameters")
	}

	constraints := params.Constraints
	if snap != nil {
		if sc := snap.Constraints(); sc.MemoryLimitPages > 0 {
			constraints.MemoryLimitPages = sc.MemoryLimitPages
		}
	}

	cfg := wazero.NewRuntimeConfig()
	if constraints.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(constraints.MemoryLimitPages)
	}

	var cache wazero.CompilationCache
	if snap != nil && snap.CacheDir() != "" {
		c, err := wazero.NewCompilationCacheWithDir(snap.CacheDir())
		if err != nil {
			return nil, errors.CreationFailed(err)
		}
		cache = c
		cfg = cfg.WithCompilationCache(cache)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	inst := &Instance{
		id:    nextInstanceID.Add(1),
		rt:    rt,
		cache: cache,
	}

	if snap != nil {
		compiled, err := rt.CompileModule(ctx, snap.Program())
		if err != nil {
			_ = rt.Close(ctx)
			if cache != nil {
				_ = cache.Close(ctx)
			}
			return nil, errors.CreationFailed(err)
		}
		inst.restored = &Context{inst: inst, compiled: compiled, restored: true}
	}

	Logger().Debug("engine instance created",
		zap.Uint64("instance", inst.id),
		zap.Bool("restored", snap != nil))
	return inst, nil
}

// ID returns the instance identity used for platform registration.
func (i *Instance) ID() uint64 {
	return i.id
}

// Lock acquires exclusive access to the instance for the duration of a
// run and returns the release function.
func (i *Instance) Lock() func() {
	i.mu.Lock()
	return i.mu.Unlock
}

// AttachData attaches per-instance data. It may be called exactly once,
// after the instance exists and before any environment is bootstrapped.
func (i *Instance) AttachData(data *InstanceData) error {
	if data == nil {
		return errors.NotInitialized(errors.PhaseAttach, "instance data")
	}

	i.dataMu.Lock()
	defer i.dataMu.Unlock()

	if i.data != nil {
		return errors.InvalidInput(errors.PhaseAttach, "instance data already attached")
	}
	if data.inst != nil {
		return errors.InvalidInput(errors.PhaseAttach, "instance data bound to another instance")
	}
	data.inst = i
	i.data = data
	return nil
}

// Data returns the attached per-instance data, or nil before AttachData.
func (i *Instance) Data() *InstanceData {
	i.dataMu.Lock()
	defer i.dataMu.Unlock()
	return i.data
}

// RestoredContext returns the context restored from the snapshot, or nil
// when the instance was created fresh.
func (i *Instance) RestoredContext() *Context {
	return i.restored
}

// NewContext compiles source into a fresh execution context bound to this
// instance. The source is staged through the instance's scratch allocator
// when one is attached, so callers may reuse their slice afterward.
func (i *Instance) NewContext(ctx context.Context, source []byte) (*Context, error) {
	if i.disposed.Load() {
		return nil, errors.AlreadyClosed(errors.PhaseBootstrap, "engine instance")
	}
	if len(source) == 0 {
		return nil, errors.EmptyContext("no program source", nil)
	}

	program := source
	if data := i.Data(); data != nil && data.Allocator != nil {
		buf, err := data.Allocator.Alloc(uint64(len(source)))
		if err != nil {
			return nil, err
		}
		defer data.Allocator.Free(buf)
		copy(buf, source)
		program = buf
	}

	compiled, err := i.rt.CompileModule(ctx, program)
	if err != nil {
		return nil, errors.EmptyContext("compile program", err)
	}

	i.contexts.Add(1)
	return &Context{inst: i, compiled: compiled}, nil
}

// ContextCount reports how many fresh contexts this instance has created.
// Restored contexts are not counted.
func (i *Instance) ContextCount() int {
	return int(i.contexts.Load())
}

// Disposed reports whether the instance has been disposed.
func (i *Instance) Disposed() bool {
	return i.disposed.Load()
}

// Dispose destroys the instance. Only the owner may call it, exactly
// once; a second call reports the violation.
func (i *Instance) Dispose(ctx context.Context) error {
	if !i.disposed.CompareAndSwap(false, true) {
		return errors.AlreadyClosed(errors.PhaseDispose, "engine instance")
	}

	err := i.rt.Close(ctx)
	if i.cache != nil {
		if cerr := i.cache.Close(ctx); err == nil {
			err = cerr
		}
	}

	Logger().Debug("engine instance disposed", zap.Uint64("instance", i.id))
	if err != nil {
		return errors.Wrap(errors.PhaseDispose, errors.KindTeardown, err, "close runtime")
	}
	return nil
}
