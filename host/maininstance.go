package host

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	enginehost "github.com/wippyai/engine-host"
	"github.com/wippyai/engine-host/engine"
	"github.com/wippyai/engine-host/env"
	"github.com/wippyai/engine-host/snapshot"
)

// Options configure a lifecycle manager.
type Options struct {
	// TrackAllocations records the scratch allocator's high-water mark
	// over the run. Owned managers only; borrowed instances carry no
	// allocator.
	TrackAllocations bool

	// Program is the program source for the fresh bootstrap path. When
	// nil, the source is read from the file named by the first argument.
	Program []byte

	// Constraints seed the instance parameters on owned construction.
	// Snapshot-recorded constraints take precedence per field.
	Constraints engine.Constraints

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ownership is the capability split between managers that created their
// instance and managers that were handed one. Exactly one variant is
// bound per manager, at construction.
type ownership interface {
	dispose(ctx context.Context, m *MainInstance)
	close(ctx context.Context, m *MainInstance)
}

// owning holds what the manager created and must tear down: the instance
// parameters, whose allocator stays valid until the manager closes.
type owning struct {
	params *engine.Params
}

func (o *owning) dispose(ctx context.Context, m *MainInstance) {
	fatal("Dispose called on an owning lifecycle manager",
		zap.Uint64("instance", m.inst.ID()))
}

func (o *owning) close(ctx context.Context, m *MainInstance) {
	m.platform.Unregister(m.inst.ID())
	if err := m.inst.Dispose(ctx); err != nil {
		engine.Logger().Warn("instance dispose failed",
			zap.Uint64("instance", m.inst.ID()), zap.Error(err))
	}
}

// borrowed managers never destroy the instance; its external owner does.
type borrowed struct{}

func (borrowed) dispose(ctx context.Context, m *MainInstance) {
	m.platform.DrainTasks(m.inst.ID())
}

func (borrowed) close(ctx context.Context, m *MainInstance) {
	m.platform.Unregister(m.inst.ID())
}

// MainInstance manages the lifecycle of one engine instance hosting one
// program run: construction or attachment, environment bootstrap,
// execution, and teardown matched to ownership.
type MainInstance struct {
	args     []string
	execArgs []string
	opts     Options

	inst     *engine.Instance
	data     *engine.InstanceData
	loop     enginehost.EventLoop
	platform enginehost.Platform
	snap     *snapshot.Snapshot

	owner     ownership
	closeOnce sync.Once
	ran       atomic.Bool
}

// NewOwned creates a lifecycle manager that builds its own engine
// instance, restoring from snap when it is non-nil. Creation failure is
// unrecoverable. The returned manager must be closed with Close.
func NewOwned(ctx context.Context, snap *snapshot.Snapshot, lp enginehost.EventLoop, pf enginehost.Platform, args, execArgs []string, opts Options) *MainInstance {
	constraints := opts.Constraints
	if snap != nil {
		sc := snap.Constraints()
		if sc.MemoryLimitPages > 0 {
			constraints.MemoryLimitPages = sc.MemoryLimitPages
		}
		if sc.ScratchBudgetBytes > 0 {
			constraints.ScratchBudgetBytes = sc.ScratchBudgetBytes
		}
	}
	params := engine.NewParams(constraints)

	inst, err := engine.New(ctx, params, snap)
	if err != nil {
		fatal("failed to create engine instance", zap.Error(err))
	}

	data := &engine.InstanceData{
		Options:         engine.Options{TrackAllocations: opts.TrackAllocations},
		MaxScratchBytes: params.Constraints.ScratchBudget(),
		Loop:            lp,
		Platform:        pf,
		Allocator:       params.Allocator,
	}
	if snap != nil {
		data.Snapshot = snap.EmbedderView()
	}

	m := &MainInstance{
		args:     args,
		execArgs: execArgs,
		opts:     opts,
		inst:     inst,
		data:     data,
		loop:     lp,
		platform: pf,
		snap:     snap,
		owner:    &owning{params: params},
	}
	m.attach()
	return m
}

// NewBorrowed creates a lifecycle manager around an externally owned
// instance. The instance must be non-nil and must not already carry
// per-instance data. Borrowed managers never dispose the instance; call
// Dispose to drain its background tasks and Close to unregister it.
func NewBorrowed(inst *engine.Instance, lp enginehost.EventLoop, pf enginehost.Platform, args, execArgs []string, opts Options) *MainInstance {
	if inst == nil {
		fatal("borrowed engine instance is nil")
	}

	m := &MainInstance{
		args:     args,
		execArgs: execArgs,
		opts:     opts,
		inst:     inst,
		data: &engine.InstanceData{
			Options:  engine.Options{TrackAllocations: opts.TrackAllocations},
			Loop:     lp,
			Platform: pf,
		},
		loop:     lp,
		platform: pf,
		owner:    borrowed{},
	}
	m.attach()
	return m
}

func (m *MainInstance) attach() {
	if err := m.inst.AttachData(m.data); err != nil {
		fatal("failed to attach instance data",
			zap.Uint64("instance", m.inst.ID()), zap.Error(err))
	}
	m.platform.Register(m.inst.ID())
}

// Owned reports whether the manager owns its instance.
func (m *MainInstance) Owned() bool {
	_, ok := m.owner.(*owning)
	return ok
}

// Params returns the instance parameters held by an owning manager, nil
// for a borrowed one.
func (m *MainInstance) Params() *engine.Params {
	if o, ok := m.owner.(*owning); ok {
		return o.params
	}
	return nil
}

// Instance returns the managed engine instance.
func (m *MainInstance) Instance() *engine.Instance {
	return m.inst
}

// Data returns the per-instance data attached at construction.
func (m *MainInstance) Data() *engine.InstanceData {
	return m.data
}

// Dispose releases borrowed resources: it drains the instance's pending
// background tasks and may be called repeatedly. Calling it on an owning
// manager is a contract violation; owning managers tear down through
// Close.
func (m *MainInstance) Dispose(ctx context.Context) {
	m.owner.dispose(ctx, m)
}

// Close tears the manager down according to ownership, exactly once.
// Owning managers unregister and dispose their instance; borrowed
// managers only unregister, leaving disposal to the external owner.
func (m *MainInstance) Close(ctx context.Context) {
	m.closeOnce.Do(func() {
		m.owner.close(ctx, m)
	})
}

// Run executes the managed program to completion and returns its exit
// code. The instance is locked for the duration. A manager runs once;
// construct a fresh one per run.
func (m *MainInstance) Run(ctx context.Context) enginehost.ExitCode {
	if !m.ran.CompareAndSwap(false, true) {
		fatal("Run called twice on the same lifecycle manager",
			zap.Uint64("instance", m.inst.ID()))
	}

	unlock := m.inst.Lock()
	defer unlock()

	code := enginehost.ExitNoFailure
	e := m.CreateMainEnvironment(ctx, &code)
	if e == nil {
		fatal("environment bootstrap returned nil")
	}
	defer func() {
		if err := e.Release(ctx); err != nil {
			engine.Logger().Warn("environment release failed", zap.Error(err))
		}
	}()

	m.runEnvironment(ctx, &code, e)
	return code
}

// CreateMainEnvironment bootstraps the runtime environment for the run.
// With a snapshot the restored context is reused and the crypto
// subsystem is primed; without one a fresh context is compiled from the
// program source. Bootstrap failures are fatal.
func (m *MainInstance) CreateMainEnvironment(ctx context.Context, code *enginehost.ExitCode) *env.Environment {
	*code = enginehost.ExitNoFailure

	if m.opts.TrackAllocations && m.data.Allocator != nil {
		m.data.Allocator.StartTracking()
	}

	var e *env.Environment
	if m.snap != nil {
		restored, err := env.New(m.data, nil, m.args, m.execArgs)
		if err != nil {
			fatal("failed to bootstrap environment from snapshot", zap.Error(err))
		}
		env.InitCryptoOnce()
		e = restored
	} else {
		ctxt, err := m.inst.NewContext(ctx, m.programSource())
		if err != nil {
			fatal("failed to create execution context", zap.Error(err))
		}
		e, err = env.New(m.data, ctxt, m.args, m.execArgs)
		if err != nil {
			fatal("failed to bootstrap environment", zap.Error(err))
		}
	}

	e.SetStdio(m.opts.Stdin, m.opts.Stdout, m.opts.Stderr)
	return e
}

// programSource resolves the program bytes for the fresh bootstrap path.
func (m *MainInstance) programSource() []byte {
	if m.opts.Program != nil {
		return m.opts.Program
	}
	if len(m.args) == 0 {
		fatal("no program source: no bytes provided and no program argument")
	}
	source, err := os.ReadFile(m.args[0])
	if err != nil {
		fatal("failed to read program", zap.String("path", m.args[0]), zap.Error(err))
	}
	return source
}

// runEnvironment is the execution driver: load the program, spin the
// event loop, and compose the exit code. An abnormally terminated spin
// is a generic user error; otherwise an explicit loop stop code wins,
// then the environment's recorded code.
func (m *MainInstance) runEnvironment(ctx context.Context, code *enginehost.ExitCode, e *env.Environment) {
	if *code == enginehost.ExitNoFailure {
		if err := e.Load(ctx, nil); err != nil {
			engine.Logger().Warn("environment load failed", zap.Error(err))
			*code = enginehost.ExitGenericUserError
		} else {
			spun, ok := m.loop.Spin(ctx)
			switch {
			case !ok:
				*code = enginehost.ExitGenericUserError
			case spun != enginehost.ExitNoFailure:
				*code = spun
			default:
				*code = e.ExitCode()
			}
		}
	}

	m.auditLeaks()
}
