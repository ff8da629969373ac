package env

import (
	"context"
	goerrors "errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	enginehost "github.com/wippyai/engine-host"
	"github.com/wippyai/engine-host/engine"
	"github.com/wippyai/engine-host/errors"
)

// StartFunc overrides the default program start. The default instantiates
// the environment's context and runs its start function.
type StartFunc func(ctx context.Context, e *Environment) error

// Environment is the bound program context for one run. It is owned by
// the execution driver and must be released after the run ends.
type Environment struct {
	data     *engine.InstanceData
	ctxt     *engine.Context
	args     []string
	execArgs []string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	mu       sync.Mutex
	mod      interface{ Close(context.Context) error }
	exitCode enginehost.ExitCode

	loaded   atomic.Bool
	released atomic.Bool
}

// New binds a runtime environment to an instance's data, an execution
// context, and program arguments. Passing a nil context selects the
// snapshot path: the context is read from the instance's restored state.
func New(data *engine.InstanceData, ctxt *engine.Context, args, execArgs []string) (*Environment, error) {
	if data == nil {
		return nil, errors.NotInitialized(errors.PhaseBootstrap, "instance data")
	}
	inst := data.Instance()
	if inst == nil {
		return nil, errors.NotInitialized(errors.PhaseBootstrap, "engine instance")
	}
	if data.Loop == nil {
		return nil, errors.NotInitialized(errors.PhaseBootstrap, "event loop")
	}

	if ctxt == nil {
		ctxt = inst.RestoredContext()
		if ctxt == nil {
			return nil, errors.NotInitialized(errors.PhaseBootstrap, "restored context")
		}
	}

	return &Environment{
		data:     data,
		ctxt:     ctxt,
		args:     args,
		execArgs: execArgs,
	}, nil
}

// SetStdio redirects the program's standard streams. Must be called
// before Load.
func (e *Environment) SetStdio(stdin io.Reader, stdout, stderr io.Writer) {
	e.stdin = stdin
	e.stdout = stdout
	e.stderr = stderr
}

// Data returns the per-instance data the environment is bound to.
func (e *Environment) Data() *engine.InstanceData {
	return e.data
}

// Context returns the execution context the environment is bound to.
func (e *Environment) Context() *engine.Context {
	return e.ctxt
}

// Args returns the program arguments.
func (e *Environment) Args() []string {
	return e.args
}

// ExecArgs returns the host-level execution arguments.
func (e *Environment) ExecArgs() []string {
	return e.execArgs
}

// Load posts the program start onto the event loop. It may be called
// once; the loop's spin executes the program. Start failures are mapped
// to an exit code through Exit, not returned.
func (e *Environment) Load(ctx context.Context, start StartFunc) error {
	if e.released.Load() {
		return errors.AlreadyClosed(errors.PhaseLoad, "environment")
	}
	if !e.loaded.CompareAndSwap(false, true) {
		return errors.AlreadyLoaded()
	}

	if start == nil {
		start = defaultStart
	}

	e.data.Loop.Post(func() {
		if err := start(ctx, e); err != nil {
			code := MapExitCode(err)
			engine.Logger().Debug("environment start failed",
				zap.Error(err),
				zap.Stringer("exitCode", code))
			e.Exit(code)
		}
	})
	return nil
}

// defaultStart instantiates the context and runs the program's start
// function.
func defaultStart(ctx context.Context, e *Environment) error {
	mod, err := e.ctxt.Instantiate(ctx, engine.InstantiateConfig{
		Args:   e.args,
		Stdin:  e.stdin,
		Stdout: e.stdout,
		Stderr: e.stderr,
	})
	if mod != nil {
		e.mu.Lock()
		e.mod = mod
		e.mu.Unlock()
	}
	return err
}

// Exit records a program exit code and stops the event loop. The code is
// escalate-only: a recorded failure is never overwritten by no-failure.
func (e *Environment) Exit(code enginehost.ExitCode) {
	e.mu.Lock()
	if e.exitCode == enginehost.ExitNoFailure {
		e.exitCode = code
	}
	e.mu.Unlock()

	if code != enginehost.ExitNoFailure {
		e.data.Loop.Stop(code)
	}
}

// ExitCode returns the recorded exit code, ExitNoFailure by default.
func (e *Environment) ExitCode() enginehost.ExitCode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCode
}

// Release frees the run's live module and, for fresh contexts, the
// compiled program. Releasing twice is a no-op.
func (e *Environment) Release(ctx context.Context) error {
	if !e.released.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	e.mu.Lock()
	mod := e.mod
	e.mod = nil
	e.mu.Unlock()

	if mod != nil {
		err = mod.Close(ctx)
	}
	if cerr := e.ctxt.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(errors.PhaseDispose, errors.KindTeardown, err, "release environment")
	}
	return nil
}

// MapExitCode maps a program start or run failure to an exit code.
// Explicit guest exits keep their code; anything else is a generic user
// error.
func MapExitCode(err error) enginehost.ExitCode {
	if err == nil {
		return enginehost.ExitNoFailure
	}

	var exitErr *sys.ExitError
	if goerrors.As(err, &exitErr) {
		return enginehost.ExitCode(exitErr.ExitCode())
	}
	return enginehost.ExitGenericUserError
}
