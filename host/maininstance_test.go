package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	enginehost "github.com/wippyai/engine-host"
	"github.com/wippyai/engine-host/engine"
	"github.com/wippyai/engine-host/internal/wasmtest"
	"github.com/wippyai/engine-host/loop"
	"github.com/wippyai/engine-host/platform"
	"github.com/wippyai/engine-host/snapshot"
)

// interceptFatal runs fn with a recording fatal hook installed and
// reports whether fn hit a fatal guard.
func interceptFatal(t *testing.T, fn func()) (msg string, fataled bool) {
	t.Helper()

	prev := fatalHook
	fatalHook = func(m string, fields ...zap.Field) {
		msg = m
		fataled = true
	}
	defer func() { fatalHook = prev }()
	defer func() { _ = recover() }()

	fn()
	return msg, fataled
}

func newPlatform(t *testing.T) *platform.Platform {
	t.Helper()
	pf := platform.New(2)
	t.Cleanup(pf.Shutdown)
	return pf
}

func TestNewOwned_RunToCompletion(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		Program: wasmtest.NopStart(),
	})
	defer m.Close(ctx)

	if !m.Owned() {
		t.Error("Owned = false for created instance")
	}
	params := m.Params()
	if params == nil || params.Allocator == nil {
		t.Fatal("owning manager must hold parameters with a live allocator")
	}

	if code := m.Run(ctx); code != enginehost.ExitNoFailure {
		t.Errorf("Run = %v, want no-failure", code)
	}
}

func TestRun_TrapIsGenericUserError(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		Program: wasmtest.TrapStart(),
	})
	defer m.Close(ctx)

	if code := m.Run(ctx); code != enginehost.ExitGenericUserError {
		t.Errorf("Run = %v, want generic-user-error", code)
	}
}

func TestRun_FreshContextCount(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		Program: wasmtest.NopStart(),
	})
	defer m.Close(ctx)

	m.Run(ctx)
	if got := m.Instance().ContextCount(); got != 1 {
		t.Errorf("ContextCount = %d, want exactly one fresh context", got)
	}
}

func TestNewOwned_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	snap, err := snapshot.FromBytes(wasmtest.NopStart(), snapshot.WithConstraints(snapshot.Constraints{
		MemoryLimitPages:   16,
		ScratchBudgetBytes: 1 << 20,
	}))
	if err != nil {
		t.Fatal(err)
	}

	m := NewOwned(ctx, snap, loop.New(), pf, nil, nil, Options{})
	defer m.Close(ctx)

	if m.Data().Snapshot == nil {
		t.Error("snapshot view not attached to instance data")
	}
	if got := m.Data().MaxScratchBytes; got != 1<<20 {
		t.Errorf("MaxScratchBytes = %d, want snapshot budget", got)
	}

	if code := m.Run(ctx); code != enginehost.ExitNoFailure {
		t.Errorf("Run = %v, want no-failure", code)
	}
	if got := m.Instance().ContextCount(); got != 0 {
		t.Errorf("snapshot run created %d fresh contexts, want 0", got)
	}
}

func TestNewBorrowed_NilInstanceIsFatal(t *testing.T) {
	pf := newPlatform(t)

	_, fataled := interceptFatal(t, func() {
		NewBorrowed(nil, loop.New(), pf, nil, nil, Options{})
	})
	if !fataled {
		t.Fatal("nil borrowed instance accepted")
	}
}

func TestDispose_OwningIsFatal(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		Program: wasmtest.NopStart(),
	})
	defer m.Close(ctx)

	_, fataled := interceptFatal(t, func() {
		m.Dispose(ctx)
	})
	if !fataled {
		t.Fatal("Dispose accepted on an owning manager")
	}

	// The guard fires before any teardown.
	if m.Instance().Disposed() {
		t.Error("guard disposed the instance")
	}
	if !pf.Registered(m.Instance().ID()) {
		t.Error("guard unregistered the instance")
	}
}

func TestBorrowed_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	inst, err := engine.New(ctx, engine.NewParams(engine.Constraints{}), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Dispose(ctx)

	m := NewBorrowed(inst, loop.New(), pf, nil, nil, Options{
		Program: wasmtest.NopStart(),
	})

	if m.Owned() {
		t.Error("Owned = true for borrowed instance")
	}
	if m.Params() != nil {
		t.Error("borrowed manager holds instance parameters")
	}

	if code := m.Run(ctx); code != enginehost.ExitNoFailure {
		t.Errorf("Run = %v, want no-failure", code)
	}

	// Dispose drains and may repeat.
	done := make(chan struct{})
	pf.Post(inst.ID(), func() { close(done) })
	m.Dispose(ctx)
	select {
	case <-done:
	default:
		t.Error("Dispose returned before background tasks drained")
	}
	m.Dispose(ctx)

	m.Close(ctx)
	if inst.Disposed() {
		t.Fatal("borrowed instance disposed by manager")
	}

	// The external owner can keep using the instance.
	if _, err := inst.NewContext(ctx, wasmtest.NopStart()); err != nil {
		t.Errorf("instance unusable after manager close: %v", err)
	}
}

func TestClose_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		Program: wasmtest.NopStart(),
	})
	id := m.Instance().ID()

	m.Close(ctx)
	if !m.Instance().Disposed() {
		t.Error("Close did not dispose the owned instance")
	}
	if pf.Registered(id) {
		t.Error("Close did not unregister the instance")
	}

	m.Close(ctx)
}

func TestRun_TwiceIsFatal(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		Program: wasmtest.NopStart(),
	})
	defer m.Close(ctx)

	m.Run(ctx)
	_, fataled := interceptFatal(t, func() {
		m.Run(ctx)
	})
	if !fataled {
		t.Fatal("second Run accepted on the same manager")
	}
}

func TestRun_InvalidProgramIsFatal(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		Program: []byte{0xde, 0xad, 0xbe, 0xef},
	})
	defer m.Close(ctx)

	msg, fataled := interceptFatal(t, func() {
		m.Run(ctx)
	})
	if !fataled {
		t.Fatal("invalid program ran")
	}
	if msg != "failed to create execution context" {
		t.Errorf("fatal = %q", msg)
	}
}

func TestProgramSource_FromFile(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	path := filepath.Join(t.TempDir(), "prog.wasm")
	if err := os.WriteFile(path, wasmtest.NopStart(), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewOwned(ctx, nil, loop.New(), pf, []string{path}, nil, Options{})
	defer m.Close(ctx)

	if code := m.Run(ctx); code != enginehost.ExitNoFailure {
		t.Errorf("Run = %v, want no-failure", code)
	}
}

func TestRun_TrackAllocations(t *testing.T) {
	ctx := context.Background()
	pf := newPlatform(t)

	program := wasmtest.NopStart()
	m := NewOwned(ctx, nil, loop.New(), pf, nil, nil, Options{
		TrackAllocations: true,
		Program:          program,
	})
	defer m.Close(ctx)

	m.Run(ctx)

	alloc := m.Params().Allocator
	if got := alloc.HighWater(); got < uint64(len(program)) {
		t.Errorf("HighWater = %d, want at least the staged program size %d", got, len(program))
	}
	if got := alloc.OutstandingBytes(); got != 0 {
		t.Errorf("OutstandingBytes = %d after run, want 0", got)
	}
}
