package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/engine-host/internal/wasmtest"
	"github.com/wippyai/engine-host/snapshot"
)

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	inst, err := New(context.Background(), NewParams(Constraints{}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if !inst.Disposed() {
			_ = inst.Dispose(context.Background())
		}
	})
	return inst
}

func TestNew_RequiresParams(t *testing.T) {
	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil params")
	}
}

func TestInstance_AttachDataOnce(t *testing.T) {
	inst := newTestInstance(t)

	if inst.Data() != nil {
		t.Fatal("Data before attach should be nil")
	}
	if err := inst.AttachData(&InstanceData{}); err != nil {
		t.Fatalf("AttachData: %v", err)
	}
	if inst.Data() == nil {
		t.Fatal("Data after attach is nil")
	}
	if err := inst.AttachData(&InstanceData{}); err == nil {
		t.Fatal("second AttachData should fail")
	}
	if err := inst.AttachData(nil); err == nil {
		t.Fatal("nil AttachData should fail")
	}
}

func TestInstance_NewContext(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	if got := inst.ContextCount(); got != 0 {
		t.Fatalf("ContextCount = %d, want 0", got)
	}

	c, err := inst.NewContext(ctx, wasmtest.EmptyModule())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Close(ctx)

	if c.Restored() {
		t.Error("fresh context reports restored")
	}
	if c.Instance() != inst {
		t.Error("context not bound to its instance")
	}
	if got := inst.ContextCount(); got != 1 {
		t.Errorf("ContextCount = %d, want 1", got)
	}

	if _, err := inst.NewContext(ctx, nil); err == nil {
		t.Error("empty source should fail")
	}
	if _, err := inst.NewContext(ctx, []byte{0x01, 0x02}); err == nil {
		t.Error("garbage source should fail")
	}
}

func TestInstance_NewContextUsesAllocator(t *testing.T) {
	inst := newTestInstance(t)
	alloc := NewBufferAllocator(0)
	if err := inst.AttachData(&InstanceData{Allocator: alloc}); err != nil {
		t.Fatal(err)
	}
	alloc.StartTracking()

	src := wasmtest.NopStart()
	c, err := inst.NewContext(context.Background(), src)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer c.Close(context.Background())

	if got := alloc.HighWater(); got != uint64(len(src)) {
		t.Errorf("allocator high water = %d, want %d", got, len(src))
	}
	if got := alloc.OutstandingBytes(); got != 0 {
		t.Errorf("scratch buffer leaked: %d bytes outstanding", got)
	}
}

func TestInstance_DisposeExactlyOnce(t *testing.T) {
	inst, err := New(context.Background(), NewParams(Constraints{}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if inst.Disposed() {
		t.Fatal("fresh instance reports disposed")
	}
	if err := inst.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if !inst.Disposed() {
		t.Fatal("instance not marked disposed")
	}
	if err := inst.Dispose(context.Background()); err == nil {
		t.Fatal("second Dispose should fail")
	}
	if _, err := inst.NewContext(context.Background(), wasmtest.EmptyModule()); err == nil {
		t.Fatal("NewContext after Dispose should fail")
	}
}

func TestInstance_LockSerializes(t *testing.T) {
	inst := newTestInstance(t)

	unlock := inst.Lock()

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		u := inst.Lock()
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second locker acquired while lock held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second locker never acquired")
	}
	wg.Wait()
}

func TestNew_RestoresFromSnapshot(t *testing.T) {
	snap, err := snapshot.FromBytes(wasmtest.NopStart(),
		snapshot.WithConstraints(snapshot.Constraints{MemoryLimitPages: 64}))
	if err != nil {
		t.Fatal(err)
	}

	inst, err := New(context.Background(), NewParams(Constraints{}), snap)
	if err != nil {
		t.Fatalf("New with snapshot: %v", err)
	}
	defer inst.Dispose(context.Background())

	restored := inst.RestoredContext()
	if restored == nil {
		t.Fatal("RestoredContext is nil")
	}
	if !restored.Restored() {
		t.Error("restored context does not report restored")
	}
	if got := inst.ContextCount(); got != 0 {
		t.Errorf("ContextCount = %d, want 0 after restore", got)
	}
}

func TestNew_SnapshotCompileFailure(t *testing.T) {
	// A snapshot handle with a valid header but truncated body passes the
	// handle's eager validation and fails at instance creation.
	snap, err := snapshot.FromBytes(append(wasmtest.EmptyModule(), 0x01))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(context.Background(), NewParams(Constraints{}), snap); err == nil {
		t.Fatal("expected creation failure")
	}
}

func TestNew_SnapshotWithCacheDir(t *testing.T) {
	snap, err := snapshot.FromBytes(wasmtest.NopStart(), snapshot.WithCacheDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	inst, err := New(context.Background(), NewParams(Constraints{}), snap)
	if err != nil {
		t.Fatalf("New with cached snapshot: %v", err)
	}
	if err := inst.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
}
