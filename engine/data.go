package engine

import (
	enginehost "github.com/wippyai/engine-host"
	"github.com/wippyai/engine-host/snapshot"
)

// Options are the per-instance configuration carried by InstanceData.
type Options struct {
	// TrackAllocations records the scratch allocator's high-water mark
	// for the duration of the run.
	TrackAllocations bool
}

// InstanceData is the auxiliary state attached once to an engine
// instance: configuration, the derived scratch limit, and references to
// the event loop and platform the instance is bound to.
//
// It is owned by the lifecycle manager that attached it.
type InstanceData struct {
	Options         Options
	MaxScratchBytes uint64
	Loop            enginehost.EventLoop
	Platform        enginehost.Platform
	Allocator       *BufferAllocator
	Snapshot        *snapshot.EmbedderView

	inst *Instance
}

// Instance returns the engine instance the data is attached to, or nil
// before attachment.
func (d *InstanceData) Instance() *Instance {
	return d.inst
}
