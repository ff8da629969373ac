//go:build leakaudit

package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/engine-host/engine"
)

// auditLeaks reports scratch buffers still outstanding after a run.
// Enabled with the leakaudit build tag; the report is advisory and never
// changes the exit code.
func (m *MainInstance) auditLeaks() {
	alloc := m.data.Allocator
	if alloc == nil {
		return
	}

	if n := alloc.OutstandingBuffers(); n > 0 {
		engine.Logger().Warn("scratch buffers leaked after run",
			zap.Uint64("instance", m.inst.ID()),
			zap.Int("buffers", n),
			zap.Uint64("bytes", alloc.OutstandingBytes()))
	}
}
