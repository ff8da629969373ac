package engine

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/engine-host/errors"
)

// Context is a compiled program unit bound to one instance. The fresh
// path builds it with Instance.NewContext; the snapshot path restores it
// at instance creation.
type Context struct {
	inst     *Instance
	compiled wazero.CompiledModule
	restored bool
}

// InstantiateConfig configures one instantiation of a context.
type InstantiateConfig struct {
	Name   string
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Restored reports whether the context came from a snapshot.
func (c *Context) Restored() bool {
	return c.restored
}

// Instance returns the engine instance the context is bound to.
func (c *Context) Instance() *Instance {
	return c.inst
}

// Instantiate creates a live module from the context and runs its start
// function. The returned module belongs to the caller and must be closed
// when the run ends. Start-function failures, including explicit guest
// exits, are returned as-is for the caller to map to an exit code.
func (c *Context) Instantiate(ctx context.Context, cfg InstantiateConfig) (api.Module, error) {
	if c.inst.Disposed() {
		return nil, errors.AlreadyClosed(errors.PhaseLoad, "engine instance")
	}

	mcfg := wazero.NewModuleConfig().WithName(cfg.Name)
	if len(cfg.Args) > 0 {
		mcfg = mcfg.WithArgs(cfg.Args...)
	}
	if cfg.Stdin != nil {
		mcfg = mcfg.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		mcfg = mcfg.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		mcfg = mcfg.WithStderr(cfg.Stderr)
	}

	return c.inst.rt.InstantiateModule(ctx, c.compiled, mcfg)
}

// Close releases the compiled program. Restored contexts are released by
// instance disposal instead.
func (c *Context) Close(ctx context.Context) error {
	if c.restored {
		return nil
	}
	return c.compiled.Close(ctx)
}
