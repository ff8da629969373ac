// Package enginehost manages the lifecycle of a single engine instance
// hosting one logical program run: constructing the instance (fresh or
// restored from a snapshot), bootstrapping its runtime environment, driving
// the event loop to completion, and tearing everything down in order.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	enginehost/          Root package with the ExitCode type and the
//	                     Platform and EventLoop collaborator contracts
//	├── host/            High-level API: MainInstance lifecycle manager
//	│                    and the execution driver
//	├── env/             Runtime environment bootstrapping and loading
//	├── engine/          wazero-backed engine instances, contexts,
//	│                    parameters and the scratch-buffer allocator
//	├── loop/            Cooperative single-threaded event loop
//	├── platform/        Background task scheduling per instance
//	├── snapshot/        Precompiled-program snapshot consumption
//	└── errors/          Structured error types
//
// # Quick Start
//
// Run a program on an instance the manager owns:
//
//	lp := loop.New()
//	pf := platform.New(0)
//	defer pf.Shutdown()
//
//	m := host.NewOwned(ctx, nil, lp, pf, []string{"prog.wasm"}, nil, host.Options{})
//	defer m.Close(ctx)
//
//	code := m.Run(ctx)
//	os.Exit(int(code))
//
// # Ownership
//
// A MainInstance either owns its engine instance (it created it, and
// Close disposes it exactly once) or borrows one supplied by an external
// owner (Dispose drains pending tasks but never disposes the instance).
// The relationship is fixed at construction.
//
// # Thread Safety
//
// Run serializes use of the engine instance through its exclusive lock.
// The event loop is cooperative and single-threaded from the program's
// perspective; only platform background tasks run off-thread.
package enginehost
