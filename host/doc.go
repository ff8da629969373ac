// Package host provides the high-level lifecycle API: MainInstance.
//
// A MainInstance hosts one logical program run on an engine instance it
// either owns or borrows. Owning managers create the instance (optionally
// restoring it from a snapshot), hold its parameters and allocator, and
// dispose it exactly once on Close. Borrowed managers attach per-instance
// data to an externally supplied instance and never dispose it; Dispose
// drains the instance's background tasks instead.
//
// Run drives a full execution: it locks the instance, bootstraps the
// runtime environment, loads the program, spins the event loop, and
// returns the exit code. Contract violations (nil instance on borrow,
// failed creation, empty fresh context, nil environment, Dispose on an
// owning manager) are fatal; program failures are data.
package host
