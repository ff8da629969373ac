// Package engine provides wazero-backed engine instances.
//
// An Instance is a heavyweight, isolated execution context: a dedicated
// wazero runtime plus an exclusive-access lock and attached per-instance
// data. Contexts are compiled program units bound to one instance; the
// fresh path compiles them on demand and the snapshot path restores one
// at instance creation.
//
// The package also holds the instance parameters (creation-time
// constraints) and the scratch-buffer allocator referenced by them.
package engine
