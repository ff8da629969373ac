// Package snapshot consumes precomputed engine snapshots.
//
// A Snapshot bundles a precompiled program with the creation-time
// constraints recorded when it was produced. Snapshot production is out of
// scope; this package only restores: the engine package uses the snapshot
// when creating an instance, and the environment bootstrapper uses the
// restored context instead of constructing a fresh one.
//
// The snapshot's backing storage stays owned by the caller. A Snapshot is
// immutable after construction.
package snapshot
