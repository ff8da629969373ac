// Package env bootstraps and loads the runtime environment for one
// program run.
//
// An Environment binds an engine instance's data, an execution context,
// and the program arguments. The bootstrapper chooses between two paths:
// with a snapshot the context is read from the instance's restored state,
// without one the caller compiles a fresh context first. Loading posts
// the program start onto the event loop; failures surface as the
// environment's recorded exit code, never as panics or aborts.
package env
