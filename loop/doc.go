// Package loop implements the cooperative event loop that drives one
// program run.
//
// Tasks run in FIFO order on the goroutine that calls Spin. Program code
// only ever observes a single thread: suspension points are the
// boundaries between tasks. Spin ends when the queue drains, when Stop
// supplies an explicit exit code, or when a task panics, in which case
// the loop terminates without a value and the caller chooses the code.
package loop
