package enginehost

import (
	"context"
	"strconv"
)

// ExitCode is the enumerated outcome of a program run. It defaults to
// ExitNoFailure and is only ever escalated, never downgraded back to zero.
type ExitCode int

const (
	// ExitNoFailure means the program ran to completion.
	ExitNoFailure ExitCode = 0

	// ExitGenericUserError covers failures in the hosted program itself:
	// a trap, an uncaught error, or a loop that terminated without an
	// explicit value.
	ExitGenericUserError ExitCode = 1

	// ExitInvalidArgument indicates unusable program arguments.
	ExitInvalidArgument ExitCode = 9

	// ExitAbort mirrors an abnormal guest abort.
	ExitAbort ExitCode = 134
)

func (c ExitCode) String() string {
	switch c {
	case ExitNoFailure:
		return "no-failure"
	case ExitGenericUserError:
		return "generic-user-error"
	case ExitInvalidArgument:
		return "invalid-argument"
	case ExitAbort:
		return "abort"
	default:
		return "exit-code(" + strconv.Itoa(int(c)) + ")"
	}
}

// Platform schedules background work on behalf of engine instances.
// Implementations run tasks on their own workers; DrainTasks is
// synchronous from the caller's point of view.
type Platform interface {
	// Register makes the platform track background tasks for an instance.
	Register(instanceID uint64)

	// Post queues a background task for a registered instance.
	Post(instanceID uint64, task func())

	// DrainTasks blocks until every task posted for the instance so far
	// has finished. Draining an unknown or already-drained instance is a
	// no-op.
	DrainTasks(instanceID uint64)

	// Unregister stops tracking the instance. Pending tasks are drained
	// first.
	Unregister(instanceID uint64)
}

// EventLoop drives queued callbacks for one program run.
type EventLoop interface {
	// Post queues a task. Tasks run in FIFO order on the spinning
	// goroutine.
	Post(task func())

	// Spin runs queued tasks until the queue drains or Stop is called.
	// It returns the explicit stop code when one was set. ok is false
	// when the loop terminated without a value (for example because a
	// task panicked); the caller decides what code that maps to.
	Spin(ctx context.Context) (code ExitCode, ok bool)

	// Stop ends the spin after the current task with an explicit code.
	Stop(code ExitCode)

	// Pending reports the number of queued tasks.
	Pending() int
}
