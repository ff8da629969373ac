package loop

import (
	"context"
	"sync"

	"go.uber.org/zap"

	enginehost "github.com/wippyai/engine-host"
)

// Loop is a FIFO task loop. It implements enginehost.EventLoop.
//
// Posting is safe from any goroutine; Spin must be called from exactly
// one goroutine at a time.
type Loop struct {
	mu       sync.Mutex
	tasks    []func()
	stopped  bool
	hasCode  bool
	code     enginehost.ExitCode
	spinning bool
	panicked any
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{}
}

// Post queues a task for execution on the spinning goroutine.
func (l *Loop) Post(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, task)
}

// Pending reports the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Stop ends the spin after the current task with an explicit exit code.
// The first explicit code wins; later calls do not downgrade it.
func (l *Loop) Stop(code enginehost.ExitCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.hasCode = true
	l.code = code
}

// Spin runs queued tasks until the queue drains or the loop is stopped.
// ok is false when the loop terminated without a value: a panicking
// task, a canceled context, or a re-entrant Spin.
func (l *Loop) Spin(ctx context.Context) (enginehost.ExitCode, bool) {
	l.mu.Lock()
	if l.spinning {
		l.mu.Unlock()
		Logger().Warn("Spin: loop is already spinning")
		return enginehost.ExitNoFailure, false
	}
	l.spinning = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.spinning = false
		l.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			Logger().Warn("Spin: context ended", zap.Error(err))
			return enginehost.ExitNoFailure, false
		}

		l.mu.Lock()
		if l.stopped {
			code, hasCode := l.code, l.hasCode
			l.mu.Unlock()
			if !hasCode {
				return enginehost.ExitNoFailure, false
			}
			return code, true
		}
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return enginehost.ExitNoFailure, true
		}
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		if !l.runTask(task) {
			return enginehost.ExitNoFailure, false
		}
	}
}

// runTask executes one task, containing panics. It reports false when
// the task panicked.
func (l *Loop) runTask(task func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.mu.Lock()
			l.panicked = r
			l.stopped = true
			l.mu.Unlock()
			Logger().Error("Spin: task panicked", zap.Any("panic", r))
			ok = false
		}
	}()
	task()
	return true
}

// TakePanic returns and clears the value of the last task panic, or nil.
func (l *Loop) TakePanic() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.panicked
	l.panicked = nil
	return p
}

// Reset clears stop state and pending tasks so the loop can host another
// run.
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = nil
	l.stopped = false
	l.hasCode = false
	l.code = enginehost.ExitNoFailure
	l.panicked = nil
}

var _ enginehost.EventLoop = (*Loop)(nil)
