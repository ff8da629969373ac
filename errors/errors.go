package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which lifecycle step the error occurred in.
type Phase string

const (
	PhaseCreate    Phase = "create"    // instance creation
	PhaseAttach    Phase = "attach"    // per-instance data attachment
	PhaseBootstrap Phase = "bootstrap" // environment bootstrapping
	PhaseLoad      Phase = "load"      // environment loading
	PhaseRun       Phase = "run"       // event-loop execution
	PhaseDispose   Phase = "dispose"   // teardown
	PhasePlatform  Phase = "platform"  // background task scheduling
	PhaseSnapshot  Phase = "snapshot"  // snapshot consumption
)

// Kind categorizes the error.
type Kind string

const (
	KindNilInstance    Kind = "nil_instance"
	KindCreationFailed Kind = "creation_failed"
	KindEmptyContext   Kind = "empty_context"
	KindNilEnvironment Kind = "nil_environment"
	KindOwnership      Kind = "ownership"
	KindAlreadyLoaded  Kind = "already_loaded"
	KindAlreadyClosed  Kind = "already_closed"
	KindBudgetExceeded Kind = "budget_exceeded"
	KindTeardown       Kind = "teardown"
	KindInvalidInput   Kind = "invalid_input"
	KindNotInitialized Kind = "not_initialized"
	KindNotFound       Kind = "not_found"
)

// Error is the structured error type used throughout the library.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two Errors match when
// their Phase and Kind agree.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Value sets the offending value.
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NilInstance reports a nil engine instance where a live one is required.
func NilInstance(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilInstance,
		Detail: "engine instance is nil",
	}
}

// CreationFailed reports a failed engine-instance creation.
func CreationFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseCreate,
		Kind:   KindCreationFailed,
		Detail: "create engine instance",
		Cause:  cause,
	}
}

// EmptyContext reports that fresh context construction produced nothing
// usable.
func EmptyContext(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseBootstrap,
		Kind:   KindEmptyContext,
		Detail: detail,
		Cause:  cause,
	}
}

// NilEnvironment reports that environment bootstrapping returned no
// environment.
func NilEnvironment(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilEnvironment,
		Detail: "runtime environment is nil",
	}
}

// Ownership reports an operation invoked on the wrong ownership mode.
func Ownership(detail string) *Error {
	return &Error{
		Phase:  PhaseDispose,
		Kind:   KindOwnership,
		Detail: detail,
	}
}

// AlreadyLoaded reports a second load attempt on the same environment.
func AlreadyLoaded() *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindAlreadyLoaded,
		Detail: "environment already loaded",
	}
}

// AlreadyClosed reports use of a disposed object.
func AlreadyClosed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyClosed,
		Detail: fmt.Sprintf("%s already closed", what),
	}
}

// BudgetExceeded reports an allocation past the configured scratch budget.
func BudgetExceeded(requested, budget uint64) *Error {
	return &Error{
		Phase:  PhaseRun,
		Kind:   KindBudgetExceeded,
		Detail: fmt.Sprintf("allocation of %d bytes exceeds budget of %d", requested, budget),
		Value:  requested,
	}
}

// NotInitialized reports a missing prerequisite object.
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}

// NotFound reports a missing named object.
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput reports unusable caller input.
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with phase and kind context.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
