// Package errors provides structured error types for the engine-host
// library.
//
// Errors are categorized by Phase (which lifecycle step failed) and Kind
// (error category). The Error type carries a detail message, the offending
// value where useful, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBootstrap, errors.KindEmptyContext).
//		Detail("program %q compiled to an empty context", path).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.CreationFailed(cause)
//	err := errors.NilEnvironment(errors.PhaseBootstrap)
//
// All errors implement the standard error interface and support
// errors.Is/As.
package errors
