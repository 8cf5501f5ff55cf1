// Package errors provides structured error reporting for the reactive core.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindCallback indicates a failure inside a user-registered callback.
	KindCallback
	// KindExecutor indicates a failure in the background callback executor.
	KindExecutor
	// KindWorker indicates a failure on a dedicated blocking-callback worker.
	KindWorker
	// KindTeardown indicates a failure while tearing down a cell or channel.
	KindTeardown
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindCallback:
		return "callback"
	case KindExecutor:
		return "executor"
	case KindWorker:
		return "worker"
	case KindTeardown:
		return "teardown"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ReactiveError represents a structured error in the reactive core.
type ReactiveError struct {
	// Op is the operation that failed (e.g., "executor.runTask").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Source names the cell, channel, or subscriber involved, if known.
	Source string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *ReactiveError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s [%s] source=%s: %v", e.Op, e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *ReactiveError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "executor.pollFuture").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors reported by the reactive core.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *ReactiveError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
