// Package errors provides structured error handling for the fiber engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindRender indicates a failure while building a fiber (begin or complete).
	KindRender
	// KindCommit indicates a failure while applying host mutations.
	KindCommit
	// KindScheduler indicates a scheduler-internal failure or misconfiguration.
	KindScheduler
	// KindConfig indicates an invalid configuration value.
	KindConfig
	// KindSuspense indicates a rejected or misused suspense signal.
	KindSuspense
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindDiagnostic indicates a non-fatal diagnostic such as a duplicate key.
	KindDiagnostic
)

func (k ErrorKind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindCommit:
		return "commit"
	case KindScheduler:
		return "scheduler"
	case KindConfig:
		return "config"
	case KindSuspense:
		return "suspense"
	case KindPanic:
		return "panic"
	case KindDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

var (
	// ErrRootUnmounted is returned when work is scheduled on an unmounted root.
	ErrRootUnmounted = stderrors.New("fiber: root is unmounted")
	// ErrRootFailed is returned when a root is unusable after a fatal commit error.
	ErrRootFailed = stderrors.New("fiber: root failed during commit")
	// ErrNestedUpdateLimit is reported when commits keep scheduling synchronous
	// work on the same root.
	ErrNestedUpdateLimit = stderrors.New("fiber: maximum update depth exceeded")
	// ErrHookOrder is raised when a component calls hooks in a different order
	// than it did during the previous render.
	ErrHookOrder = stderrors.New("fiber: hooks called in a different order than the previous render")
)

// FiberError represents a structured error in the fiber engine.
type FiberError struct {
	// Op is the operation that failed (e.g., "core.commitRoot").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Root is the label of the root the error belongs to, if any.
	Root string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *FiberError) Error() string {
	if e.Root != "" {
		return fmt.Sprintf("%s [%s] root=%s: %v", e.Op, e.Kind, e.Root, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *FiberError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "scheduler.RunSlice").
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

// Phase names the builder step in which a render error happened.
type Phase string

const (
	PhaseBegin    Phase = "begin"
	PhaseComplete Phase = "complete"
	PhaseCommit   Phase = "commit"
	PhasePassive  Phase = "passive"
)

// RenderError represents a failure while building or committing a fiber.
type RenderError struct {
	// Component is the type name of the component that failed.
	Component string
	// Phase is the builder step that failed.
	Phase Phase
	// Recovered is the panic value (nil for returned errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// Caught is set once an error boundary has taken ownership of the error.
	Caught bool
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *RenderError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s (%s): %v", e.Component, e.Phase, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s (%s): %v", e.Component, e.Phase, e.Err)
	}
	return fmt.Sprintf("unknown error in %s (%s)", e.Component, e.Phase)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Diagnostic is a non-fatal report about suspicious input, such as two
// siblings sharing a key.
type Diagnostic struct {
	// Code is a stable identifier such as "duplicate-key".
	Code string
	// Message is a human readable description.
	Message string
	// Component is the parent component whose children triggered the report.
	Component string
	// Timestamp is when the diagnostic was produced.
	Timestamp time.Time
}

func (d *Diagnostic) Error() string {
	if d.Component != "" {
		return fmt.Sprintf("%s: %s (in %s)", d.Code, d.Message, d.Component)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// ErrorHandler receives errors reported by the fiber engine.
type ErrorHandler interface {
	// HandleError is called when an engine operation fails.
	HandleError(err *FiberError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleRenderError is called when a component fails to render.
	HandleRenderError(err *RenderError)
	// HandleDiagnostic is called for non-fatal diagnostics.
	HandleDiagnostic(d *Diagnostic)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return stderrors.New(text) }
