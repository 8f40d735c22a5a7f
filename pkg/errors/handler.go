package errors

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// DefaultHandler receives every report. It defaults to a non-verbose
	// LogHandler writing to stderr.
	DefaultHandler ErrorHandler = &LogHandler{}

	handlerMu sync.RWMutex
)

// SetHandler replaces the global error handler. Pass nil to restore the
// default LogHandler. It is safe to call while other goroutines report.
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	handlerMu.Lock()
	DefaultHandler = h
	handlerMu.Unlock()
}

func dispatch(fn func(ErrorHandler)) {
	handlerMu.RLock()
	h := DefaultHandler
	handlerMu.RUnlock()
	if h != nil {
		fn(h)
	}
}

func stamp(ts *time.Time) {
	if ts.IsZero() {
		*ts = time.Now()
	}
}

// Report sends an engine error to the global handler. A zero Timestamp is
// set to the current time.
func Report(err *FiberError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	dispatch(func(h ErrorHandler) { h.HandleError(err) })
}

// ReportPanic sends a recovered panic to the global handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	dispatch(func(h ErrorHandler) { h.HandlePanic(err) })
}

// ReportRenderError sends a component failure to the global handler, whether
// or not a boundary caught it.
func ReportRenderError(err *RenderError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	dispatch(func(h ErrorHandler) { h.HandleRenderError(err) })
}

// ReportDiagnostic sends a diagnostic to the global handler.
func ReportDiagnostic(d *Diagnostic) {
	if d == nil {
		return
	}
	stamp(&d.Timestamp)
	dispatch(func(h ErrorHandler) { h.HandleDiagnostic(d) })
}

// NewPanicError wraps a value recovered in op. Call it from the deferred
// function that recovered so the stack still shows the panic site.
func NewPanicError(op string, recovered any) *PanicError {
	return &PanicError{
		Op:         op,
		Value:      recovered,
		StackTrace: captureStack(3),
		Timestamp:  time.Now(),
	}
}

// Recover reports a panic from a deferred call and stops it:
//
//	defer errors.Recover("scheduler.runTask")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(NewPanicError(op, r))
	}
}

// RecoverWithCallback is like Recover but also hands the report to
// callback, which may turn it into a return value.
func RecoverWithCallback(op string, callback func(*PanicError)) {
	if r := recover(); r != nil {
		p := NewPanicError(op, r)
		ReportPanic(p)
		if callback != nil {
			callback(p)
		}
	}
}

// CaptureStack returns the caller's stack, one "function\n\tfile:line"
// entry per frame. Frames inside the Go runtime are left out so a stack
// taken while recovering starts at the panic site.
func CaptureStack() string {
	return captureStack(3)
}

func captureStack(skip int) string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			sb.WriteString(frame.Function)
			sb.WriteString("\n\t")
			sb.WriteString(frame.File)
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(frame.Line))
			sb.WriteByte('\n')
		}
		if !more {
			break
		}
	}
	return sb.String()
}
