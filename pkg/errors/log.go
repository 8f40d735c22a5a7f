package errors

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	errorTag      = color.New(color.FgRed, color.Bold).SprintFunc()
	panicTag      = color.New(color.FgMagenta, color.Bold).SprintFunc()
	diagnosticTag = color.New(color.FgYellow).SprintFunc()
)

// LogHandler is an ErrorHandler that logs errors to stderr.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Out overrides the destination; nil means os.Stderr.
	Out io.Writer
}

func (h *LogHandler) out() io.Writer {
	if h.Out != nil {
		return h.Out
	}
	return os.Stderr
}

// HandleError logs a FiberError.
func (h *LogHandler) HandleError(err *FiberError) {
	if err == nil {
		return
	}
	w := h.out()
	if h.Verbose {
		fmt.Fprintf(w, "%s %s [%s]", errorTag("[fiber error]"), err.Op, err.Kind)
		if err.Root != "" {
			fmt.Fprintf(w, " root=%s", err.Root)
		}
		fmt.Fprintf(w, ": %v\n", err.Err)
		if err.StackTrace != "" {
			fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
		}
	} else {
		fmt.Fprintf(w, "%s %s: %v\n", errorTag("[fiber error]"), err.Op, err.Err)
	}
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	w := h.out()
	if err.Op != "" {
		fmt.Fprintf(w, "%s %s: %v\n", panicTag("[fiber panic]"), err.Op, err.Value)
	} else {
		fmt.Fprintf(w, "%s %v\n", panicTag("[fiber panic]"), err.Value)
	}
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}

// HandleRenderError logs a RenderError.
func (h *LogHandler) HandleRenderError(err *RenderError) {
	if err == nil {
		return
	}
	w := h.out()
	state := "uncaught"
	if err.Caught {
		state = "caught"
	}
	fmt.Fprintf(w, "%s (%s) %s\n", errorTag("[fiber render error]"), state, err.Error())
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}

// HandleDiagnostic logs a Diagnostic. Diagnostics are only printed in
// verbose mode.
func (h *LogHandler) HandleDiagnostic(d *Diagnostic) {
	if d == nil || !h.Verbose {
		return
	}
	fmt.Fprintf(h.out(), "%s %s\n", diagnosticTag("[fiber warning]"), d.Error())
}
