package testing

import (
	"sync"

	fibererrors "github.com/go-drift/fiber/pkg/errors"
)

// ErrorRecorder is an ErrorHandler that keeps everything reported to it.
// It is safe for concurrent use.
type ErrorRecorder struct {
	mu           sync.Mutex
	errs         []*fibererrors.FiberError
	panics       []*fibererrors.PanicError
	renderErrors []*fibererrors.RenderError
	diagnostics  []*fibererrors.Diagnostic
}

var _ fibererrors.ErrorHandler = (*ErrorRecorder)(nil)

func (r *ErrorRecorder) HandleError(err *fibererrors.FiberError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *ErrorRecorder) HandlePanic(err *fibererrors.PanicError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, err)
}

func (r *ErrorRecorder) HandleRenderError(err *fibererrors.RenderError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderErrors = append(r.renderErrors, err)
}

func (r *ErrorRecorder) HandleDiagnostic(d *fibererrors.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, d)
}

// Errors returns the reported engine errors.
func (r *ErrorRecorder) Errors() []*fibererrors.FiberError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fibererrors.FiberError(nil), r.errs...)
}

// Panics returns the recovered panics.
func (r *ErrorRecorder) Panics() []*fibererrors.PanicError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fibererrors.PanicError(nil), r.panics...)
}

// RenderErrors returns the reported render errors, caught or not.
func (r *ErrorRecorder) RenderErrors() []*fibererrors.RenderError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fibererrors.RenderError(nil), r.renderErrors...)
}

// Diagnostics returns the reported diagnostics.
func (r *ErrorRecorder) Diagnostics() []*fibererrors.Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fibererrors.Diagnostic(nil), r.diagnostics...)
}

// DiagnosticCodes returns the codes of the reported diagnostics in order.
func (r *ErrorRecorder) DiagnosticCodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, len(r.diagnostics))
	for i, d := range r.diagnostics {
		codes[i] = d.Code
	}
	return codes
}
