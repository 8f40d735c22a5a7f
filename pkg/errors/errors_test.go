package errors

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFiberErrorString(t *testing.T) {
	err := &FiberError{
		Op:   "core.commitRoot",
		Kind: KindCommit,
		Err:  New("host refused insert"),
	}
	want := "core.commitRoot [commit]: host refused insert"
	if got := err.Error(); got != want {
		t.Errorf("FiberError.Error() = %q, want %q", got, want)
	}
}

func TestFiberErrorWithRoot(t *testing.T) {
	err := &FiberError{
		Op:   "core.performSyncWorkOnRoot",
		Kind: KindScheduler,
		Root: "main",
		Err:  ErrNestedUpdateLimit,
	}
	if got := err.Error(); !strings.Contains(got, "root=main") {
		t.Errorf("error string %q should contain root label", got)
	}
	if !Is(err, ErrNestedUpdateLimit) {
		t.Error("expected FiberError to unwrap to ErrNestedUpdateLimit")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindRender, "render"},
		{KindCommit, "commit"},
		{KindScheduler, "scheduler"},
		{KindConfig, "config"},
		{KindSuspense, "suspense"},
		{KindPanic, "panic"},
		{KindDiagnostic, "diagnostic"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "boom", Timestamp: time.Now()}
	if got, want := err.Error(), "panic: boom"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
	err.Op = "scheduler.RunSlice"
	if got, want := err.Error(), "panic in scheduler.RunSlice: boom"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestRenderErrorString(t *testing.T) {
	err := &RenderError{Component: "main.Profile", Phase: PhaseBegin, Recovered: "nil map"}
	if got, want := err.Error(), "panic in main.Profile (begin): nil map"; got != want {
		t.Errorf("RenderError.Error() = %q, want %q", got, want)
	}

	cause := New("fetch failed")
	err2 := &RenderError{Component: "main.Profile", Phase: PhaseBegin, Err: cause}
	if got, want := err2.Error(), "error in main.Profile (begin): fetch failed"; got != want {
		t.Errorf("RenderError.Error() = %q, want %q", got, want)
	}
	if !Is(err2, cause) {
		t.Error("expected RenderError to unwrap to its cause")
	}

	err3 := &RenderError{Component: "div", Phase: PhaseComplete}
	if got, want := err3.Error(), "unknown error in div (complete)"; got != want {
		t.Errorf("RenderError.Error() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	var captured *FiberError
	handler := &testHandler{onError: func(err *FiberError) { captured = err }}
	SetHandler(handler)
	defer SetHandler(nil)

	Report(&FiberError{Op: "test.op", Kind: KindConfig, Err: New("bad")})

	if captured == nil {
		t.Fatal("expected error to be captured")
	}
	if captured.Op != "test.op" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.op")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestReportRenderErrorAndDiagnostic(t *testing.T) {
	var rendered *RenderError
	var diag *Diagnostic
	handler := &testHandler{
		onRender:     func(err *RenderError) { rendered = err },
		onDiagnostic: func(d *Diagnostic) { diag = d },
	}
	SetHandler(handler)
	defer SetHandler(nil)

	ReportRenderError(&RenderError{Component: "x", Phase: PhaseBegin, Recovered: "p"})
	ReportDiagnostic(&Diagnostic{Code: "duplicate-key", Message: `key "a" used twice`})

	if rendered == nil || rendered.Timestamp.IsZero() {
		t.Fatal("expected render error with timestamp")
	}
	if diag == nil || diag.Code != "duplicate-key" {
		t.Fatalf("expected duplicate-key diagnostic, got %+v", diag)
	}
}

func TestRecover(t *testing.T) {
	var captured *PanicError
	SetHandler(&testHandler{onPanic: func(err *PanicError) { captured = err }})
	defer SetHandler(nil)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if captured == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if captured.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.recover")
	}
	if captured.StackTrace == "" {
		t.Error("expected stack trace")
	}
}

func TestRecoverWithCallback(t *testing.T) {
	SetHandler(&testHandler{})
	defer SetHandler(nil)

	var got *PanicError
	func() {
		defer RecoverWithCallback("test.callback", func(p *PanicError) { got = p })
		panic(42)
	}()
	if got == nil || got.Value != 42 {
		t.Fatalf("callback report = %+v, want value 42", got)
	}
	if got.Error() != "panic in test.callback: 42" {
		t.Errorf("Error() = %q", got.Error())
	}
	if strings.Contains(got.StackTrace, "runtime.gopanic") {
		t.Errorf("stack should skip runtime frames:\n%s", got.StackTrace)
	}
	if !strings.Contains(got.StackTrace, "TestRecoverWithCallback") {
		t.Errorf("stack should start near the panic site:\n%s", got.StackTrace)
	}
}

func TestSetHandlerNil(t *testing.T) {
	SetHandler(nil)
	if _, ok := DefaultHandler.(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", DefaultHandler)
	}
}

func TestLogHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	h := &LogHandler{Out: &buf}

	h.HandleError(&FiberError{Op: "core.commitRoot", Kind: KindCommit, Err: New("boom")})
	h.HandleRenderError(&RenderError{Component: "App", Phase: PhaseBegin, Err: New("bad"), Caught: true})
	h.HandleDiagnostic(&Diagnostic{Code: "duplicate-key", Message: "quiet unless verbose"})

	out := buf.String()
	if !strings.Contains(out, "core.commitRoot: boom") {
		t.Errorf("missing fiber error line in %q", out)
	}
	if !strings.Contains(out, "(caught) error in App (begin): bad") {
		t.Errorf("missing render error line in %q", out)
	}
	if strings.Contains(out, "duplicate-key") {
		t.Errorf("diagnostic should be suppressed without Verbose: %q", out)
	}

	buf.Reset()
	h.Verbose = true
	h.HandleDiagnostic(&Diagnostic{Code: "duplicate-key", Message: "shown"})
	if !strings.Contains(buf.String(), "duplicate-key: shown") {
		t.Errorf("verbose diagnostic missing: %q", buf.String())
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Error("expected non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}

type testHandler struct {
	onError      func(*FiberError)
	onPanic      func(*PanicError)
	onRender     func(*RenderError)
	onDiagnostic func(*Diagnostic)
}

func (h *testHandler) HandleError(err *FiberError) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}

func (h *testHandler) HandleRenderError(err *RenderError) {
	if h.onRender != nil {
		h.onRender(err)
	}
}

func (h *testHandler) HandleDiagnostic(d *Diagnostic) {
	if h.onDiagnostic != nil {
		h.onDiagnostic(d)
	}
}
