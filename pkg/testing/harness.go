package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/go-drift/fiber/pkg/core"
	fibererrors "github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// ErrSettleTimeout is returned when PumpAndSettle exceeds its timeout.
var ErrSettleTimeout = errors.New("PumpAndSettle timed out: scheduler did not settle")

// FrameDuration is how far PumpAndSettle advances the clock per frame.
const FrameDuration = 16 * time.Millisecond

// Options configures a Harness. The zero value is usable.
type Options struct {
	// FrameBudget defaults to scheduler.DefaultFrameBudget.
	FrameBudget time.Duration
	// LaneTimeouts overrides the starvation policy.
	LaneTimeouts *lanes.Timeouts
	// NestedUpdateLimit defaults to core.DefaultNestedUpdateLimit.
	NestedUpdateLimit int
	// Label names the root.
	Label string
}

// Harness drives one root on a recording host, a fake clock and a scheduler
// that only runs when the test flushes it.
type Harness struct {
	Clock      *FakeClock
	Sched      *scheduler.Scheduler
	Reconciler *core.Reconciler
	Host       *RecordingHost
	Container  *Node
	Root       *core.Root
	Errors     *ErrorRecorder

	commits  []core.CommitInfo
	caught   []error
	uncaught []error

	prevHandler fibererrors.ErrorHandler
}

// NewHarness creates a harness that cleans up via t.Cleanup.
func NewHarness(t testing.TB, opts Options) *Harness {
	h := NewHarnessWithoutT(opts)
	t.Cleanup(h.Cleanup)
	return h
}

// NewHarnessWithoutT creates a harness. Call Cleanup when done.
func NewHarnessWithoutT(opts Options) *Harness {
	clk := NewFakeClock()
	sched := scheduler.New(scheduler.Options{Clock: clk, FrameBudget: opts.FrameBudget})
	r := core.NewReconciler(core.Options{
		Scheduler:         sched,
		LaneTimeouts:      opts.LaneTimeouts,
		NestedUpdateLimit: opts.NestedUpdateLimit,
	})
	host := NewRecordingHost()
	h := &Harness{
		Clock:       clk,
		Sched:       sched,
		Reconciler:  r,
		Host:        host,
		Container:   host.NewContainer(),
		Errors:      &ErrorRecorder{},
		prevHandler: fibererrors.DefaultHandler,
	}
	fibererrors.SetHandler(h.Errors)
	h.Root = r.CreateRoot(host, h.Container, core.RootOptions{
		Label:           opts.Label,
		OnCommit:        func(info core.CommitInfo) { h.commits = append(h.commits, info) },
		OnCaughtError:   func(err error, _ core.ErrorInfo) { h.caught = append(h.caught, err) },
		OnUncaughtError: func(err error, _ core.ErrorInfo) { h.uncaught = append(h.uncaught, err) },
	})
	return h
}

// Cleanup unmounts the root and restores the global error handler.
func (h *Harness) Cleanup() {
	if h.Root != nil {
		h.Root.Unmount()
	}
	fibererrors.SetHandler(h.prevHandler)
}

// Render queues node at the current update lane without flushing.
func (h *Harness) Render(node core.Node) error {
	return h.Root.Render(node)
}

// RenderSync renders node at the sync lane and commits it before returning.
func (h *Harness) RenderSync(node core.Node) error {
	var err error
	h.Reconciler.FlushSync(func() { err = h.Root.Render(node) })
	return err
}

// Act runs fn as one batch and then flushes the scheduler.
func (h *Harness) Act(fn func()) {
	h.Reconciler.Batch(fn)
	h.Flush()
}

// Flush runs posted functions and tasks until none are left.
func (h *Harness) Flush() {
	h.Sched.FlushAll()
}

// FlushUnits runs n units of work and stops at the next yield point.
func (h *Harness) FlushUnits(n int) {
	h.Sched.FlushUnits(n)
}

// Pump runs one scheduler slice.
func (h *Harness) Pump() bool {
	return h.Sched.RunSlice()
}

// PumpAndSettle runs slices until the scheduler is idle or timeout of fake
// time has passed, advancing the clock by FrameDuration between slices.
func (h *Harness) PumpAndSettle(timeout time.Duration) error {
	var elapsed time.Duration
	for elapsed < timeout {
		if !h.Pump() {
			return nil
		}
		h.Clock.Advance(FrameDuration)
		elapsed += FrameDuration
	}
	return ErrSettleTimeout
}

// Tree returns the host tree as markup.
func (h *Harness) Tree() string {
	return Render(h.Container)
}

// Text returns the visible text of the host tree.
func (h *Harness) Text() string {
	return h.Container.TextContent()
}

// Commits returns the summaries of all commits so far.
func (h *Harness) Commits() []core.CommitInfo {
	return h.commits
}

// LastCommit returns the most recent commit summary.
func (h *Harness) LastCommit() (core.CommitInfo, bool) {
	if len(h.commits) == 0 {
		return core.CommitInfo{}, false
	}
	return h.commits[len(h.commits)-1], true
}

// CaughtErrors returns errors taken over by error boundaries.
func (h *Harness) CaughtErrors() []error { return h.caught }

// UncaughtErrors returns render errors that reached the root.
func (h *Harness) UncaughtErrors() []error { return h.uncaught }

// ResetLog clears the host mutation log and the commit summaries.
func (h *Harness) ResetLog() {
	h.Host.ResetLog()
	h.commits = nil
}
