package testing

import (
	"testing"
	"time"

	"github.com/go-drift/fiber/pkg/core"
	"github.com/go-drift/fiber/pkg/scheduler"
)

func TestFakeClock(t *testing.T) {
	clk := NewFakeClock()
	if !clk.Now().Equal(Epoch) {
		t.Fatalf("new clock reads %v, want %v", clk.Now(), Epoch)
	}

	clk.Advance(100 * time.Millisecond)
	clk.Advance(-time.Second)
	clk.Advance(50 * time.Millisecond)

	if got := clk.Elapsed(); got != 150*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 150ms", got)
	}
	if got := clk.Now().Sub(Epoch); got != 150*time.Millisecond {
		t.Errorf("Now() is %v past the epoch, want 150ms", got)
	}
}

func TestHarness_SchedulerUsesFakeClock(t *testing.T) {
	h := NewHarness(t, Options{})
	start := h.Sched.Now()

	h.Clock.Advance(500 * time.Millisecond)
	if h.Sched.Now().Sub(start) != 500*time.Millisecond {
		t.Error("clock advancement not reflected by the scheduler")
	}
}

func TestPumpAndSettle_Idle(t *testing.T) {
	h := NewHarness(t, Options{})
	h.Render(core.H("div", nil, "x"))

	if err := h.PumpAndSettle(time.Second); err != nil {
		t.Fatalf("expected settle, got: %v", err)
	}
	if got := h.Tree(); got != "<div>x</div>" {
		t.Errorf("unexpected tree %q", got)
	}
}

func TestPumpAndSettle_Timeout(t *testing.T) {
	h := NewHarness(t, Options{})
	// A task that never finishes keeps the scheduler busy; each run spends
	// a whole frame of fake time so slices still end.
	runs := 0
	var spin scheduler.Callback
	spin = func(bool) scheduler.Callback {
		runs++
		h.Clock.Advance(FrameDuration)
		return spin
	}
	h.Sched.ScheduleCallback(scheduler.LowPriority, spin)

	if err := h.PumpAndSettle(100 * time.Millisecond); err != ErrSettleTimeout {
		t.Fatalf("expected ErrSettleTimeout, got %v", err)
	}
	if runs == 0 {
		t.Error("expected the task to run")
	}
}
