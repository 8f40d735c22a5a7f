// Package testing provides a test harness for components rendered by the
// fiber reconciler.
//
// # Quick Start
//
// Create a harness, render a tree, flush the scheduler and assert on the
// recorded host tree:
//
//	func TestList(t *testing.T) {
//	    h := fibertest.NewHarness(t, fibertest.Options{})
//	    h.Render(core.H("ul", nil, core.H("li", nil, "A")))
//	    h.Flush()
//
//	    if got := h.Tree(); got != "<ul><li>A</li></ul>" {
//	        t.Errorf("unexpected tree %s", got)
//	    }
//	}
//
// # Interrupting renders
//
// FlushUnits runs a fixed number of units of work and stops at the next
// yield point, so tests can issue urgent updates in the middle of a
// concurrent render:
//
//	h.Reconciler.StartTransition(func() { h.Render(slow) })
//	h.FlushUnits(3)
//	h.RenderSync(urgent)
//
// # Time
//
// The scheduler and every root run on a FakeClock:
//
//	h.Clock.Advance(6 * time.Second)
//	h.Flush()
//
// # Snapshots
//
// Compare the host tree against a golden file:
//
//	h.Snapshot().MatchesFile(t, "testdata/list.snapshot.json")
//
// Update snapshots with:
//
//	FIBER_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import fibertest "github.com/go-drift/fiber/pkg/testing"
package testing
