package core_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/core"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

// dataView renders the value of the promise in its "src" prop.
func dataView(c *core.Ctx, p core.Props) core.Node {
	v, wait := core.Await(p["src"].(*core.Promise[string]))
	if wait != nil {
		return wait
	}
	return core.H("p", nil, v)
}

func loadData(src *core.Promise[string]) *core.Element {
	return core.F(dataView, core.Props{"src": src})
}

func rejected(err error) *core.Promise[string] {
	p := core.NewPromise[string]()
	p.Reject(err)
	return p
}

func suspenseRecord(t *testing.T, root *core.Root) *core.SuspenseRecord {
	t.Helper()
	var find func(f *core.Fiber) *core.SuspenseRecord
	find = func(f *core.Fiber) *core.SuspenseRecord {
		for ; f != nil; f = f.Sibling() {
			if rec, ok := f.StateNode().(*core.SuspenseRecord); ok {
				return rec
			}
			if rec := find(f.Child()); rec != nil {
				return rec
			}
		}
		return nil
	}
	rec := find(root.Current().Child())
	require.NotNil(t, rec, "no suspense boundary in\n%s", core.FormatTree(root.Current()))
	return rec
}

func TestSuspenseShowsFallbackUntilResolved(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	p := core.NewPromise[string]()
	require.NoError(t, h.RenderSync(core.Suspense("loading", loadData(p))))
	assert.Equal(t, "loading", h.Text())

	rec := suspenseRecord(t, h.Root)
	assert.Equal(t, core.SuspenseSuspended, rec.State())
	assert.Equal(t, 1, rec.Pending())

	require.True(t, p.Resolve("data"))
	assert.Equal(t, "loading", h.Text(), "retries run on the scheduler")
	h.Flush()
	assert.Equal(t, "<p>data</p>", h.Tree())
	assert.Equal(t, core.SuspenseUnsuspended, rec.State())
	assert.Equal(t, 1, rec.Retries())
	assert.Zero(t, rec.Pending())
}

func TestSuspenseIsAllOrNothing(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	a, b := core.NewPromise[string](), core.NewPromise[string]()
	require.NoError(t, h.RenderSync(core.Suspense("loading",
		core.H("h1", nil, "title"),
		loadData(a),
		loadData(b),
	)))
	assert.Equal(t, "loading", h.Text())
	assert.False(t, h.Find(fibertest.ByType("h1")).Exists())
	assert.Equal(t, 2, suspenseRecord(t, h.Root).Pending(), "siblings of the suspended child are rendered too")

	a.Resolve("a")
	h.Flush()
	assert.Equal(t, "loading", h.Text(), "still waiting on b")

	b.Resolve("b")
	h.Flush()
	assert.Equal(t, "<h1>title</h1><p>a</p><p>b</p>", h.Tree())
	assert.Equal(t, 1, suspenseRecord(t, h.Root).Retries())
}

func TestSuspenseHidesCommittedContent(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.Suspense("loading", loadData(core.Resolved("v1")))))
	assert.Equal(t, "<p>v1</p>", h.Tree())
	shown := h.Find(fibertest.ByType("p")).First()

	next := core.NewPromise[string]()
	h.ResetLog()
	require.NoError(t, h.RenderSync(core.Suspense("loading", loadData(next))))
	assert.Equal(t, "loading", h.Text())
	assert.Equal(t, "<p hidden>v1</p>loading", h.Tree())
	assert.True(t, shown.Hidden)
	assert.Equal(t, 1, h.Host.Count(fibertest.OpHide))
	assert.Zero(t, h.Host.Count(fibertest.OpRemove), "hidden content stays mounted")

	next.Resolve("v2")
	h.Flush()
	assert.Equal(t, "<p>v2</p>", h.Tree())
	assert.Same(t, shown, h.Find(fibertest.ByType("p")).First())
	assert.False(t, shown.Hidden)
}

func TestRejectedSignalReachesErrorBoundary(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	boom := errors.New("boom")
	p := core.NewPromise[string]()
	var onError []error
	require.NoError(t, h.RenderSync(core.ErrorBoundary(core.BoundaryProps{
		Fallback: func(err error) core.Node { return "failed" },
		OnError:  func(err error) { onError = append(onError, err) },
	}, core.Suspense("loading", loadData(p)))))
	assert.Equal(t, "loading", h.Text())

	p.Reject(boom)
	h.Flush()
	assert.Equal(t, "failed", h.Text())
	require.Len(t, h.CaughtErrors(), 1)
	assert.ErrorIs(t, h.CaughtErrors()[0], boom)
	require.Len(t, onError, 1)
	assert.ErrorIs(t, onError[0], boom)
}

func TestRejectionWinsOverPendingSiblings(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	boom := errors.New("boom")
	a, b := core.NewPromise[string](), core.NewPromise[string]()
	require.NoError(t, h.RenderSync(core.ErrorBoundary(core.BoundaryProps{
		Fallback: func(err error) core.Node { return "failed: " + err.Error() },
	}, core.Suspense("loading", loadData(a), loadData(b)))))
	assert.Equal(t, "loading", h.Text())

	b.Reject(boom)
	h.Flush()
	assert.True(t, strings.HasPrefix(h.Text(), "failed: "), h.Tree())
	assert.Contains(t, h.Text(), "boom")
	require.Len(t, h.CaughtErrors(), 1)
	assert.ErrorIs(t, h.CaughtErrors()[0], boom)

	h.ResetLog()
	a.Resolve("x")
	h.Flush()
	assert.Empty(t, h.Commits())
	assert.Contains(t, h.Text(), "boom")
}

func TestFailingSiblingOfSuspendedChildIsCaught(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	boom := errors.New("boom")
	require.NoError(t, h.RenderSync(core.ErrorBoundary(core.BoundaryProps{
		Fallback: func(err error) core.Node { return "failed" },
	}, core.Suspense("loading", loadData(core.NewPromise[string]()), loadData(rejected(boom))))))
	assert.Equal(t, "failed", h.Tree())
	require.Len(t, h.CaughtErrors(), 1)
	assert.ErrorIs(t, h.CaughtErrors()[0], boom)
}

func TestTransitionKeepsVisibleContentWhileSuspended(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.Suspense("fallback", loadData(core.Resolved("inner")))))
	assert.Equal(t, "<p>inner</p>", h.Tree())
	shown := h.Find(fibertest.ByType("p")).First()

	next := core.NewPromise[string]()
	h.ResetLog()
	h.Reconciler.StartTransition(func() {
		require.NoError(t, h.Render(core.Suspense("fallback", loadData(next))))
	})
	h.Flush()
	assert.Equal(t, "<p>inner</p>", h.Tree())
	assert.False(t, shown.Hidden)
	assert.Zero(t, h.Host.Count(fibertest.OpHide))
	assert.Empty(t, h.Commits())
	assert.Equal(t, core.RootSuspendedAtTop, h.Root.Status())

	next.Resolve("inner-updated")
	h.Flush()
	assert.Equal(t, "<p>inner-updated</p>", h.Tree())
	assert.Same(t, shown, h.Find(fibertest.ByType("p")).First())
	assert.Equal(t, core.RootIdle, h.Root.Status())
}

func TestUrgentUpdateShowsFallbackOverVisibleContent(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.Suspense("fallback", loadData(core.Resolved("inner")))))

	require.NoError(t, h.Render(core.Suspense("fallback", loadData(core.NewPromise[string]()))))
	h.Flush()
	assert.Equal(t, "<p hidden>inner</p>fallback", h.Tree())
}

func TestTransitionSuspendedWithoutBoundaryKeepsOldUI(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.H("p", nil, "old")))

	p := core.NewPromise[string]()
	h.Reconciler.StartTransition(func() {
		require.NoError(t, h.Render(loadData(p)))
	})
	h.Flush()
	assert.Equal(t, "<p>old</p>", h.Tree())
	assert.Equal(t, core.RootSuspendedAtTop, h.Root.Status())
	assert.Empty(t, h.UncaughtErrors())

	p.Resolve("new")
	h.Flush()
	assert.Equal(t, "<p>new</p>", h.Tree())
	assert.Equal(t, core.RootIdle, h.Root.Status())
}

func TestSyncSuspendWithoutBoundaryIsError(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(loadData(core.NewPromise[string]())))
	assert.Empty(t, h.Tree())
	require.Len(t, h.UncaughtErrors(), 1)
	assert.Contains(t, h.UncaughtErrors()[0].Error(), "no suspense boundary")
}

func TestUnmountedBoundaryIgnoresLateResolve(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	p := core.NewPromise[string]()
	require.NoError(t, h.RenderSync(core.Suspense("loading", loadData(p))))
	rec := suspenseRecord(t, h.Root)

	require.NoError(t, h.RenderSync(core.H("p", nil, "gone")))
	h.ResetLog()
	p.Resolve("late")
	h.Flush()
	assert.Empty(t, h.Commits())
	assert.Zero(t, rec.Retries())
	assert.Equal(t, "<p>gone</p>", h.Tree())
}
