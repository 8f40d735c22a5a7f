package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/core"
	fibererrors "github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

func TestUnmountRemovesContent(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	cleaned := false
	comp := func(c *core.Ctx, _ core.Props) core.Node {
		core.UseEffect(c, func() func() {
			return func() { cleaned = true }
		}, []any{})
		return core.H("p", nil, "x")
	}
	require.NoError(t, h.RenderSync(core.F(comp, nil)))
	h.Flush()

	h.Root.Unmount()
	assert.Empty(t, h.Container.Children)
	assert.True(t, cleaned, "Unmount runs passive cleanups")

	assert.ErrorIs(t, h.Root.Render(core.H("p", nil)), fibererrors.ErrRootUnmounted)
	h.Root.Unmount()
}

func TestCommitInfo(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{Label: "main"})
	require.NoError(t, h.RenderSync(core.H("ul", nil, core.H("li", nil, "a"))))

	info, ok := h.LastCommit()
	require.True(t, ok)
	assert.Equal(t, "main", info.Root)
	assert.Equal(t, "main", h.Root.Label())
	assert.Equal(t, lanes.SyncLane, info.Lanes)
	assert.Equal(t, 1, info.Placements)
	assert.Equal(t, core.RootIdle, h.Root.Status())
}

func TestRootsAreIndependent(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	other := h.Host.NewContainer()
	second := h.Reconciler.CreateRoot(h.Host, other, core.RootOptions{})
	t.Cleanup(second.Unmount)

	require.NoError(t, h.RenderSync(core.H("p", nil, "first")))
	h.Reconciler.FlushSync(func() {
		require.NoError(t, second.Render(core.H("p", nil, "second")))
	})
	assert.Equal(t, "<p>first</p>", h.Tree())
	assert.Equal(t, "<p>second</p>", fibertest.Render(other))
	assert.NotEqual(t, h.Root.Label(), second.Label())
	assert.Same(t, other, second.Container())

	second.Unmount()
	assert.Empty(t, other.Children)
	assert.Equal(t, "<p>first</p>", h.Tree())
}

func TestEntangledLanesRenderTogether(t *testing.T) {
	for _, entangle := range []bool{false, true} {
		name := "separate"
		if entangle {
			name = "entangled"
		}
		t.Run(name, func(t *testing.T) {
			h := fibertest.NewHarness(t, fibertest.Options{})
			app := &searchApp{}
			require.NoError(t, h.RenderSync(app.element()))
			h.ResetLog()

			h.Reconciler.WithUrgency(lanes.UrgencyUserBlocking, func() { app.setQuery.Set("a") })
			app.setFilter.Set("b")
			if entangle {
				h.Reconciler.Entangle(h.Root, lanes.InputContinuousLane|lanes.DefaultLane)
			}
			h.Flush()
			assert.Equal(t, `<div><input value=a></input><p>filter:b</p></div>`, h.Tree())

			if entangle {
				require.Len(t, h.Commits(), 1)
				assert.Equal(t, lanes.InputContinuousLane|lanes.DefaultLane, h.Commits()[0].Lanes)
			} else {
				require.Len(t, h.Commits(), 2)
				assert.Equal(t, lanes.InputContinuousLane, h.Commits()[0].Lanes)
				assert.Equal(t, lanes.DefaultLane, h.Commits()[1].Lanes)
			}
		})
	}
}

func TestFormatTree(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.Suspense("wait", core.H("p", nil, "hi"))))
	out := core.FormatTree(h.Root.Current())
	assert.Contains(t, out, "HostRoot")
	assert.Contains(t, out, "Offscreen(visible)")
	assert.Contains(t, out, `"hi"`)
}
