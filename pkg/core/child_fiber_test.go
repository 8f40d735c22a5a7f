package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/core"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

func keyedList(keys ...string) *core.Element {
	items := make([]core.Node, len(keys))
	for i, k := range keys {
		items[i] = core.H("li", nil, k).Keyed(k)
	}
	return core.H("ul", nil, items...)
}

func TestKeyedReorderMovesOneChild(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(keyedList("A", "B", "C")))
	require.Equal(t, "<ul><li>A</li><li>B</li><li>C</li></ul>", h.Tree())

	ul := h.Container.Children[0]
	liA, liC := ul.Children[0], ul.Children[2]

	h.ResetLog()
	require.NoError(t, h.RenderSync(keyedList("C", "A", "B")))
	assert.Equal(t, "<ul><li>C</li><li>A</li><li>B</li></ul>", h.Tree())

	structural := h.Host.Structural()
	require.Len(t, structural, 1, "mutations: %v", h.Host.Log())
	assert.Equal(t, fibertest.OpInsert, structural[0].Op)
	assert.Equal(t, liC.ID, structural[0].Node)
	assert.Equal(t, liA.ID, structural[0].Before)
	assert.Zero(t, h.Host.Count(fibertest.OpCreate))
	assert.Zero(t, h.Host.Count(fibertest.OpUpdate))

	info, ok := h.LastCommit()
	require.True(t, ok)
	assert.Equal(t, 1, info.Moves)
	assert.Zero(t, info.Placements)
	assert.Zero(t, info.Deletions)
}

func TestRenderSameElementTwiceIsNoop(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	el := keyedList("A", "B")
	require.NoError(t, h.RenderSync(el))

	h.ResetLog()
	require.NoError(t, h.RenderSync(el))
	assert.Empty(t, h.Host.Log())
	assert.Equal(t, "<ul><li>A</li><li>B</li></ul>", h.Tree())
}

func TestKeyedChildrenKeepInstances(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(keyedList("A", "B")))
	ul := h.Container.Children[0]
	a, b := ul.Children[0], ul.Children[1]

	require.NoError(t, h.RenderSync(keyedList("B", "A")))
	require.Same(t, ul, h.Container.Children[0])
	assert.Same(t, b, ul.Children[0])
	assert.Same(t, a, ul.Children[1])
}

func TestKeyedListEdits(t *testing.T) {
	tests := []struct {
		name       string
		before     []string
		after      []string
		structural []fibertest.Op
		placements int
		moves      int
		deletions  int
	}{
		{
			name:       "insert at front",
			before:     []string{"B", "C"},
			after:      []string{"A", "B", "C"},
			structural: []fibertest.Op{fibertest.OpInsert},
			placements: 1,
		},
		{
			name:       "append",
			before:     []string{"A"},
			after:      []string{"A", "B"},
			structural: []fibertest.Op{fibertest.OpAppend},
			placements: 1,
		},
		{
			name:       "remove middle",
			before:     []string{"A", "B", "C"},
			after:      []string{"A", "C"},
			structural: []fibertest.Op{fibertest.OpRemove},
			deletions:  1,
		},
		{
			name:       "swap ends",
			before:     []string{"A", "B", "C", "D"},
			after:      []string{"D", "B", "C", "A"},
			structural: []fibertest.Op{fibertest.OpInsert, fibertest.OpAppend},
			moves:      2,
		},
		{
			name:       "reverse",
			before:     []string{"A", "B", "C"},
			after:      []string{"C", "B", "A"},
			structural: []fibertest.Op{fibertest.OpInsert, fibertest.OpInsert},
			moves:      2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := fibertest.NewHarness(t, fibertest.Options{})
			require.NoError(t, h.RenderSync(keyedList(tt.before...)))
			h.ResetLog()
			require.NoError(t, h.RenderSync(keyedList(tt.after...)))

			var want string
			for _, k := range tt.after {
				want += "<li>" + k + "</li>"
			}
			assert.Equal(t, "<ul>"+want+"</ul>", h.Tree())

			var ops []fibertest.Op
			for _, m := range h.Host.Structural() {
				ops = append(ops, m.Op)
			}
			assert.Equal(t, tt.structural, ops)

			info, ok := h.LastCommit()
			require.True(t, ok)
			assert.Equal(t, tt.placements, info.Placements, "placements")
			assert.Equal(t, tt.moves, info.Moves, "moves")
			assert.Equal(t, tt.deletions, info.Deletions, "deletions")
		})
	}
}

func TestDuplicateKeysAreReportedAndRendered(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.H("ul", nil,
		core.H("li", nil, "one").Keyed("x"),
		core.H("li", nil, "two").Keyed("x"),
	)))
	assert.Equal(t, "<ul><li>one</li><li>two</li></ul>", h.Tree())
	assert.Contains(t, h.Errors.DiagnosticCodes(), "duplicate-key")

	require.NoError(t, h.RenderSync(core.H("ul", nil,
		core.H("li", nil, "one").Keyed("x"),
		core.H("li", nil, "two").Keyed("x"),
		core.H("li", nil, "three").Keyed("y"),
	)))
	assert.Equal(t, "<ul><li>one</li><li>two</li><li>three</li></ul>", h.Tree())
}

func TestInvalidChildIsIgnored(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.H("div", nil, struct{ n int }{1})))
	assert.Equal(t, "<div></div>", h.Tree())
	assert.Equal(t, []string{"invalid-child"}, h.Errors.DiagnosticCodes())
}

func TestChangingTypeRemounts(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.H("div", nil, "x")))
	h.ResetLog()

	require.NoError(t, h.RenderSync(core.H("span", nil, "x")))
	assert.Equal(t, "<span>x</span>", h.Tree())

	var ops []fibertest.Op
	for _, m := range h.Host.Structural() {
		ops = append(ops, m.Op)
	}
	assert.Equal(t, []fibertest.Op{fibertest.OpRemove, fibertest.OpAppend}, ops)
}

func TestTextAndNumbers(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.H("p", nil, "count: ", 3)))
	assert.Equal(t, "<p>count: 3</p>", h.Tree())

	h.ResetLog()
	require.NoError(t, h.RenderSync(core.H("p", nil, "count: ", 4)))
	assert.Equal(t, "<p>count: 4</p>", h.Tree())
	assert.Equal(t, 1, h.Host.Count(fibertest.OpUpdateText))
	assert.Empty(t, h.Host.Structural())
}

func TestFragments(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(core.Frag(core.H("a", nil), "t", core.H("b", nil))))
	assert.Equal(t, "<a></a>t<b></b>", h.Tree())

	require.NoError(t, h.RenderSync(core.H("div", nil,
		core.H("h1", nil),
		[]core.Node{core.H("p", nil, "1"), core.H("p", nil, "2")},
		core.Frag(core.H("em", nil)).Keyed("f"),
	)))
	assert.Equal(t, "<div><h1></h1><p>1</p><p>2</p><em></em></div>", h.Tree())
}

func TestRenderNilClearsRoot(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	require.NoError(t, h.RenderSync(keyedList("A", "B")))
	require.NoError(t, h.RenderSync(nil))
	assert.Empty(t, h.Container.Children)
	assert.Equal(t, 1, h.Host.Count(fibertest.OpRemove))
}
