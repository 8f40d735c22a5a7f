package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/core"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

func TestContextDefaultValue(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	theme := core.NewContext("light")
	reader := func(c *core.Ctx, _ core.Props) core.Node {
		return core.H("p", nil, core.UseContext(c, theme))
	}
	require.NoError(t, h.RenderSync(core.F(reader, nil)))
	assert.Equal(t, "light", h.Text())
	assert.Equal(t, "light", theme.Default())
}

func TestContextReachesConsumersBelowBailouts(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	theme := core.NewContext("light").Named("Theme")

	consumerRenders, middleRenders := 0, 0
	consumer := func(c *core.Ctx, _ core.Props) core.Node {
		consumerRenders++
		return core.H("p", nil, core.UseContext(c, theme))
	}
	middle := func(c *core.Ctx, _ core.Props) core.Node {
		middleRenders++
		return core.H("div", nil, core.F(consumer, nil))
	}
	// A stable element lets the middle component bail out.
	static := core.F(middle, nil)

	var setTheme *core.Setter[string]
	app := func(c *core.Ctx, _ core.Props) core.Node {
		value, set := core.UseState(c, "dark")
		setTheme = set
		return theme.Provide(value, static)
	}
	require.NoError(t, h.RenderSync(core.F(app, nil)))
	assert.Equal(t, "<div><p>dark</p></div>", h.Tree())

	h.Reconciler.FlushSync(func() { setTheme.Set("blue") })
	assert.Equal(t, "<div><p>blue</p></div>", h.Tree())
	assert.Equal(t, 1, middleRenders)
	assert.Equal(t, 2, consumerRenders)

	// An unchanged value re-renders nothing below the provider.
	h.Reconciler.FlushSync(func() { setTheme.Set("blue") })
	assert.Equal(t, 1, middleRenders)
	assert.Equal(t, 2, consumerRenders)
}

func TestNestedProvidersShadow(t *testing.T) {
	h := fibertest.NewHarness(t, fibertest.Options{})
	lang := core.NewContext("en")
	reader := func(c *core.Ctx, _ core.Props) core.Node {
		return core.H("i", nil, core.UseContext(c, lang))
	}
	require.NoError(t, h.RenderSync(core.Frag(
		core.F(reader, nil),
		lang.Provide("fr",
			core.F(reader, nil),
			lang.Provide("de", core.F(reader, nil)),
			core.F(reader, nil),
		),
		core.F(reader, nil),
	)))
	assert.Equal(t, "<i>en</i><i>fr</i><i>de</i><i>fr</i><i>en</i>", h.Tree())
}
