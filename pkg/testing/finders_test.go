package testing

import (
	"testing"

	"github.com/go-drift/fiber/pkg/core"
)

func TestFinders(t *testing.T) {
	h := NewHarness(t, Options{})
	h.RenderSync(core.H("div", nil,
		core.H("ul", core.Props{"id": "a"}, core.H("li", nil, "one"), core.H("li", nil, "two")),
		core.H("p", nil, "three"),
	))

	tests := []struct {
		name   string
		finder Finder
		want   int
	}{
		{"type", ByType("li"), 2},
		{"text", ByText("two"), 1},
		{"text containing", ByTextContaining("t"), 2},
		{"prop", ByProp("id", "a"), 1},
		{"descendant", Descendant(ByType("ul"), ByType("li")), 2},
		{"missing", ByType("table"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Find(tt.finder).Count(); got != tt.want {
				t.Errorf("%s: expected %d matches, got %d", tt.finder.Description(), tt.want, got)
			}
		})
	}
}

func TestFinderResult_FirstPanicsWhenEmpty(t *testing.T) {
	h := NewHarness(t, Options{})
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	h.Find(ByType("nothing")).First()
}
