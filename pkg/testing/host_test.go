package testing

import (
	"strings"
	"testing"

	"github.com/go-drift/fiber/pkg/core"
)

func TestRecordingHost_BuildsTree(t *testing.T) {
	h := NewRecordingHost()
	root := h.NewContainer()

	ul := h.CreateInstance("ul", core.Props{"id": "list"})
	a := h.CreateTextInstance("A")
	h.AppendInitialChild(ul, a)
	h.AppendChild(root, ul)

	if got := Render(root); got != "<ul id=list>A</ul>" {
		t.Errorf("unexpected tree %q", got)
	}
	if h.Count(OpCreate) != 1 || h.Count(OpCreateText) != 1 {
		t.Errorf("unexpected log %v", h.Log())
	}
	if got := len(h.Structural()); got != 1 {
		t.Errorf("expected 1 structural mutation, got %d", got)
	}
}

func TestRecordingHost_InsertBeforeMoves(t *testing.T) {
	h := NewRecordingHost()
	root := h.NewContainer()
	a := h.CreateTextInstance("A")
	b := h.CreateTextInstance("B")
	c := h.CreateTextInstance("C")
	h.AppendChild(root, a)
	h.AppendChild(root, b)
	h.AppendChild(root, c)

	h.InsertBefore(root, c, a)

	if got := Render(root); got != "CAB" {
		t.Errorf("expected CAB, got %q", got)
	}
}

func TestRecordingHost_RemoveForeignChildPanics(t *testing.T) {
	h := NewRecordingHost()
	root := h.NewContainer()
	other := h.NewContainer()
	a := h.CreateTextInstance("A")
	h.AppendChild(other, a)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if !strings.Contains(r.(string), "is not a child of") {
			t.Errorf("unexpected panic %v", r)
		}
	}()
	h.RemoveChild(root, a)
}

func TestRecordingHost_HiddenText(t *testing.T) {
	h := NewRecordingHost()
	root := h.NewContainer()
	div := h.CreateInstance("div", nil)
	h.AppendChild(root, div)
	h.AppendChild(div, h.CreateTextInstance("x"))

	h.HideInstance(div)
	if got := Render(root); got != "<div hidden>x</div>" {
		t.Errorf("unexpected tree %q", got)
	}
	if got := root.TextContent(); got != "" {
		t.Errorf("hidden text should not be visible, got %q", got)
	}
	h.UnhideInstance(div)
	h.UnhideInstance(div)
	if got := root.TextContent(); got != "x" {
		t.Errorf("expected x, got %q", got)
	}
}

func TestDigest_IgnoresNodeIdentity(t *testing.T) {
	build := func(h *RecordingHost, order []string) *Node {
		root := h.NewContainer()
		for _, s := range order {
			h.AppendChild(root, h.CreateTextInstance(s))
		}
		return root
	}

	h := NewRecordingHost()
	h.CreateInstance("noise", nil)
	a := build(h, []string{"x", "y"})
	b := build(NewRecordingHost(), []string{"x", "y"})
	c := build(NewRecordingHost(), []string{"y", "x"})

	da, err := Digest(a)
	if err != nil {
		t.Fatal(err)
	}
	db, _ := Digest(b)
	dc, _ := Digest(c)
	if da != db {
		t.Error("equal trees should have equal digests")
	}
	if da == dc {
		t.Error("reordered trees should have different digests")
	}
}
