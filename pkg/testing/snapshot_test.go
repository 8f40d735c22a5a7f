package testing

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-drift/fiber/pkg/core"
)

type fakeT struct {
	errors []string
	fatals []string
}

func (f *fakeT) Helper()      {}
func (f *fakeT) Name() string { return "fake" }

func (f *fakeT) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func (f *fakeT) Fatalf(format string, args ...any) {
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}

func TestSnapshot_Diff(t *testing.T) {
	h := NewHarness(t, Options{})
	h.RenderSync(core.H("div", nil, "a"))
	a := h.Snapshot()
	b := h.Snapshot()
	if diff := a.Diff(b); diff != "" {
		t.Errorf("expected no diff for identical snapshots, got:\n%s", diff)
	}

	h.RenderSync(core.H("div", nil, "b"))
	c := h.Snapshot()
	diff := c.Diff(a)
	if !strings.HasPrefix(diff, "--- want\n+++ got\n") {
		t.Errorf("diff should be unified from want to got:\n%s", diff)
	}
	var removed, added bool
	for _, line := range strings.Split(diff, "\n") {
		removed = removed || strings.HasPrefix(line, "-") && strings.Contains(line, `"text": "a"`)
		added = added || strings.HasPrefix(line, "+") && strings.Contains(line, `"text": "b"`)
	}
	if !removed || !added {
		t.Errorf("diff should replace text a with b:\n%s", diff)
	}
}

func TestReadSnapshotRoundTrip(t *testing.T) {
	h := NewHarness(t, Options{})
	h.RenderSync(core.H("p", core.Props{"n": 3, "on": true, "cb": func() {}}, "x"))
	path := filepath.Join(t.TempDir(), "p.json")
	snap := h.Snapshot()
	if err := snap.UpdateFile(path); err != nil {
		t.Fatal(err)
	}
	read, err := ReadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := snap.Diff(read); diff != "" {
		t.Errorf("round trip changed the snapshot:\n%s", diff)
	}
	if _, ok := snap.Tree.Children[0].Props["cb"]; ok {
		t.Error("function props should be dropped")
	}
}

func TestSnapshot_UpdateAndMatch(t *testing.T) {
	h := NewHarness(t, Options{})
	h.RenderSync(core.H("ul", core.Props{"n": 2}, core.H("li", nil, "x")))

	path := filepath.Join(t.TempDir(), "list.snapshot.json")
	snap := h.Snapshot()
	if err := snap.UpdateFile(path); err != nil {
		t.Fatal(err)
	}

	ft := &fakeT{}
	h.Snapshot().MatchesFile(ft, path)
	if len(ft.errors) != 0 || len(ft.fatals) != 0 {
		t.Errorf("expected match, got errors=%v fatals=%v", ft.errors, ft.fatals)
	}

	h.RenderSync(core.H("ul", core.Props{"n": 2}, core.H("li", nil, "y")))
	ft = &fakeT{}
	h.Snapshot().MatchesFile(ft, path)
	if len(ft.errors) != 1 {
		t.Errorf("expected one mismatch error, got %v", ft.errors)
	}
}

func TestSnapshot_MissingFile(t *testing.T) {
	h := NewHarness(t, Options{})
	ft := &fakeT{}
	h.Snapshot().MatchesFile(ft, filepath.Join(t.TempDir(), "nope.json"))
	if len(ft.fatals) != 1 {
		t.Errorf("expected fatal for missing file, got %v", ft.fatals)
	}
}
