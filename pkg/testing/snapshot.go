package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
)

// UpdateSnapshotsEnv names the environment variable that makes MatchesFile
// rewrite golden files instead of comparing against them.
const UpdateSnapshotsEnv = "FIBER_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot is a host tree in a stable, diffable form.
type Snapshot struct {
	Tree   *SnapshotNode `json:"tree"`
	Digest string        `json:"digest"`
}

// SnapshotNode is one host node. Props keep only scalar values; functions
// and pointers do not survive a round trip through JSON.
type SnapshotNode struct {
	Type     string          `json:"type,omitempty"`
	Text     string          `json:"text,omitempty"`
	Hidden   bool            `json:"hidden,omitempty"`
	Props    map[string]any  `json:"props,omitempty"`
	Children []*SnapshotNode `json:"children,omitempty"`
}

// Snapshot captures the harness container.
func (h *Harness) Snapshot() *Snapshot {
	return CaptureSnapshot(h.Container)
}

// CaptureSnapshot captures the tree below container together with its
// digest.
func CaptureSnapshot(container *Node) *Snapshot {
	snap := &Snapshot{Tree: snapshotNode(container)}
	if sum, err := Digest(container); err == nil {
		snap.Digest = fmt.Sprintf("%016x", sum)
	}
	return snap
}

func snapshotNode(n *Node) *SnapshotNode {
	out := &SnapshotNode{Type: n.Type, Text: n.Text, Hidden: n.Hidden}
	for k, v := range n.Props {
		switch v.(type) {
		case string, bool, int, int64, float64:
			if out.Props == nil {
				out.Props = make(map[string]any)
			}
			out.Props[k] = v
		}
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, snapshotNode(c))
	}
	return out
}

// MarshalIndent encodes the snapshot as indented JSON. Map keys are sorted
// by encoding/json, so equal trees encode to equal bytes.
func (s *Snapshot) MarshalIndent() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Diff returns a unified diff from want to s, or "" when they match.
func (s *Snapshot) Diff(want *Snapshot) string {
	got, _ := s.MarshalIndent()
	exp, _ := want.MarshalIndent()
	if bytes.Equal(got, exp) {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(exp)),
		B:        difflib.SplitLines(string(got)),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return fmt.Sprintf("snapshots differ (diff failed: %v)", err)
	}
	return diff
}

// UpdateFile writes the snapshot to path, creating parent directories.
func (s *Snapshot) UpdateFile(path string) error {
	data, err := s.MarshalIndent()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a golden file written by UpdateFile.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", filepath.Base(path), err)
	}
	return &snap, nil
}

// MatchesFile fails t when the snapshot differs from the golden file at
// path. With FIBER_UPDATE_SNAPSHOTS=1 the file is rewritten instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()
	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}
	want, err := ReadSnapshot(path)
	switch {
	case os.IsNotExist(err):
		t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
		return
	case err != nil:
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}
	if diff := s.Diff(want); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}
