package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	fibererrors "github.com/go-drift/fiber/pkg/errors"
)

const listScenario = `version: v1.0.0
steps:
  - render:
      urgency: sync
      tree: {type: ul, children: [{type: li, key: a, text: A}, {type: li, key: b, text: B}]}
  - render:
      urgency: transition
      tree: {type: ul, children: [{type: li, key: b, text: B}, {type: li, key: a, text: A}]}
  - flush: {}
`

const failingScenario = `version: v1.0.0
steps:
  - render:
      urgency: sync
      tree:
        boundary: {fallback: oops}
        children: [{fail: broken}]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { fibererrors.SetHandler(nil) })
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--color", "off"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRunPrintsTreeAndCommits(t *testing.T) {
	dir := t.TempDir()
	list := writeFile(t, dir, "list.yaml", listScenario)
	failing := writeFile(t, dir, "failing.yaml", failingScenario)

	out, err := execute(t, "run", list, failing)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	for _, want := range []string{
		"== list.yaml",
		"tree: <ul><li>B</li><li>A</li></ul>",
		"#1 Sync placements=1",
		"moves=1",
		"== failing.yaml",
		"step 1 caught:",
		"tree: oops",
		"ran 2 scenarios",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "== list.yaml") > strings.Index(out, "== failing.yaml") {
		t.Errorf("results out of argument order:\n%s", out)
	}
}

func TestRunQuietSkipsMutations(t *testing.T) {
	list := writeFile(t, t.TempDir(), "list.yaml", listScenario)
	out, err := execute(t, "--quiet", "run", list)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "mutations:") {
		t.Errorf("quiet output lists mutations:\n%s", out)
	}
	if !strings.Contains(out, "digest: ") {
		t.Errorf("quiet output misses digest:\n%s", out)
	}
}

func TestRunWritesTrace(t *testing.T) {
	dir := t.TempDir()
	list := writeFile(t, dir, "list.yaml", listScenario)
	trace := filepath.Join(dir, "out.msgpack")

	if _, err := execute(t, "run", "--trace", trace, list); err != nil {
		t.Fatal(err)
	}
	traces, err := ReadTrace(trace)
	if err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	if len(traces) != 1 {
		t.Fatalf("got %d traces, want 1", len(traces))
	}
	tr := traces[0]
	if tr.Scenario != "list.yaml" {
		t.Errorf("Scenario = %q", tr.Scenario)
	}
	if tr.Tree != "<ul><li>B</li><li>A</li></ul>" {
		t.Errorf("Tree = %q", tr.Tree)
	}
	if len(tr.Digest) != 16 {
		t.Errorf("Digest = %q, want 16 hex digits", tr.Digest)
	}
	if len(tr.Mutations) == 0 || len(tr.Commits) != 2 {
		t.Errorf("got %d mutations and %d commits", len(tr.Mutations), len(tr.Commits))
	}
	if tr.Commits[0].Lanes != "Sync" || tr.Commits[1].Moves != 1 {
		t.Errorf("unexpected commits: %+v", tr.Commits)
	}
}

func TestRunReportsBadFiles(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "version: v3.0.0\nsteps: [{flush: {}}]\n")

	_, err := execute(t, "run", bad)
	if err == nil || !strings.Contains(err.Error(), "bad.yaml: unsupported scenario version") {
		t.Errorf("err = %v", err)
	}

	_, err = execute(t, "run", filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}

	_, err = execute(t, "run")
	if err == nil {
		t.Error("expected error without files")
	}
}

func TestRunUsesConfig(t *testing.T) {
	dir := t.TempDir()
	list := writeFile(t, dir, "list.yaml", listScenario)
	cfg := writeFile(t, dir, "fiber.toml", "[reconciler]\nnested_update_limit = 0\n")

	_, err := execute(t, "--config", cfg, "run", list)
	if err == nil || !strings.Contains(err.Error(), "nested_update_limit") {
		t.Errorf("err = %v, want config validation error", err)
	}
}

func TestBenchPrintsTable(t *testing.T) {
	list := writeFile(t, t.TempDir(), "list.yaml", listScenario)
	out, err := execute(t, "bench", "-n", "5", list)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Scenario latency (5 runs)", "list.yaml", "P99", "run", "step", "commits"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("bench output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "bench", "-n", "0", list); err == nil {
		t.Error("expected error for zero iterations")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "fiber version "+Version) {
		t.Errorf("version output = %q", out)
	}

	out, err = execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var p versionPayload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if p.Scenarios != "v1.x" {
		t.Errorf("scenario format = %q", p.Scenarios)
	}
}

func TestInvalidColorFlag(t *testing.T) {
	_, err := execute(t, "--color", "sometimes", "version")
	if err == nil || !strings.Contains(err.Error(), "--color") {
		t.Errorf("err = %v", err)
	}
}
