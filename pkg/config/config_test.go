package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/scheduler"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOptionalMissing(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "fiber.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Scheduler.FrameBudget != scheduler.DefaultFrameBudget {
		t.Errorf("FrameBudget = %s, want default", cfg.Scheduler.FrameBudget)
	}
	if cfg.Reconciler.NestedUpdateLimit != DefaultNestedUpdateLimit {
		t.Errorf("NestedUpdateLimit = %d", cfg.Reconciler.NestedUpdateLimit)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fiber.yaml", `
scheduler:
  frame_budget: 8ms
  timeouts:
    normal: 2s
lanes:
  normal_expiration: 1s
reconciler:
  nested_update_limit: 10
  verbose: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.FrameBudget != 8*time.Millisecond {
		t.Errorf("FrameBudget = %s", cfg.Scheduler.FrameBudget)
	}
	if cfg.Scheduler.Timeouts.Normal != 2*time.Second {
		t.Errorf("Timeouts.Normal = %s", cfg.Scheduler.Timeouts.Normal)
	}
	if cfg.Scheduler.Timeouts.UserBlocking != 250*time.Millisecond {
		t.Errorf("unset timeout should keep default, got %s", cfg.Scheduler.Timeouts.UserBlocking)
	}
	if cfg.LaneTimeouts().Normal != time.Second {
		t.Errorf("LaneTimeouts().Normal = %s", cfg.LaneTimeouts().Normal)
	}
	if cfg.Reconciler.NestedUpdateLimit != 10 || !cfg.Reconciler.Verbose {
		t.Errorf("Reconciler = %+v", cfg.Reconciler)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fiber.toml", `
[scheduler]
frame_budget = "16ms"

[lanes]
blocking_expiration = "100ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.FrameBudget != 16*time.Millisecond {
		t.Errorf("FrameBudget = %s", cfg.Scheduler.FrameBudget)
	}
	if cfg.Lanes.BlockingExpiration != 100*time.Millisecond {
		t.Errorf("BlockingExpiration = %s", cfg.Lanes.BlockingExpiration)
	}
}

func TestFindPrefersYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fiber.toml", "[scheduler]\nframe_budget = \"20ms\"\n")
	writeFile(t, dir, "fiber.yaml", "scheduler:\n  frame_budget: 10ms\n")
	cfg, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if cfg.Scheduler.FrameBudget != 10*time.Millisecond {
		t.Errorf("FrameBudget = %s, want yaml value", cfg.Scheduler.FrameBudget)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero frame budget", func(c *Config) { c.Scheduler.FrameBudget = 0 }},
		{"timeouts out of order", func(c *Config) { c.Scheduler.Timeouts.Normal = time.Millisecond }},
		{"negative expiration", func(c *Config) { c.Lanes.NormalExpiration = -time.Second }},
		{"nested limit", func(c *Config) { c.Reconciler.NestedUpdateLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var fe *errors.FiberError
			if !errors.As(err, &fe) || fe.Kind != errors.KindConfig {
				t.Errorf("error %v should be a config FiberError", err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fiber.yaml", "reconciler:\n  nested_update_limit: -1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid config")
	}
	bad := writeFile(t, t.TempDir(), "fiber.yaml", "scheduler: [\n")
	if _, err := LoadOptional(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSchedulerOptions(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Timeouts.Low = time.Minute
	opts := cfg.SchedulerOptions(nil)
	if opts.Timeouts == nil || opts.Timeouts.Low != time.Minute {
		t.Fatalf("Timeouts = %+v", opts.Timeouts)
	}
	if opts.FrameBudget != scheduler.DefaultFrameBudget {
		t.Errorf("FrameBudget = %s", opts.FrameBudget)
	}
}
