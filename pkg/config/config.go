// Package config loads the engine's policy knobs from fiber.yaml or
// fiber.toml.
//
// Every value is optional. Missing files and missing keys fall back to the
// defaults returned by Default.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// FileNames lists the config files Find looks for, in order.
var FileNames = []string{"fiber.yaml", "fiber.yml", "fiber.toml"}

// Config represents the optional fiber.yaml / fiber.toml configuration.
type Config struct {
	Scheduler  SchedulerConfig  `yaml:"scheduler" toml:"scheduler"`
	Lanes      LanesConfig      `yaml:"lanes" toml:"lanes"`
	Reconciler ReconcilerConfig `yaml:"reconciler" toml:"reconciler"`
}

// SchedulerConfig controls time slicing.
type SchedulerConfig struct {
	FrameBudget time.Duration    `yaml:"frame_budget,omitempty" toml:"frame_budget,omitempty"`
	Timeouts    PriorityTimeouts `yaml:"timeouts" toml:"timeouts"`
}

// PriorityTimeouts is how long a task of each priority may wait before it
// runs without yielding.
type PriorityTimeouts struct {
	Immediate    time.Duration `yaml:"immediate,omitempty" toml:"immediate,omitempty"`
	UserBlocking time.Duration `yaml:"user_blocking,omitempty" toml:"user_blocking,omitempty"`
	Normal       time.Duration `yaml:"normal,omitempty" toml:"normal,omitempty"`
	Low          time.Duration `yaml:"low,omitempty" toml:"low,omitempty"`
	Idle         time.Duration `yaml:"idle,omitempty" toml:"idle,omitempty"`
}

// LanesConfig controls starvation. A zero expiration disables the cutoff for
// that class of lanes.
type LanesConfig struct {
	BlockingExpiration time.Duration `yaml:"blocking_expiration,omitempty" toml:"blocking_expiration,omitempty"`
	NormalExpiration   time.Duration `yaml:"normal_expiration,omitempty" toml:"normal_expiration,omitempty"`
	RetryExpiration    time.Duration `yaml:"retry_expiration,omitempty" toml:"retry_expiration,omitempty"`
	IdleExpiration     time.Duration `yaml:"idle_expiration,omitempty" toml:"idle_expiration,omitempty"`
}

// ReconcilerConfig contains reconciler settings.
type ReconcilerConfig struct {
	// NestedUpdateLimit caps consecutive synchronous re-renders of one root.
	NestedUpdateLimit int `yaml:"nested_update_limit,omitempty" toml:"nested_update_limit,omitempty"`
	// Verbose enables stack traces and diagnostics in the default log handler.
	Verbose bool `yaml:"verbose,omitempty" toml:"verbose,omitempty"`
}

// DefaultNestedUpdateLimit is the nested update limit used when none is set.
const DefaultNestedUpdateLimit = 50

// Default returns the built-in configuration.
func Default() *Config {
	st := scheduler.DefaultTimeouts()
	lt := lanes.DefaultTimeouts()
	return &Config{
		Scheduler: SchedulerConfig{
			FrameBudget: scheduler.DefaultFrameBudget,
			Timeouts: PriorityTimeouts{
				Immediate:    st.Immediate,
				UserBlocking: st.UserBlocking,
				Normal:       st.Normal,
				Low:          st.Low,
				Idle:         st.Idle,
			},
		},
		Lanes: LanesConfig{
			BlockingExpiration: lt.Blocking,
			NormalExpiration:   lt.Normal,
			RetryExpiration:    lt.Retry,
			IdleExpiration:     lt.Idle,
		},
		Reconciler: ReconcilerConfig{
			NestedUpdateLimit: DefaultNestedUpdateLimit,
		},
	}
}

// Load reads a config file. The format is chosen by extension: .toml is
// decoded as TOML, everything else as YAML. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional reads path if it exists and returns defaults otherwise.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Find loads the first of FileNames present in dir, or defaults when none is.
func Find(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// Validate reports settings the scheduler cannot work with.
func (c *Config) Validate() error {
	var problems []error
	if c.Scheduler.FrameBudget <= 0 {
		problems = append(problems, fmt.Errorf("scheduler.frame_budget must be positive, got %s", c.Scheduler.FrameBudget))
	}
	t := c.Scheduler.Timeouts
	order := []struct {
		name string
		d    time.Duration
	}{
		{"immediate", t.Immediate},
		{"user_blocking", t.UserBlocking},
		{"normal", t.Normal},
		{"low", t.Low},
		{"idle", t.Idle},
	}
	for i := 1; i < len(order); i++ {
		if order[i].d < order[i-1].d {
			problems = append(problems, fmt.Errorf("scheduler.timeouts.%s (%s) is shorter than %s (%s)",
				order[i].name, order[i].d, order[i-1].name, order[i-1].d))
		}
	}
	l := c.Lanes
	for name, d := range map[string]time.Duration{
		"blocking_expiration": l.BlockingExpiration,
		"normal_expiration":   l.NormalExpiration,
		"retry_expiration":    l.RetryExpiration,
		"idle_expiration":     l.IdleExpiration,
	} {
		if d < 0 {
			problems = append(problems, fmt.Errorf("lanes.%s must not be negative, got %s", name, d))
		}
	}
	if c.Reconciler.NestedUpdateLimit < 1 {
		problems = append(problems, fmt.Errorf("reconciler.nested_update_limit must be at least 1, got %d", c.Reconciler.NestedUpdateLimit))
	}
	if len(problems) == 0 {
		return nil
	}
	return &errors.FiberError{
		Op:   "config.Validate",
		Kind: errors.KindConfig,
		Err:  stderrors.Join(problems...),
	}
}

// SchedulerOptions returns scheduler options using clock.
func (c *Config) SchedulerOptions(clock scheduler.Clock) scheduler.Options {
	t := c.Scheduler.Timeouts
	return scheduler.Options{
		Clock:       clock,
		FrameBudget: c.Scheduler.FrameBudget,
		Timeouts: &scheduler.Timeouts{
			Immediate:    t.Immediate,
			UserBlocking: t.UserBlocking,
			Normal:       t.Normal,
			Low:          t.Low,
			Idle:         t.Idle,
		},
	}
}

// LaneTimeouts returns the starvation policy for root lane trackers.
func (c *Config) LaneTimeouts() lanes.Timeouts {
	return lanes.Timeouts{
		Blocking: c.Lanes.BlockingExpiration,
		Normal:   c.Lanes.NormalExpiration,
		Retry:    c.Lanes.RetryExpiration,
		Idle:     c.Lanes.IdleExpiration,
	}
}
