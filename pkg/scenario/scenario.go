// Package scenario loads scripted render sessions from YAML and replays them
// against a recording host.
//
// A scenario is a list of steps. Each step renders a tree at some urgency,
// flushes scheduled work, advances the fake clock or settles a named
// resource:
//
//	version: v1.0.0
//	steps:
//	  - render: {urgency: transition, tree: {type: ul, children: [{type: li, key: a, text: A}]}}
//	  - flush: {units: 2}
//	  - resolve: users
//	  - flush: {}
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedMajor is the scenario format major version this package reads.
const SupportedMajor = "v1"

// Scenario is a parsed scenario file.
type Scenario struct {
	// Name is the file name the scenario was loaded from.
	Name    string `yaml:"-"`
	Version string `yaml:"version"`
	// Label names the root; it defaults to Name.
	Label string `yaml:"label,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one action. Exactly one field is set.
type Step struct {
	Render  *RenderStep   `yaml:"render,omitempty"`
	Flush   *FlushStep    `yaml:"flush,omitempty"`
	Advance time.Duration `yaml:"advance,omitempty"`
	Resolve *SettleStep   `yaml:"resolve,omitempty"`
	Reject  *SettleStep   `yaml:"reject,omitempty"`
}

// RenderStep renders Tree into the root at Urgency.
type RenderStep struct {
	// Urgency is sync, user-blocking, normal, transition or idle. Empty
	// means normal.
	Urgency string `yaml:"urgency,omitempty"`
	Tree    *Node  `yaml:"tree"`
}

// FlushStep runs scheduled work. Units > 0 stops after that many units of
// work; otherwise the scheduler runs until it is idle.
type FlushStep struct {
	Units int `yaml:"units,omitempty"`
}

// SettleStep resolves or rejects a named resource. It may be written as a
// bare resource name.
type SettleStep struct {
	Resource string `yaml:"resource"`
	// Value is the resolved value; it defaults to the resource name.
	Value string `yaml:"value,omitempty"`
	// Error is the rejection message.
	Error string `yaml:"error,omitempty"`
}

// UnmarshalYAML accepts either a scalar resource name or a mapping.
func (s *SettleStep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Resource = value.Value
		return nil
	}
	type plain SettleStep
	return value.Decode((*plain)(s))
}

// Kind names the action of the step.
func (s Step) Kind() string {
	switch {
	case s.Render != nil:
		return "render"
	case s.Flush != nil:
		return "flush"
	case s.Advance != 0:
		return "advance"
	case s.Resolve != nil:
		return "resolve"
	case s.Reject != nil:
		return "reject"
	default:
		return ""
	}
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Render != nil, s.Flush != nil, s.Advance != 0, s.Resolve != nil, s.Reject != nil} {
		if set {
			n++
		}
	}
	return n
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	sc.Name = filepath.Base(path)
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the version and the shape of every step and tree.
func (s *Scenario) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("missing version")
	}
	if !semver.IsValid(s.Version) {
		return fmt.Errorf("invalid version %q: expected semantic version like v1.0.0", s.Version)
	}
	if major := semver.Major(s.Version); major != SupportedMajor {
		return fmt.Errorf("unsupported scenario version %s (this build reads %s.x)", s.Version, SupportedMajor)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.actions() {
	case 0:
		return fmt.Errorf("empty step")
	case 1:
	default:
		return fmt.Errorf("step sets more than one action")
	}
	switch {
	case s.Render != nil:
		if _, err := parseUrgency(s.Render.Urgency); err != nil {
			return err
		}
		if s.Render.Tree == nil {
			return nil
		}
		return s.Render.Tree.validate("tree")
	case s.Flush != nil:
		if s.Flush.Units < 0 {
			return fmt.Errorf("flush units must not be negative, got %d", s.Flush.Units)
		}
	case s.Advance < 0:
		return fmt.Errorf("advance must not be negative, got %s", s.Advance)
	case s.Resolve != nil:
		if strings.TrimSpace(s.Resolve.Resource) == "" {
			return fmt.Errorf("resolve needs a resource name")
		}
	case s.Reject != nil:
		if strings.TrimSpace(s.Reject.Resource) == "" {
			return fmt.Errorf("reject needs a resource name")
		}
	}
	return nil
}
