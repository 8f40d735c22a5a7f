package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-drift/fiber/pkg/config"
	"github.com/go-drift/fiber/pkg/core"
	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

// Options configures a run.
type Options struct {
	// Config supplies scheduler, lane and reconciler settings. Nil means
	// config.Default().
	Config *config.Config
	// OnStep is called after each step with its index and wall time.
	OnStep func(i int, step Step, elapsed time.Duration)
}

// RenderedError is a render error reported to the root during a run.
type RenderedError struct {
	Step      int    `msgpack:"step" json:"step"`
	Component string `msgpack:"component,omitempty" json:"component,omitempty"`
	Message   string `msgpack:"message" json:"message"`
	Caught    bool   `msgpack:"caught" json:"caught"`
}

// Result is the outcome of one run.
type Result struct {
	Name      string
	Mutations []fibertest.Mutation
	Commits   []core.CommitInfo
	Errors    []RenderedError
	Tree      string
	Digest    uint64
	Status    core.RootStatus
	// Elapsed is the wall time spent executing steps.
	Elapsed time.Duration
	// Simulated is how far advance steps moved the scheduler clock.
	Simulated time.Duration
}

// session is the reconciler, host and resources of one run.
type session struct {
	clock *fibertest.FakeClock
	sched *scheduler.Scheduler
	r     *core.Reconciler
	host  *fibertest.RecordingHost
	root  *core.Root
	res   *Resources

	step   int
	result *Result
	// closed stops recording once the result is built; teardown commits
	// are not part of the run.
	closed bool
}

func newSession(sc *Scenario, cfg *config.Config) *session {
	clk := fibertest.NewFakeClock()
	sched := scheduler.New(cfg.SchedulerOptions(clk))
	lt := cfg.LaneTimeouts()
	r := core.NewReconciler(core.Options{
		Scheduler:         sched,
		LaneTimeouts:      &lt,
		NestedUpdateLimit: cfg.Reconciler.NestedUpdateLimit,
	})
	s := &session{
		clock:  clk,
		sched:  sched,
		r:      r,
		host:   fibertest.NewRecordingHost(),
		res:    NewResources(),
		result: &Result{Name: sc.Name},
	}
	label := sc.Label
	if label == "" {
		label = strings.TrimSuffix(sc.Name, filepath.Ext(sc.Name))
	}
	onError := func(caught bool) func(error, core.ErrorInfo) {
		return func(err error, info core.ErrorInfo) {
			if s.closed {
				return
			}
			s.result.Errors = append(s.result.Errors, RenderedError{
				Step:      s.step,
				Component: info.Component,
				Message:   err.Error(),
				Caught:    caught,
			})
		}
	}
	s.root = r.CreateRoot(s.host, s.host.NewContainer(), core.RootOptions{
		Label: label,
		OnCommit: func(info core.CommitInfo) {
			if !s.closed {
				s.result.Commits = append(s.result.Commits, info)
			}
		},
		OnCaughtError:   onError(true),
		OnUncaughtError: onError(false),
	})
	return s
}

// Run replays sc on a fresh reconciler and recording host. Each run is
// isolated, so several runs may execute concurrently on different
// goroutines.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	s := newSession(sc, cfg)
	defer s.close()

	start := time.Now()
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.step = i + 1
		stepStart := time.Now()
		if err := s.exec(step); err != nil {
			return nil, fmt.Errorf("%s: step %d (%s): %w", sc.Name, i+1, step.Kind(), err)
		}
		if opts.OnStep != nil {
			opts.OnStep(i, step, time.Since(stepStart))
		}
	}
	res := s.result
	res.Elapsed = time.Since(start)
	res.Simulated = s.clock.Elapsed()
	res.Mutations = s.host.Log()
	res.Status = s.root.Status()
	container := s.root.Container().(*fibertest.Node)
	res.Tree = fibertest.Render(container)
	digest, err := fibertest.Digest(container)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sc.Name, err)
	}
	res.Digest = digest
	return res, nil
}

func (s *session) close() {
	s.closed = true
	s.root.Unmount()
}

// exec runs one step. A panic escaping the reconciler or host fails the
// step instead of the process.
func (s *session) exec(step Step) (err error) {
	defer errors.RecoverWithCallback("scenario.step", func(p *errors.PanicError) { err = p })
	switch {
	case step.Render != nil:
		return s.render(step.Render)
	case step.Flush != nil:
		if step.Flush.Units > 0 {
			s.sched.FlushUnits(step.Flush.Units)
		} else {
			s.sched.FlushAll()
		}
	case step.Advance != 0:
		s.clock.Advance(step.Advance)
	case step.Resolve != nil:
		value := step.Resolve.Value
		if value == "" {
			value = step.Resolve.Resource
		}
		return s.res.Resolve(step.Resolve.Resource, value)
	case step.Reject != nil:
		return s.res.Reject(step.Reject.Resource, step.Reject.Error)
	}
	return nil
}

func (s *session) render(step *RenderStep) error {
	u, err := parseUrgency(step.Urgency)
	if err != nil {
		return err
	}
	tree := step.Tree.Element(s.res)
	var renderErr error
	run := func() { renderErr = s.root.Render(tree) }
	switch u {
	case urgencyTransition:
		s.r.StartTransition(run)
	case urgency(lanes.UrgencySync):
		s.r.FlushSync(run)
	default:
		s.r.WithUrgency(lanes.Urgency(u), run)
	}
	return renderErr
}

// urgency extends lanes.Urgency with transitions, which claim their own
// lane instead of mapping to a fixed one.
type urgency int

const urgencyTransition urgency = -1

func parseUrgency(s string) (urgency, error) {
	if strings.EqualFold(strings.TrimSpace(s), "transition") {
		return urgencyTransition, nil
	}
	u, err := lanes.ParseUrgency(s)
	if err != nil {
		return 0, err
	}
	return urgency(u), nil
}
