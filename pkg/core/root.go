package core

import (
	"fmt"
	"time"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// RootStatus is the state of a root's render pipeline.
type RootStatus uint8

const (
	RootIdle RootStatus = iota
	RootRendering
	RootSuspendedAtTop
	RootCompleted
	RootCommitting
)

func (s RootStatus) String() string {
	switch s {
	case RootIdle:
		return "idle"
	case RootRendering:
		return "rendering"
	case RootSuspendedAtTop:
		return "suspended-at-top"
	case RootCompleted:
		return "completed"
	case RootCommitting:
		return "committing"
	default:
		return fmt.Sprintf("RootStatus(%d)", uint8(s))
	}
}

type exitStatus uint8

const (
	exitInProgress exitStatus = iota
	exitCompleted
	exitSuspendedAtTop
	exitErrored
)

// CommitInfo summarizes one commit.
type CommitInfo struct {
	Root       string
	Lanes      lanes.Lanes
	Placements int
	Moves      int
	Updates    int
	Deletions  int
	Duration   time.Duration
}

// ErrorInfo describes where a render error came from.
type ErrorInfo struct {
	// Component is the type name of the component that failed.
	Component string
}

// RootOptions configures a Root.
type RootOptions struct {
	// Label names the root in errors and commit summaries.
	Label string
	// OnCommit is called after every commit.
	OnCommit func(CommitInfo)
	// OnCaughtError is called when an error boundary takes over a failed
	// subtree, after the fallback is committed.
	OnCaughtError func(err error, info ErrorInfo)
	// OnUncaughtError is called when a render error reaches the root. The
	// previously committed UI stays in place.
	OnUncaughtError func(err error, info ErrorInfo)
}

// Root is a container bound to a host, owning a committed fiber tree and
// the state of the render in progress.
type Root struct {
	r         *Reconciler
	host      Host
	container Instance
	label     string
	opts      RootOptions

	current *Fiber
	tracker *lanes.Tracker
	status  RootStatus

	callbackNode     *scheduler.Task
	callbackPriority lanes.Lane

	// Render state. wipRoot is non-nil while a render is in progress.
	wipRoot          *Fiber
	wip              *Fiber
	renderLanes      lanes.Lanes
	exit             exitStatus
	uncaught         *errors.RenderError
	didReceiveUpdate bool
	ctxStack         contextStack
	pings            map[Thenable]lanes.Lanes

	pendingPassive         []*Fiber
	pendingPassiveUnmounts []passiveUnmount
	passiveTask            *scheduler.Task

	fatal     error
	unmounted bool
}

// CreateRoot binds a new root to container on host.
func (r *Reconciler) CreateRoot(host Host, container Instance, opts RootOptions) *Root {
	if host == nil {
		panic("core: CreateRoot requires a Host")
	}
	root := &Root{
		r:         r,
		host:      host,
		container: container,
		label:     opts.Label,
		opts:      opts,
		tracker:   lanes.NewTracker(r.laneTimeouts),
		pings:     make(map[Thenable]lanes.Lanes),
	}
	if root.label == "" {
		root.label = fmt.Sprintf("root%d", len(r.roots)+1)
	}
	f := newFiber(HostRoot, nil, "")
	f.stateNode = root
	f.memoizedState = &hook{kind: hookRoot, queue: &hookQueue{reducer: replaceReducer}}
	root.current = f
	r.roots = append(r.roots, root)
	return root
}

// Render schedules node as the root's new content at the lane of the
// current update context. Outside FlushSync and WithUrgency this is the
// default lane, so the work runs as a scheduler task.
func (rt *Root) Render(node Node) error {
	if rt.unmounted {
		return errors.ErrRootUnmounted
	}
	if rt.fatal != nil {
		return fmt.Errorf("%w: %w", errors.ErrRootFailed, rt.fatal)
	}
	lane := rt.r.RequestUpdateLane()
	q := rt.current.memoizedState.(*hook).queue
	return rt.r.scheduleUpdate(rt.current, lane, func() {
		q.enqueue(&update{lane: lane, action: node})
	})
}

// Unmount synchronously removes the root's content and releases it.
func (rt *Root) Unmount() {
	if rt.unmounted {
		return
	}
	if rt.fatal == nil {
		rt.r.FlushSync(func() { _ = rt.Render(nil) })
		rt.r.flushPassiveEffects(rt)
	}
	rt.unmounted = true
	if rt.callbackNode != nil {
		rt.r.sched.CancelCallback(rt.callbackNode)
		rt.callbackNode = nil
	}
	if rt.passiveTask != nil {
		rt.r.sched.CancelCallback(rt.passiveTask)
		rt.passiveTask = nil
	}
	for i, other := range rt.r.roots {
		if other == rt {
			rt.r.roots = append(rt.r.roots[:i], rt.r.roots[i+1:]...)
			break
		}
	}
}

// Label returns the root's name.
func (rt *Root) Label() string { return rt.label }

// Container returns the host container the root renders into.
func (rt *Root) Container() Instance { return rt.container }

// Current returns the committed HostRoot fiber.
func (rt *Root) Current() *Fiber { return rt.current }

// Status returns the state of the render pipeline.
func (rt *Root) Status() RootStatus { return rt.status }

// Err returns the fatal commit error that disabled the root, if any.
func (rt *Root) Err() error { return rt.fatal }

// PendingLanes returns the lanes with queued work.
func (rt *Root) PendingLanes() lanes.Lanes { return rt.tracker.Pending() }

// Tracker exposes the root's lane bookkeeping.
func (rt *Root) Tracker() *lanes.Tracker { return rt.tracker }

func (rt *Root) renderingLanes() lanes.Lanes {
	if rt.wipRoot == nil {
		return lanes.NoLanes
	}
	return rt.renderLanes
}

func (rt *Root) resetRenderState() {
	rt.wipRoot = nil
	rt.wip = nil
	rt.renderLanes = lanes.NoLanes
	rt.uncaught = nil
	rt.ctxStack.reset()
}
