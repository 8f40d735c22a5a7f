package core

import (
	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// DefaultNestedUpdateLimit caps how many synchronous commits in a row one
// root may trigger before further synchronous updates are refused.
const DefaultNestedUpdateLimit = 50

type executionContext uint8

const (
	noContext      executionContext = 0
	batchedContext executionContext = 1 << 0
	renderContext  executionContext = 1 << 1
	commitContext  executionContext = 1 << 2
)

// Options configures a Reconciler.
type Options struct {
	// Scheduler runs render and passive-effect tasks. Required.
	Scheduler Scheduler
	// LaneTimeouts sets the starvation policy. Nil means lanes.DefaultTimeouts().
	LaneTimeouts *lanes.Timeouts
	// NestedUpdateLimit defaults to DefaultNestedUpdateLimit.
	NestedUpdateLimit int
}

// Reconciler is the process-wide scheduling context shared by all roots
// created from it. It must only be used from the scheduler goroutine; other
// goroutines reach it through Scheduler.Post.
type Reconciler struct {
	sched        Scheduler
	laneTimeouts lanes.Timeouts
	nestedLimit  int
	alloc        *lanes.Allocator

	execCtx        executionContext
	updateLane     lanes.Lane
	transitionLane lanes.Lane

	syncQueue     []*Root
	syncFlushTask *scheduler.Task
	flushingSync  bool

	// rendering is the component whose render function is running.
	rendering *Ctx

	rootWithNestedUpdates *Root
	nestedUpdateCount     int

	roots []*Root
}

// NewReconciler creates a reconciler driven by opts.Scheduler.
func NewReconciler(opts Options) *Reconciler {
	if opts.Scheduler == nil {
		panic("core: NewReconciler requires a Scheduler")
	}
	r := &Reconciler{
		sched:        opts.Scheduler,
		laneTimeouts: lanes.DefaultTimeouts(),
		nestedLimit:  opts.NestedUpdateLimit,
		alloc:        lanes.NewAllocator(),
	}
	if opts.LaneTimeouts != nil {
		r.laneTimeouts = *opts.LaneTimeouts
	}
	if r.nestedLimit <= 0 {
		r.nestedLimit = DefaultNestedUpdateLimit
	}
	return r
}

// Scheduler returns the scheduler the reconciler runs on.
func (r *Reconciler) Scheduler() Scheduler { return r.sched }

// Batch runs fn with synchronous work deferred until fn returns.
func (r *Reconciler) Batch(fn func()) {
	prev := r.execCtx
	r.execCtx |= batchedContext
	defer func() {
		r.execCtx = prev
		if prev == noContext {
			r.flushSyncCallbacks()
		}
	}()
	fn()
}

// FlushSync runs fn with updates at the sync lane and renders them before
// returning, even inside an enclosing Batch.
func (r *Reconciler) FlushSync(fn func()) {
	prevLane := r.updateLane
	prevCtx := r.execCtx
	r.updateLane = lanes.SyncLane
	r.execCtx |= batchedContext
	defer func() {
		r.updateLane = prevLane
		r.execCtx = prevCtx
		if r.execCtx&(renderContext|commitContext) == noContext {
			r.flushSyncCallbacks()
		}
	}()
	if fn != nil {
		fn()
	}
}

// WithUrgency runs fn with updates requested at urgency u.
func (r *Reconciler) WithUrgency(u lanes.Urgency, fn func()) {
	prev := r.updateLane
	r.updateLane = lanes.RequestLane(u)
	defer func() { r.updateLane = prev }()
	fn()
}

// StartTransition runs fn with updates assigned to a fresh transition lane.
// Transition renders are time sliced and yield to more urgent work.
func (r *Reconciler) StartTransition(fn func()) {
	prev := r.transitionLane
	r.transitionLane = r.alloc.ClaimTransition()
	defer func() { r.transitionLane = prev }()
	fn()
}

// Entangle ties lanes together on root so they always render as one set.
func (r *Reconciler) Entangle(root *Root, set lanes.Lanes) {
	root.tracker.MarkEntangled(set)
	r.ensureRootIsScheduled(root)
}

// RequestUpdateLane returns the lane an update issued now would be queued at.
func (r *Reconciler) RequestUpdateLane() lanes.Lane {
	switch {
	case r.transitionLane != lanes.NoLane:
		return r.transitionLane
	case r.updateLane != lanes.NoLane:
		return r.updateLane
	case r.execCtx&commitContext != noContext:
		return lanes.SyncLane
	default:
		return lanes.DefaultLane
	}
}

// ScheduleUpdateOnFiber forces f to re-render at lane even if its props and
// state are unchanged.
func (r *Reconciler) ScheduleUpdateOnFiber(f *Fiber, lane lanes.Lane) error {
	if lane == lanes.NoLane {
		lane = r.RequestUpdateLane()
	}
	return r.scheduleUpdate(f, lane, func() {
		f.forceLanes |= lane
		if alt := f.alternate; alt != nil {
			alt.forceLanes |= lane
		}
	})
}

// FlushPassiveEffects runs pending passive effects of every root.
func (r *Reconciler) FlushPassiveEffects() bool {
	did := false
	for _, root := range r.roots {
		if r.flushPassiveEffects(root) {
			did = true
		}
	}
	return did
}

// scheduleUpdate marks lane from f to its root and schedules the root.
// enqueue runs only when the update is accepted.
func (r *Reconciler) scheduleUpdate(f *Fiber, lane lanes.Lanes, enqueue func()) error {
	root := rootOf(f)
	if root == nil || root.unmounted {
		return errors.ErrRootUnmounted
	}
	if root.fatal != nil {
		return errors.ErrRootFailed
	}
	if err := r.checkNestedUpdates(root, lane); err != nil {
		return err
	}
	if enqueue != nil {
		enqueue()
	}
	markUpdateLaneFromFiberToRoot(f, lane)
	root.tracker.MarkUpdated(lane)
	r.ensureRootIsScheduled(root)
	if lanes.IncludesSyncLane(lane) && r.execCtx == noContext {
		r.flushSyncCallbacks()
	}
	return nil
}

func (r *Reconciler) checkNestedUpdates(root *Root, lane lanes.Lanes) error {
	if !lanes.IncludesSyncLane(lane) || root != r.rootWithNestedUpdates || r.nestedUpdateCount <= r.nestedLimit {
		return nil
	}
	r.nestedUpdateCount = 0
	r.rootWithNestedUpdates = nil
	err := &errors.FiberError{
		Op:   "core.scheduleUpdateOnFiber",
		Kind: errors.KindScheduler,
		Root: root.label,
		Err:  errors.ErrNestedUpdateLimit,
	}
	errors.Report(err)
	return err
}

func rootOf(f *Fiber) *Root {
	node := f
	for node.parent != nil {
		node = node.parent
	}
	if node.tag != HostRoot {
		return nil
	}
	root, _ := node.stateNode.(*Root)
	return root
}

func markUpdateLaneFromFiberToRoot(f *Fiber, lane lanes.Lanes) {
	f.lanes |= lane
	if alt := f.alternate; alt != nil {
		alt.lanes |= lane
	}
	for parent := f.parent; parent != nil; parent = parent.parent {
		parent.childLanes |= lane
		if alt := parent.alternate; alt != nil {
			alt.childLanes |= lane
		}
	}
}

// ensureRootIsScheduled makes sure exactly one task (or sync queue entry)
// exists for the root's most urgent pending lanes.
func (r *Reconciler) ensureRootIsScheduled(root *Root) {
	root.tracker.MarkStarvedAsExpired(r.sched.Now())
	next := root.tracker.NextLanes(root.renderingLanes())
	existing := root.callbackNode
	if next == lanes.NoLanes || root.fatal != nil {
		if existing != nil {
			r.sched.CancelCallback(existing)
		}
		root.callbackNode = nil
		root.callbackPriority = lanes.NoLane
		return
	}

	priority := next.Highest()
	if root.callbackPriority == priority && (existing != nil || priority == lanes.SyncLane) {
		return
	}
	if existing != nil {
		r.sched.CancelCallback(existing)
	}

	if priority == lanes.SyncLane {
		r.scheduleSyncCallback(root)
		root.callbackNode = nil
	} else {
		p := scheduler.PriorityFor(lanes.UrgencyOf(next))
		root.callbackNode = r.sched.ScheduleCallback(p, func(didTimeout bool) scheduler.Callback {
			return r.performConcurrentWorkOnRoot(root, didTimeout)
		})
	}
	root.callbackPriority = priority
}

func (r *Reconciler) scheduleSyncCallback(root *Root) {
	for _, queued := range r.syncQueue {
		if queued == root {
			return
		}
	}
	r.syncQueue = append(r.syncQueue, root)
	if r.syncFlushTask == nil {
		r.syncFlushTask = r.sched.ScheduleCallback(scheduler.ImmediatePriority, func(bool) scheduler.Callback {
			r.syncFlushTask = nil
			r.flushSyncCallbacks()
			return nil
		})
	}
}

func (r *Reconciler) flushSyncCallbacks() {
	if r.flushingSync || r.execCtx&(renderContext|commitContext) != noContext {
		return
	}
	r.flushingSync = true
	defer func() { r.flushingSync = false }()
	for len(r.syncQueue) > 0 {
		root := r.syncQueue[0]
		r.syncQueue = r.syncQueue[1:]
		r.performSyncWorkOnRoot(root)
	}
	if r.syncFlushTask != nil {
		r.sched.CancelCallback(r.syncFlushTask)
		r.syncFlushTask = nil
	}
}
