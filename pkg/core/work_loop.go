package core

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// thrownValue is what a unit of work produces instead of children when it
// cannot complete: a pending signal or a render error.
type thrownValue struct {
	thenable Thenable
	err      *errors.RenderError
}

// errSuspendedInSync is reported when a synchronous render suspends with no
// boundary to show a fallback.
var errSuspendedInSync = errors.New("component suspended during a synchronous render with no suspense boundary")

// performConcurrentWorkOnRoot is the task callback of non-sync roots. It
// returns a continuation while the render it started is unfinished.
func (r *Reconciler) performConcurrentWorkOnRoot(root *Root, didTimeout bool) scheduler.Callback {
	original := root.callbackNode
	if r.flushPassiveEffects(root) && root.callbackNode != original {
		return nil
	}
	if root.unmounted || root.fatal != nil {
		return nil
	}

	root.tracker.MarkStarvedAsExpired(r.sched.Now())
	next := root.tracker.NextLanes(root.renderingLanes())
	if next == lanes.NoLanes {
		return nil
	}

	sliced := !lanes.IncludesBlockingLane(next) && !root.tracker.IncludesExpired(next) && !didTimeout
	var status exitStatus
	if sliced {
		status = r.renderRootConcurrent(root, next)
	} else {
		status = r.renderRootSync(root, next)
	}
	if status != exitInProgress {
		r.finishRender(root, status, next)
	}

	r.ensureRootIsScheduled(root)
	if root.callbackNode != nil && root.callbackNode == original {
		return func(didTimeout bool) scheduler.Callback {
			return r.performConcurrentWorkOnRoot(root, didTimeout)
		}
	}
	return nil
}

// performSyncWorkOnRoot renders and commits the sync lane without yielding.
func (r *Reconciler) performSyncWorkOnRoot(root *Root) {
	root.callbackPriority = lanes.NoLane
	if root.unmounted || root.fatal != nil {
		return
	}
	r.flushPassiveEffects(root)

	next := root.tracker.NextLanes(lanes.NoLanes)
	if !lanes.IncludesSyncLane(next) {
		r.ensureRootIsScheduled(root)
		return
	}
	status := r.renderRootSync(root, next)
	r.finishRender(root, status, next)
	r.ensureRootIsScheduled(root)
}

func (r *Reconciler) prepareFreshStack(root *Root, renderLanes lanes.Lanes) {
	root.resetRenderState()
	root.wipRoot = createWorkInProgress(root.current, nil)
	root.wip = root.wipRoot
	root.renderLanes = renderLanes
	root.exit = exitInProgress
}

func (r *Reconciler) renderRootSync(root *Root, renderLanes lanes.Lanes) exitStatus {
	prev := r.execCtx
	r.execCtx |= renderContext
	defer func() { r.execCtx = prev }()

	if root.wipRoot == nil || root.renderLanes != renderLanes {
		r.prepareFreshStack(root, renderLanes)
	}
	root.status = RootRendering
	for root.wip != nil {
		r.performUnitOfWork(root, root.wip)
	}
	return root.exit
}

func (r *Reconciler) renderRootConcurrent(root *Root, renderLanes lanes.Lanes) exitStatus {
	prev := r.execCtx
	r.execCtx |= renderContext
	defer func() { r.execCtx = prev }()

	if root.wipRoot == nil || root.renderLanes != renderLanes {
		r.prepareFreshStack(root, renderLanes)
	}
	root.status = RootRendering
	for root.wip != nil && !r.sched.ShouldYield() {
		r.performUnitOfWork(root, root.wip)
	}
	if root.wip != nil {
		return exitInProgress
	}
	return root.exit
}

// finishRender acts on the exit status of a finished render.
func (r *Reconciler) finishRender(root *Root, status exitStatus, renderLanes lanes.Lanes) {
	switch status {
	case exitCompleted:
		finished := root.wipRoot
		root.status = RootCompleted
		root.resetRenderState()
		r.commitRoot(root, finished, renderLanes)
	case exitSuspendedAtTop:
		root.resetRenderState()
		root.tracker.MarkSuspended(renderLanes)
		root.status = RootSuspendedAtTop
	case exitErrored:
		renderErr := root.uncaught
		root.resetRenderState()
		root.status = RootIdle
		root.tracker.MarkFinished(root.tracker.Pending() &^ renderLanes)
		r.reportUncaught(root, renderErr)
	}
}

func (r *Reconciler) reportUncaught(root *Root, renderErr *errors.RenderError) {
	if renderErr == nil {
		return
	}
	renderErr.Caught = false
	errors.ReportRenderError(renderErr)
	if root.opts.OnUncaughtError != nil {
		root.opts.OnUncaughtError(renderErr, ErrorInfo{Component: renderErr.Component})
	}
}

func (r *Reconciler) performUnitOfWork(root *Root, unit *Fiber) {
	next, thrown := r.beginWork(root, unit.alternate, unit, root.renderLanes)
	if thrown != nil {
		r.handleThrow(root, unit, thrown)
		return
	}
	unit.memoizedProps = unit.pendingProps
	if next == nil {
		r.completeUnitOfWork(root, unit)
	} else {
		root.wip = next
	}
}

// handleThrow routes a thrown value to the nearest boundary able to handle
// it and resumes unwinding from the thrower. Without one the render stops.
func (r *Reconciler) handleThrow(root *Root, source *Fiber, thrown *thrownValue) {
	if !r.throwException(root, source, thrown) {
		root.wip = nil
		return
	}
	source.flags |= Incomplete
	source.firstEffect = nil
	source.lastEffect = nil
	r.completeUnitOfWork(root, source)
}

func (r *Reconciler) throwException(root *Root, source *Fiber, thrown *thrownValue) bool {
	from := source.parent
	if thrown.thenable != nil {
		boundary := nearestSuspenseBoundary(source)
		wakeables := mapset.NewThreadUnsafeSet[Thenable](thrown.thenable)
		if boundary != nil {
			if err, at := r.prerenderSiblings(root, source, boundary, wakeables); err != nil {
				thrown = &thrownValue{err: err}
				from = at
			}
		}
		switch {
		case thrown.err != nil:
			// A sibling failed; the error wins over the suspension.
		case boundary != nil && !remainsOnPreviousScreen(root, boundary):
			pending, _ := boundary.updateQueue.(mapset.Set[Thenable])
			if pending == nil {
				pending = mapset.NewThreadUnsafeSet[Thenable]()
				boundary.updateQueue = pending
			}
			wakeables.Each(func(t Thenable) bool {
				pending.Add(t)
				return false
			})
			if record, ok := boundary.stateNode.(*SuspenseRecord); ok {
				record.lanes |= root.renderLanes
			}
			boundary.flags |= ShouldCapture
			return true
		case boundary != nil || !lanes.IncludesSyncLane(root.renderLanes):
			wakeables.Each(func(t Thenable) bool {
				r.attachPingListener(root, t, root.renderLanes)
				return false
			})
			root.exit = exitSuspendedAtTop
			return false
		default:
			thrown = &thrownValue{err: &errors.RenderError{
				Component: typeName(source.elementType),
				Phase:     errors.PhaseBegin,
				Err:       errSuspendedInSync,
				Timestamp: time.Now(),
			}}
		}
	}

	for node := from; node != nil; node = node.parent {
		if node.tag != ErrorBoundaryComponent || node.flags&DidCapture != 0 {
			continue
		}
		node.updateQueue = &capturedError{err: thrown.err}
		node.flags |= ShouldCapture
		return true
	}
	root.uncaught = thrown.err
	root.exit = exitErrored
	return false
}

// nearestSuspenseBoundary returns the closest enclosing boundary that is
// rendering its primary children.
func nearestSuspenseBoundary(f *Fiber) *Fiber {
	for node := f.parent; node != nil; node = node.parent {
		if node.tag == SuspenseComponent && node.memoizedState == nil {
			return node
		}
	}
	return nil
}

// remainsOnPreviousScreen reports whether a boundary that already shows
// content keeps it instead of committing its fallback. Only transitions and
// retries wait; urgent renders show the fallback.
func remainsOnPreviousScreen(root *Root, boundary *Fiber) bool {
	if root.renderLanes&^(lanes.TransitionLanes|lanes.RetryLanes) != 0 {
		return false
	}
	current := boundary.alternate
	return current != nil && current.memoizedState == nil
}

// prerenderSiblings begins the siblings left unrendered on the path from a
// suspended fiber up to its boundary, adding the signals they suspend on to
// wakeables. The work is thrown away once the boundary captures. The first
// render error outside a nested error boundary is returned together with the
// fiber its search for an error boundary starts from.
func (r *Reconciler) prerenderSiblings(root *Root, source, boundary *Fiber, wakeables mapset.Set[Thenable]) (*errors.RenderError, *Fiber) {
	var popped []*Fiber
	defer func() {
		for i := len(popped) - 1; i >= 0; i-- {
			root.ctxStack.push(popped[i].elementType.(*contextBase), providerValue(popped[i]))
		}
	}()
	for node := source; node != boundary; node = node.parent {
		if node != source && node.tag == ContextProvider {
			root.ctxStack.pop(node.elementType.(*contextBase))
			popped = append(popped, node)
		}
		for sib := node.sibling; sib != nil; sib = sib.sibling {
			if err := r.prerender(root, sib, wakeables, false); err != nil {
				return err, node.parent
			}
		}
	}
	return nil, nil
}

func (r *Reconciler) prerender(root *Root, f *Fiber, wakeables mapset.Set[Thenable], caught bool) *errors.RenderError {
	if f.tag == SuspenseComponent {
		return nil
	}
	var forced lanes.Lanes
	if f.alternate != nil {
		forced = f.alternate.forceLanes
	}
	next, thrown := r.beginWork(root, f.alternate, f, root.renderLanes)
	if f.alternate != nil {
		f.alternate.forceLanes = forced
	}
	if thrown != nil {
		if thrown.thenable != nil {
			wakeables.Add(thrown.thenable)
		} else if !caught {
			return thrown.err
		}
		return nil
	}
	caught = caught || f.tag == ErrorBoundaryComponent
	var err *errors.RenderError
	for c := next; c != nil && err == nil; c = c.sibling {
		err = r.prerender(root, c, wakeables, caught)
	}
	if f.tag == ContextProvider {
		root.ctxStack.pop(f.elementType.(*contextBase))
	}
	return err
}

// attachPingListener restarts a root suspended without a boundary once the
// signal settles.
func (r *Reconciler) attachPingListener(root *Root, t Thenable, pinged lanes.Lanes) {
	if prev, ok := root.pings[t]; ok {
		root.pings[t] = prev | pinged
		return
	}
	root.pings[t] = pinged
	ping := func() {
		r.sched.Post(func() {
			l := root.pings[t]
			delete(root.pings, t)
			if root.unmounted {
				return
			}
			root.tracker.MarkPinged(l & root.tracker.Pending())
			r.ensureRootIsScheduled(root)
		})
	}
	t.Then(ping, func(error) { ping() })
}

func (r *Reconciler) completeUnitOfWork(root *Root, unit *Fiber) {
	completed := unit
	for {
		current := completed.alternate
		parent := completed.parent

		if completed.flags&Incomplete == 0 {
			if next := r.completeWork(root, current, completed); next != nil {
				root.wip = next
				return
			}
			resetChildLanes(completed)

			if parent != nil && parent.flags&Incomplete == 0 {
				if parent.firstEffect == nil {
					parent.firstEffect = completed.firstEffect
				}
				if completed.lastEffect != nil {
					if parent.lastEffect != nil {
						parent.lastEffect.nextEffect = completed.firstEffect
					}
					parent.lastEffect = completed.lastEffect
				}
				if completed.flags&effectMask != 0 {
					if parent.lastEffect != nil {
						parent.lastEffect.nextEffect = completed
					} else {
						parent.firstEffect = completed
					}
					parent.lastEffect = completed
				}
			}
			if sibling := completed.sibling; sibling != nil {
				root.wip = sibling
				return
			}
		} else {
			if next := r.unwindWork(root, completed); next != nil {
				next.flags &^= Incomplete | ShouldCapture
				root.wip = next
				return
			}
			if parent != nil {
				parent.firstEffect = nil
				parent.lastEffect = nil
				parent.flags |= Incomplete
			}
		}

		completed = parent
		if completed == nil {
			break
		}
	}
	root.wip = nil
	if root.exit == exitInProgress {
		root.exit = exitCompleted
	}
}

// unwindWork pops what beginWork pushed for a fiber on the path of a throw
// and returns the boundary that captured it, if this is the one.
func (r *Reconciler) unwindWork(root *Root, wip *Fiber) *Fiber {
	switch wip.tag {
	case SuspenseComponent, ErrorBoundaryComponent:
		if wip.flags&ShouldCapture != 0 {
			wip.flags = wip.flags&^ShouldCapture | DidCapture
			return wip
		}
	case ContextProvider:
		root.ctxStack.pop(wip.elementType.(*contextBase))
	}
	return nil
}

func resetChildLanes(completed *Fiber) {
	childLanes := lanes.NoLanes
	for c := completed.child; c != nil; c = c.sibling {
		childLanes |= c.lanes | c.childLanes
	}
	completed.childLanes = childLanes
}

// renderErrorFrom converts a recovered panic into a render error.
func renderErrorFrom(f *Fiber, phase errors.Phase, recovered any) *errors.RenderError {
	re := &errors.RenderError{
		Component:  typeName(f.elementType),
		Phase:      phase,
		Recovered:  recovered,
		StackTrace: errors.CaptureStack(),
		Timestamp:  time.Now(),
	}
	if err, ok := recovered.(error); ok {
		re.Err = err
	} else {
		re.Err = fmt.Errorf("%v", recovered)
	}
	return re
}
