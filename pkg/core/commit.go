package core

import (
	"fmt"
	"time"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// passiveUnmount is the cleanup of a passive effect whose component was
// deleted; it runs with the next passive flush.
type passiveUnmount struct {
	component string
	inst      *effectInstance
}

// commitRoot applies a finished tree to the host. It cannot be interrupted.
func (r *Reconciler) commitRoot(root *Root, finished *Fiber, committedLanes lanes.Lanes) {
	prev := r.execCtx
	r.execCtx |= commitContext
	r.flushPassiveEffects(root)

	start := r.sched.Now()
	root.status = RootCommitting
	root.callbackNode = nil
	root.callbackPriority = lanes.NoLane
	root.tracker.MarkFinished(finished.lanes | finished.childLanes)

	info := CommitInfo{Root: root.label, Lanes: committedLanes}
	first := finished.firstEffect
	err := r.commitPasses(root, finished, first, &info)
	r.execCtx = prev
	if err != nil {
		r.failRoot(root, err)
		return
	}
	for e := first; e != nil; {
		next := e.nextEffect
		e.nextEffect = nil
		e = next
	}
	finished.firstEffect = nil
	finished.lastEffect = nil
	info.Duration = r.sched.Now().Sub(start)
	root.status = RootIdle

	if (len(root.pendingPassive) > 0 || len(root.pendingPassiveUnmounts) > 0) && root.passiveTask == nil {
		root.passiveTask = r.sched.ScheduleCallback(scheduler.NormalPriority, func(bool) scheduler.Callback {
			root.passiveTask = nil
			r.flushPassiveEffects(root)
			return nil
		})
	}

	if lanes.IncludesSyncLane(root.tracker.Pending()) {
		if root == r.rootWithNestedUpdates {
			r.nestedUpdateCount++
		} else {
			r.nestedUpdateCount = 0
			r.rootWithNestedUpdates = root
		}
	} else {
		r.nestedUpdateCount = 0
	}

	if root.opts.OnCommit != nil {
		root.opts.OnCommit(info)
	}
	r.ensureRootIsScheduled(root)
	if r.execCtx&(renderContext|commitContext) == noContext {
		r.flushSyncCallbacks()
	}
}

// commitPasses runs the three commit passes over the effect list and swaps
// the trees between mutation and layout. Any panic aborts the commit.
func (r *Reconciler) commitPasses(root *Root, finished, first *Fiber, info *CommitInfo) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("panic: %v", rec)
			}
		}
	}()

	// Before mutation: snapshots read the old host tree, then deletions.
	for e := first; e != nil; e = e.nextEffect {
		if e.flags&Snapshot != 0 && e.alternate != nil {
			runEffectCreates(e, effectSnapshot)
		}
	}
	for e := first; e != nil; e = e.nextEffect {
		if e.flags&Deletion != 0 {
			r.commitDeletion(root, e)
			info.Deletions++
		}
	}

	// Mutation.
	for e := first; e != nil; e = e.nextEffect {
		flags := e.flags
		if flags&Deletion != 0 {
			continue
		}
		if flags&RefFlag != 0 {
			if cur := e.alternate; cur != nil && cur.ref != nil {
				cur.ref.Current = nil
			}
		}
		if flags&Placement != 0 {
			commitPlacement(root, e)
			e.flags &^= Placement
			if e.alternate != nil {
				info.Moves++
			} else {
				info.Placements++
			}
		}
		if flags&Update != 0 {
			commitUpdate(root, e)
			info.Updates++
		}
		if flags&Layout != 0 && e.alternate != nil {
			runEffectDestroys(e, effectLayout)
		}
		if flags&Visibility != 0 && e.tag == SuspenseComponent {
			hideOrUnhideChildren(root.host, e.child, e.memoizedState != nil)
		}
	}

	root.current = finished

	// Layout.
	for e := first; e != nil; e = e.nextEffect {
		flags := e.flags
		if flags&Deletion != 0 {
			continue
		}
		if flags&Layout != 0 {
			runEffectCreates(e, effectLayout)
		}
		if flags&RefFlag != 0 && e.ref != nil && e.tag == HostComponent {
			e.ref.Current = e.stateNode
		}
		if flags&Callback != 0 {
			switch e.tag {
			case SuspenseComponent:
				r.commitSuspenseBoundary(e)
			case ErrorBoundaryComponent:
				r.commitCaughtError(root, e)
			}
		}
		if flags&Passive != 0 {
			root.pendingPassive = append(root.pendingPassive, e)
		}
	}
	return nil
}

func (r *Reconciler) commitSuspenseBoundary(finished *Fiber) {
	record, ok := finished.stateNode.(*SuspenseRecord)
	if !ok {
		return
	}
	record.fiber = finished
	if finished.memoizedState == nil {
		record.state = SuspenseUnsuspended
		record.lanes = lanes.NoLanes
		record.pending.Clear()
	}
	r.attachRetryListeners(finished)
}

func (r *Reconciler) failRoot(root *Root, err error) {
	fe := &errors.FiberError{
		Op:         "core.commitRoot",
		Kind:       errors.KindCommit,
		Root:       root.label,
		Err:        err,
		StackTrace: errors.CaptureStack(),
		Timestamp:  time.Now(),
	}
	root.fatal = fe
	root.status = RootIdle
	root.pendingPassive = nil
	root.pendingPassiveUnmounts = nil
	if root.callbackNode != nil {
		r.sched.CancelCallback(root.callbackNode)
		root.callbackNode = nil
	}
	errors.Report(fe)
}

func runEffectDestroys(f *Fiber, kind effectKind) {
	for _, e := range effectsOf(f) {
		if e.kind != kind || !e.fire || e.inst.destroy == nil {
			continue
		}
		destroy := e.inst.destroy
		e.inst.destroy = nil
		destroy()
	}
}

func runEffectCreates(f *Fiber, kind effectKind) {
	for _, e := range effectsOf(f) {
		if e.kind != kind || !e.fire {
			continue
		}
		e.inst.destroy = e.create()
	}
}

func hostParentOf(f *Fiber) Instance {
	for p := f.parent; p != nil; p = p.parent {
		switch p.tag {
		case HostComponent:
			return p.stateNode
		case HostRoot:
			return p.stateNode.(*Root).container
		}
	}
	panic(fmt.Sprintf("core: %v has no host parent", f))
}

func isHostParent(f *Fiber) bool {
	return f.tag == HostComponent || f.tag == HostRoot
}

// hostSibling finds the host node that a placed fiber must be inserted
// before: the first following host node that is itself not being placed.
func hostSibling(f *Fiber) Instance {
	node := f
siblings:
	for {
		for node.sibling == nil {
			if node.parent == nil || isHostParent(node.parent) {
				return nil
			}
			node = node.parent
		}
		node.sibling.parent = node.parent
		node = node.sibling
		for node.tag != HostComponent && node.tag != HostText {
			if node.flags&Placement != 0 || node.child == nil {
				continue siblings
			}
			node.child.parent = node
			node = node.child
		}
		if node.flags&Placement == 0 {
			return node.stateNode
		}
	}
}

func commitPlacement(root *Root, f *Fiber) {
	parent := hostParentOf(f)
	before := hostSibling(f)
	insertOrAppend(root.host, f, before, parent)
}

func insertOrAppend(host Host, f *Fiber, before, parent Instance) {
	if f.tag == HostComponent || f.tag == HostText {
		if before != nil {
			host.InsertBefore(parent, f.stateNode, before)
		} else {
			host.AppendChild(parent, f.stateNode)
		}
		return
	}
	for c := f.child; c != nil; c = c.sibling {
		insertOrAppend(host, c, before, parent)
	}
}

func commitUpdate(root *Root, f *Fiber) {
	switch f.tag {
	case HostComponent:
		el := f.memoizedProps.(*Element)
		var oldProps Props
		if cur := f.alternate; cur != nil {
			oldProps = cur.memoizedProps.(*Element).Props
		}
		root.host.CommitUpdate(f.stateNode, el.Type.(string), oldProps, el.Props)
	case HostText:
		var oldText string
		if cur := f.alternate; cur != nil {
			oldText, _ = cur.memoizedProps.(string)
		}
		root.host.CommitTextUpdate(f.stateNode, oldText, f.memoizedProps.(string))
	}
}

// commitDeletion removes a deleted subtree from the host, runs its cleanups
// and unlinks it.
func (r *Reconciler) commitDeletion(root *Root, f *Fiber) {
	parent := hostParentOf(f)
	r.removeSubtree(root, f, parent)
	detachSubtree(f)
}

func (r *Reconciler) removeSubtree(root *Root, f *Fiber, hostParent Instance) {
	if f.tag == HostComponent || f.tag == HostText {
		r.unmountSubtree(root, f)
		root.host.RemoveChild(hostParent, f.stateNode)
		return
	}
	r.commitUnmount(root, f)
	for c := f.child; c != nil; c = c.sibling {
		r.removeSubtree(root, c, hostParent)
	}
}

func (r *Reconciler) unmountSubtree(root *Root, f *Fiber) {
	r.commitUnmount(root, f)
	for c := f.child; c != nil; c = c.sibling {
		r.unmountSubtree(root, c)
	}
}

func (r *Reconciler) commitUnmount(root *Root, f *Fiber) {
	switch f.tag {
	case FunctionComponent:
		for _, e := range effectsOf(f) {
			if e.inst.destroy == nil {
				continue
			}
			switch e.kind {
			case effectLayout:
				destroy := e.inst.destroy
				e.inst.destroy = nil
				destroy()
			case effectPassive:
				root.pendingPassiveUnmounts = append(root.pendingPassiveUnmounts, passiveUnmount{
					component: typeName(f.elementType),
					inst:      e.inst,
				})
			}
		}
	case HostComponent:
		if f.ref != nil {
			f.ref.Current = nil
		}
	case SuspenseComponent:
		if record, ok := f.stateNode.(*SuspenseRecord); ok {
			record.unmounted = true
			record.pending.Clear()
		}
	}
}

func detachSubtree(f *Fiber) {
	for c := f.child; c != nil; {
		next := c.sibling
		detachSubtree(c)
		c = next
	}
	detachFiber(f)
}

// flushPassiveEffects runs all pending passive cleanups of root, then all
// pending passive effects. It reports whether there was anything to run.
func (r *Reconciler) flushPassiveEffects(root *Root) bool {
	if len(root.pendingPassive) == 0 && len(root.pendingPassiveUnmounts) == 0 {
		return false
	}
	fibers, unmounts := root.pendingPassive, root.pendingPassiveUnmounts
	root.pendingPassive, root.pendingPassiveUnmounts = nil, nil
	if root.passiveTask != nil {
		r.sched.CancelCallback(root.passiveTask)
		root.passiveTask = nil
	}

	prev := r.execCtx
	r.execCtx |= batchedContext
	for _, u := range unmounts {
		if destroy := u.inst.destroy; destroy != nil {
			u.inst.destroy = nil
			runPassive(u.component, destroy)
		}
	}
	for _, f := range fibers {
		for _, e := range effectsOf(f) {
			if e.kind != effectPassive || !e.fire || e.inst.destroy == nil {
				continue
			}
			destroy := e.inst.destroy
			e.inst.destroy = nil
			runPassive(typeName(f.elementType), destroy)
		}
	}
	for _, f := range fibers {
		for _, e := range effectsOf(f) {
			if e.kind != effectPassive || !e.fire {
				continue
			}
			create := e.create
			inst := e.inst
			runPassive(typeName(f.elementType), func() { inst.destroy = create() })
		}
	}
	r.execCtx = prev
	if prev == noContext {
		r.flushSyncCallbacks()
	}
	return true
}

func runPassive(component string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			re := &errors.RenderError{
				Component:  component,
				Phase:      errors.PhasePassive,
				Recovered:  rec,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			if err, ok := rec.(error); ok {
				re.Err = err
			}
			errors.ReportRenderError(re)
		}
	}()
	fn()
}
