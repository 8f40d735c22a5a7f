package core

import (
	"fmt"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// beginWork renders one fiber and returns its first child to work on next.
//
// A fiber whose props are identical, which has no work at the render lanes
// and which is not re-rendering after a capture is skipped; its subtree is
// cloned only if a descendant has work.
func (r *Reconciler) beginWork(root *Root, current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, *thrownValue) {
	root.didReceiveUpdate = false
	if current != nil {
		if !samePendingProps(current.memoizedProps, wip.pendingProps) {
			root.didReceiveUpdate = true
		} else if !wip.lanes.Intersects(renderLanes) &&
			!wip.forceLanes.Intersects(renderLanes) &&
			wip.flags&DidCapture == 0 {
			return r.attemptEarlyBailout(root, current, wip, renderLanes), nil
		}
	}
	if wip.forceLanes.Intersects(renderLanes) {
		root.didReceiveUpdate = true
		wip.forceLanes &^= renderLanes
		if current != nil {
			current.forceLanes &^= renderLanes
		}
	}
	wip.lanes = lanes.NoLanes

	switch wip.tag {
	case HostRoot:
		return r.updateHostRoot(root, current, wip, renderLanes), nil
	case HostComponent:
		el := wip.pendingProps.(*Element)
		if current == nil || current.ref != el.Ref {
			wip.ref = el.Ref
		}
		r.reconcileChildren(current, wip, childrenNode(el.Children), renderLanes)
		return wip.child, nil
	case HostText:
		return nil, nil
	case FragmentTag:
		el := wip.pendingProps.(*Element)
		r.reconcileChildren(current, wip, childrenNode(el.Children), renderLanes)
		return wip.child, nil
	case FunctionComponent:
		return r.updateFunctionComponent(root, current, wip, renderLanes)
	case ContextProvider:
		return r.updateContextProvider(root, current, wip, renderLanes), nil
	case SuspenseComponent:
		return r.updateSuspenseComponent(current, wip, renderLanes), nil
	case OffscreenComponent:
		return r.updateOffscreenComponent(current, wip, renderLanes), nil
	case ErrorBoundaryComponent:
		return r.updateErrorBoundary(current, wip, renderLanes)
	default:
		panic(fmt.Sprintf("core: unknown fiber tag %v", wip.tag))
	}
}

func samePendingProps(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case *Element:
		bv, ok := b.(*Element)
		return ok && av == bv
	case *offscreenProps:
		bv, ok := b.(*offscreenProps)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return false
	}
}

func (r *Reconciler) attemptEarlyBailout(root *Root, current, wip *Fiber, renderLanes lanes.Lanes) *Fiber {
	switch wip.tag {
	case ContextProvider:
		root.ctxStack.push(wip.elementType.(*contextBase), providerValue(wip))
	case SuspenseComponent:
		if wip.memoizedState != nil {
			// Showing the fallback: retry the primary tree only if it has
			// work, otherwise keep the fallback and skip the hidden tree.
			if primary := wip.child; primary != nil && primary.childLanes.Intersects(renderLanes) {
				return r.updateSuspenseComponent(current, wip, renderLanes)
			}
			if child := bailoutOnAlreadyFinishedWork(current, wip, renderLanes); child != nil {
				return child.sibling
			}
			return nil
		}
	}
	return bailoutOnAlreadyFinishedWork(current, wip, renderLanes)
}

func bailoutOnAlreadyFinishedWork(current, wip *Fiber, renderLanes lanes.Lanes) *Fiber {
	if !wip.childLanes.Intersects(renderLanes) {
		for c := wip.child; c != nil; c = c.sibling {
			c.parent = wip
		}
		return nil
	}
	cloneChildFibers(wip)
	return wip.child
}

func cloneChildFibers(wip *Fiber) {
	currentChild := wip.child
	if currentChild == nil {
		return
	}
	newChild := createWorkInProgress(currentChild, currentChild.pendingProps)
	wip.child = newChild
	newChild.parent = wip
	for currentChild.sibling != nil {
		currentChild = currentChild.sibling
		newChild.sibling = createWorkInProgress(currentChild, currentChild.pendingProps)
		newChild = newChild.sibling
		newChild.parent = wip
	}
	newChild.sibling = nil
}

func (r *Reconciler) updateHostRoot(root *Root, current, wip *Fiber, renderLanes lanes.Lanes) *Fiber {
	cur := current.memoizedState.(*hook)
	h := &hook{
		kind:          hookRoot,
		memoizedState: cur.memoizedState,
		baseState:     cur.baseState,
		baseQueue:     cur.baseQueue,
		queue:         cur.queue,
	}
	wip.memoizedState = h
	processUpdateQueue(h, cur, replaceReducer, renderLanes, wip)

	next := h.memoizedState
	if sameNode(next, cur.memoizedState) && current.child != nil {
		return bailoutOnAlreadyFinishedWork(current, wip, renderLanes)
	}
	r.reconcileChildren(current, wip, next, renderLanes)
	return wip.child
}

func (r *Reconciler) updateFunctionComponent(root *Root, current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, *thrownValue) {
	out, thrown := r.renderWithHooks(root, current, wip, renderLanes)
	if thrown != nil {
		return nil, thrown
	}
	if current != nil && !root.didReceiveUpdate {
		wip.updateQueue = current.updateQueue
		wip.flags &^= Passive | Layout | Snapshot
		current.lanes &^= renderLanes
		return bailoutOnAlreadyFinishedWork(current, wip, renderLanes), nil
	}
	wip.flags |= PerformedWork
	r.reconcileChildren(current, wip, out, renderLanes)
	return wip.child, nil
}

// renderWithHooks calls the component's render function with a fresh Ctx
// and converts suspensions, failures and panics into a thrown value.
func (r *Reconciler) renderWithHooks(root *Root, current, wip *Fiber, renderLanes lanes.Lanes) (Node, *thrownValue) {
	el := wip.pendingProps.(*Element)
	c := &Ctx{r: r, root: root, fiber: wip, current: current, renderLanes: renderLanes}
	if current != nil {
		c.currentHooks, _ = current.memoizedState.([]*hook)
	}
	if deps := wip.dependencies; deps != nil && deps.lanes.Intersects(renderLanes) {
		root.didReceiveUpdate = true
	}
	wip.dependencies = nil
	wip.memoizedState = nil
	wip.updateQueue = nil

	prev := r.rendering
	r.rendering = c
	defer func() { r.rendering = prev }()

	var out Node
	for attempt := 0; ; attempt++ {
		var thrown *thrownValue
		out, thrown = c.callRender(el)
		if thrown != nil {
			return nil, thrown
		}
		if !c.renderPhaseUpdate {
			break
		}
		if attempt+1 >= maxRenderPhaseUpdates {
			return nil, &thrownValue{err: renderErrorFrom(wip, errors.PhaseBegin,
				fmt.Errorf("too many re-renders: %s updates its own state on every render", typeName(wip.elementType)))}
		}
		c.prevAttempt = c.hooks
		c.hooks = nil
		c.hookIndex = 0
		c.effects = nil
		c.renderPhaseUpdate = false
		wip.flags &^= Passive | Layout | Snapshot
	}

	if current != nil && c.hookIndex != len(c.currentHooks) {
		err := &hookOrderError{component: typeName(wip.elementType), msg: "rendered fewer hooks than during the previous render"}
		return nil, &thrownValue{err: renderErrorFrom(wip, errors.PhaseBegin, err)}
	}
	wip.memoizedState = c.hooks
	wip.updateQueue = c.effects
	return out, nil
}

func (c *Ctx) callRender(el *Element) (out Node, thrown *thrownValue) {
	defer func() {
		if rec := recover(); rec != nil {
			thrown = &thrownValue{err: renderErrorFrom(c.fiber, errors.PhaseBegin, rec)}
		}
	}()
	switch t := el.Type.(type) {
	case ComponentFunc:
		out = t(c, el.Props)
	case Component:
		out = t.Render(c)
	default:
		panic(fmt.Sprintf("core: %T is not a component", el.Type))
	}
	switch v := out.(type) {
	case *suspendNode:
		return nil, &thrownValue{thenable: v.thenable}
	case *failNode:
		re := renderErrorFrom(c.fiber, errors.PhaseBegin, v.err)
		re.Recovered = nil
		re.StackTrace = ""
		return nil, &thrownValue{err: re}
	}
	return out, nil
}

func (r *Reconciler) updateContextProvider(root *Root, current, wip *Fiber, renderLanes lanes.Lanes) *Fiber {
	el := wip.pendingProps.(*Element)
	ctx := wip.elementType.(*contextBase)
	value := el.Props[propValue]
	root.ctxStack.push(ctx, value)

	if current != nil {
		oldEl := current.memoizedProps.(*Element)
		if sameValue(oldEl.Props[propValue], value) {
			if sameChildren(oldEl.Children, el.Children) {
				return bailoutOnAlreadyFinishedWork(current, wip, renderLanes)
			}
		} else {
			propagateContextChange(wip, ctx, renderLanes)
		}
	}
	r.reconcileChildren(current, wip, childrenNode(el.Children), renderLanes)
	return wip.child
}

func sameChildren(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameNode(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (r *Reconciler) updateOffscreenComponent(current, wip *Fiber, renderLanes lanes.Lanes) *Fiber {
	props := wip.pendingProps.(*offscreenProps)
	if props.mode == offscreenHidden {
		// Hidden trees keep their committed children untouched.
		return nil
	}
	r.reconcileChildren(current, wip, props.children, renderLanes)
	return wip.child
}

func (r *Reconciler) updateSuspenseComponent(current, wip *Fiber, renderLanes lanes.Lanes) *Fiber {
	el := wip.pendingProps.(*Element)
	showFallback := wip.flags&DidCapture != 0
	wip.flags &^= DidCapture
	children := childrenNode(el.Children)
	fallback := el.Props[propFallback]

	if showFallback {
		wip.memoizedState = suspenseTimedOut{}
		if current == nil {
			return mountSuspenseFallbackChildren(wip, children, fallback, renderLanes)
		}
		return updateSuspenseFallbackChildren(current, wip, children, fallback, renderLanes)
	}
	wip.memoizedState = nil
	if current == nil {
		primary := createFiberFromOffscreen(&offscreenProps{mode: offscreenVisible, children: children}, renderLanes)
		primary.parent = wip
		wip.child = primary
		return primary
	}
	return updateSuspensePrimaryChildren(current, wip, children)
}

func fallbackElement(fallback Node) *Element {
	return &Element{Type: Fragment, Children: []Node{fallback}}
}

func mountSuspenseFallbackChildren(wip *Fiber, children, fallback Node, renderLanes lanes.Lanes) *Fiber {
	primaryProps := &offscreenProps{mode: offscreenHidden, children: children}
	primary := createFiberFromOffscreen(primaryProps, lanes.NoLanes)
	primary.memoizedProps = primaryProps
	fb := createFiberFromFragment(fallbackElement(fallback), renderLanes, "")
	primary.parent = wip
	fb.parent = wip
	primary.sibling = fb
	wip.child = primary
	return fb
}

func updateSuspensePrimaryChildren(current, wip *Fiber, children Node) *Fiber {
	currentPrimary := current.child
	currentFallback := currentPrimary.sibling
	primary := createWorkInProgress(currentPrimary, &offscreenProps{mode: offscreenVisible, children: children})
	primary.parent = wip
	primary.sibling = nil
	if currentFallback != nil {
		currentFallback.nextEffect = nil
		currentFallback.flags = Deletion
		wip.firstEffect = currentFallback
		wip.lastEffect = currentFallback
	}
	wip.child = primary
	return primary
}

func updateSuspenseFallbackChildren(current, wip *Fiber, children, fallback Node, renderLanes lanes.Lanes) *Fiber {
	currentPrimary := current.child
	currentFallback := currentPrimary.sibling
	primaryProps := &offscreenProps{mode: offscreenHidden, children: children}
	primary := createWorkInProgress(currentPrimary, primaryProps)
	// The hidden tree is not rendered now; work left in it waits for a retry.
	primary.memoizedProps = primaryProps
	primary.childLanes = currentPrimary.childLanes &^ renderLanes

	var fb *Fiber
	if currentFallback != nil {
		fb = createWorkInProgress(currentFallback, fallbackElement(fallback))
	} else {
		fb = createFiberFromFragment(fallbackElement(fallback), renderLanes, "")
		fb.flags |= Placement
	}
	primary.parent = wip
	fb.parent = wip
	primary.sibling = fb
	fb.sibling = nil
	wip.child = primary
	return fb
}
