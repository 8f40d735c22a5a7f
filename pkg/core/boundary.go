package core

import (
	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// capturedError is queued on an error boundary that caught a render error in
// the render being built.
type capturedError struct {
	err *errors.RenderError
}

// boundaryState is the memoized state of an error boundary showing its
// fallback.
type boundaryState struct {
	err error
}

func boundaryPropsOf(el *Element) BoundaryProps {
	props, _ := el.Props[propBoundary].(BoundaryProps)
	return props
}

func (r *Reconciler) updateErrorBoundary(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, *thrownValue) {
	el := wip.pendingProps.(*Element)
	props := boundaryPropsOf(el)

	if wip.flags&DidCapture != 0 {
		captured, _ := wip.updateQueue.(*capturedError)
		var err error = errors.New("unknown render error")
		if captured != nil && captured.err != nil {
			err = captured.err
		}
		wip.memoizedState = &boundaryState{err: err}
		wip.flags |= Callback

		fallback, thrown := renderBoundaryFallback(wip, props, err)
		if thrown != nil {
			return nil, thrown
		}
		// Remount from scratch so nothing of the failed tree is reused.
		if current != nil {
			wip.child = r.reconcileChildFibers(wip, current.child, nil, renderLanes, true)
			wip.child = r.reconcileChildFibers(wip, nil, fallback, renderLanes, true)
		} else {
			r.reconcileChildren(nil, wip, fallback, renderLanes)
		}
		return wip.child, nil
	}

	if state, ok := wip.memoizedState.(*boundaryState); ok && state.err != nil {
		fallback, thrown := renderBoundaryFallback(wip, props, state.err)
		if thrown != nil {
			return nil, thrown
		}
		r.reconcileChildren(current, wip, fallback, renderLanes)
		return wip.child, nil
	}
	r.reconcileChildren(current, wip, childrenNode(el.Children), renderLanes)
	return wip.child, nil
}

func renderBoundaryFallback(wip *Fiber, props BoundaryProps, err error) (out Node, thrown *thrownValue) {
	if props.Fallback == nil {
		return nil, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			thrown = &thrownValue{err: renderErrorFrom(wip, errors.PhaseBegin, rec)}
		}
	}()
	return props.Fallback(err), nil
}

// commitCaughtError reports the error an error boundary took over, once its
// fallback is on screen.
func (r *Reconciler) commitCaughtError(root *Root, finished *Fiber) {
	captured, ok := finished.updateQueue.(*capturedError)
	finished.updateQueue = nil
	if !ok || captured.err == nil {
		return
	}
	renderErr := captured.err
	renderErr.Caught = true
	errors.ReportRenderError(renderErr)
	if el, ok := finished.memoizedProps.(*Element); ok {
		if props := boundaryPropsOf(el); props.OnError != nil {
			props.OnError(renderErr)
		}
	}
	if root.opts.OnCaughtError != nil {
		root.opts.OnCaughtError(renderErr, ErrorInfo{Component: renderErr.Component})
	}
}
