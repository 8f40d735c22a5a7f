package core

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// completeWork finishes a fiber after its children are done. Host fibers
// get their detached instances here; updates are only diffed and flagged,
// the host tree itself is mutated during commit.
func (r *Reconciler) completeWork(root *Root, current, wip *Fiber) *Fiber {
	switch wip.tag {
	case HostComponent:
		el := wip.pendingProps.(*Element)
		typ := el.Type.(string)
		if current != nil && wip.stateNode != nil {
			oldEl := current.memoizedProps.(*Element)
			if oldEl != el && !sameProps(oldEl.Props, el.Props) {
				wip.flags |= Update
			}
			if current.ref != wip.ref {
				wip.flags |= RefFlag
			}
			return nil
		}
		inst := root.host.CreateInstance(typ, el.Props)
		appendAllChildren(root.host, inst, wip)
		wip.stateNode = inst
		if wip.ref != nil {
			wip.flags |= RefFlag
		}
	case HostText:
		text := wip.pendingProps.(string)
		if current != nil && wip.stateNode != nil {
			if old, _ := current.memoizedProps.(string); old != text {
				wip.flags |= Update
			}
			return nil
		}
		wip.stateNode = root.host.CreateTextInstance(text)
	case ContextProvider:
		root.ctxStack.pop(wip.elementType.(*contextBase))
	case SuspenseComponent:
		nextTimedOut := wip.memoizedState != nil
		prevTimedOut := current != nil && current.memoizedState != nil
		if current != nil && nextTimedOut != prevTimedOut {
			wip.flags |= Visibility
		}
		if wakeables, ok := wip.updateQueue.(mapset.Set[Thenable]); ok && wakeables.Cardinality() > 0 {
			wip.flags |= Callback
		} else if prevTimedOut && !nextTimedOut {
			// Settle the record once the primary tree is back.
			wip.flags |= Callback
		}
	}
	return nil
}

// appendAllChildren attaches the top-level host nodes below wip to inst.
func appendAllChildren(host Host, inst Instance, wip *Fiber) {
	for c := wip.child; c != nil; c = c.sibling {
		appendHostNodes(host, inst, c)
	}
}

func appendHostNodes(host Host, inst Instance, f *Fiber) {
	if f.tag == HostComponent || f.tag == HostText {
		host.AppendInitialChild(inst, f.stateNode)
		return
	}
	for c := f.child; c != nil; c = c.sibling {
		appendHostNodes(host, inst, c)
	}
}

// sameProps compares host props shallowly.
func sameProps(a, b Props) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !sameValue(av, bv) {
			return false
		}
	}
	return true
}
