package core

import (
	"fmt"
	"time"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// childReconciler diffs one parent's child list. When trackSideEffects is
// false (first mount of the parent) no placement or deletion is recorded:
// the whole subtree is inserted at once by its nearest placed ancestor.
type childReconciler struct {
	trackSideEffects bool
	renderLanes      lanes.Lanes
}

func (r *Reconciler) reconcileChildren(current, wip *Fiber, next Node, renderLanes lanes.Lanes) {
	if current == nil {
		wip.child = r.reconcileChildFibers(wip, nil, next, renderLanes, false)
		return
	}
	wip.child = r.reconcileChildFibers(wip, current.child, next, renderLanes, true)
}

func (r *Reconciler) reconcileChildFibers(parent, currentFirst *Fiber, next Node, renderLanes lanes.Lanes, track bool) *Fiber {
	cr := &childReconciler{trackSideEffects: track, renderLanes: renderLanes}
	return cr.reconcile(parent, currentFirst, next)
}

func (cr *childReconciler) reconcile(parent, currentFirst *Fiber, next Node) *Fiber {
	// An unkeyed fragment at the top of the list stands for its children.
	if el, ok := next.(*Element); ok && el.Key == "" && el.Type == Fragment {
		next = childrenNode(el.Children)
	}

	switch v := next.(type) {
	case nil:
	case *Element:
		return cr.placeSingleChild(cr.reconcileSingleElement(parent, currentFirst, v))
	case []Node:
		return cr.reconcileChildrenArray(parent, currentFirst, v)
	case bool:
	default:
		if text, ok := textOf(v); ok {
			return cr.placeSingleChild(cr.reconcileSingleTextNode(parent, currentFirst, text))
		}
		reportInvalidChild(parent, v)
	}
	cr.deleteRemainingChildren(parent, currentFirst)
	return nil
}

func reportInvalidChild(parent *Fiber, v any) {
	errors.ReportDiagnostic(&errors.Diagnostic{
		Code:      "invalid-child",
		Message:   fmt.Sprintf("%T is not a valid child and was ignored", v),
		Component: typeName(parent.elementType),
		Timestamp: time.Now(),
	})
}

func (cr *childReconciler) deleteChild(parent, child *Fiber) {
	if !cr.trackSideEffects {
		return
	}
	child.nextEffect = nil
	child.flags = Deletion
	if parent.lastEffect != nil {
		parent.lastEffect.nextEffect = child
		parent.lastEffect = child
	} else {
		parent.firstEffect = child
		parent.lastEffect = child
	}
}

func (cr *childReconciler) deleteRemainingChildren(parent, first *Fiber) {
	if !cr.trackSideEffects {
		return
	}
	for child := first; child != nil; child = child.sibling {
		cr.deleteChild(parent, child)
	}
}

func (cr *childReconciler) placeSingleChild(f *Fiber) *Fiber {
	if cr.trackSideEffects && f.alternate == nil {
		f.flags |= Placement
	}
	return f
}

// useFiber returns the work-in-progress alternate of f for reuse.
func useFiber(f *Fiber, pendingProps any) *Fiber {
	clone := createWorkInProgress(f, pendingProps)
	clone.index = 0
	clone.sibling = nil
	return clone
}

func matchesElement(f *Fiber, el *Element) bool {
	if f.tag == HostText {
		return false
	}
	return sameType(f.elementType, el.Type)
}

func (cr *childReconciler) reconcileSingleElement(parent, currentFirst *Fiber, el *Element) *Fiber {
	for child := currentFirst; child != nil; child = child.sibling {
		if child.key != el.Key {
			cr.deleteChild(parent, child)
			continue
		}
		if matchesElement(child, el) {
			cr.deleteRemainingChildren(parent, child.sibling)
			existing := useFiber(child, el)
			existing.elementType = el.Type
			existing.ref = el.Ref
			existing.parent = parent
			return existing
		}
		cr.deleteRemainingChildren(parent, child)
		break
	}
	created := createFiberFromElement(el, cr.renderLanes)
	created.parent = parent
	return created
}

func (cr *childReconciler) reconcileSingleTextNode(parent, currentFirst *Fiber, text string) *Fiber {
	if currentFirst != nil && currentFirst.tag == HostText {
		cr.deleteRemainingChildren(parent, currentFirst.sibling)
		existing := useFiber(currentFirst, text)
		existing.parent = parent
		return existing
	}
	cr.deleteRemainingChildren(parent, currentFirst)
	created := createFiberFromText(text, cr.renderLanes)
	created.parent = parent
	return created
}

// childKey is the identity of a child within its list. Keyed children match
// by key anywhere in the list; unkeyed ones match by index.
func childKey(n Node) string {
	if el, ok := n.(*Element); ok {
		return el.Key
	}
	return ""
}

func (cr *childReconciler) updateSlot(parent, old *Fiber, n Node, key string) *Fiber {
	oldKey := ""
	if old != nil {
		oldKey = old.key
	}
	switch v := n.(type) {
	case *Element:
		if key != oldKey {
			return nil
		}
		return cr.updateElement(parent, old, v, key)
	case []Node:
		if oldKey != "" {
			return nil
		}
		return cr.updateFragment(parent, old, v, "")
	case nil, bool:
		return nil
	default:
		text, ok := textOf(v)
		if !ok || oldKey != "" {
			return nil
		}
		return cr.updateTextNode(parent, old, text)
	}
}

func (cr *childReconciler) updateElement(parent, current *Fiber, el *Element, key string) *Fiber {
	if current != nil && matchesElement(current, el) {
		existing := useFiber(current, el)
		existing.elementType = el.Type
		existing.ref = el.Ref
		existing.parent = parent
		return existing
	}
	created := createFiberFromElement(el, cr.renderLanes)
	created.key = key
	created.parent = parent
	return created
}

func (cr *childReconciler) updateTextNode(parent, current *Fiber, text string) *Fiber {
	if current == nil || current.tag != HostText {
		created := createFiberFromText(text, cr.renderLanes)
		created.parent = parent
		return created
	}
	existing := useFiber(current, text)
	existing.parent = parent
	return existing
}

func (cr *childReconciler) updateFragment(parent, current *Fiber, children []Node, key string) *Fiber {
	el := &Element{Type: Fragment, Children: children}
	if current == nil || current.tag != FragmentTag {
		created := createFiberFromFragment(el, cr.renderLanes, key)
		created.parent = parent
		return created
	}
	existing := useFiber(current, el)
	existing.parent = parent
	return existing
}

func (cr *childReconciler) createChild(parent *Fiber, n Node, key string) *Fiber {
	switch v := n.(type) {
	case *Element:
		created := createFiberFromElement(v, cr.renderLanes)
		created.key = key
		created.parent = parent
		return created
	case []Node:
		created := createFiberFromFragment(&Element{Type: Fragment, Children: v}, cr.renderLanes, "")
		created.parent = parent
		return created
	case nil, bool:
		return nil
	default:
		text, ok := textOf(v)
		if !ok {
			reportInvalidChild(parent, v)
			return nil
		}
		created := createFiberFromText(text, cr.renderLanes)
		created.parent = parent
		return created
	}
}

func (cr *childReconciler) updateFromMap(existing map[string]*Fiber, parent *Fiber, newIdx int, n Node, key string) *Fiber {
	switch v := n.(type) {
	case *Element:
		return cr.updateElement(parent, existing[mapKey(key, newIdx)], v, key)
	case []Node:
		return cr.updateFragment(parent, existing[mapKey("", newIdx)], v, "")
	case nil, bool:
		return nil
	default:
		text, ok := textOf(v)
		if !ok {
			reportInvalidChild(parent, v)
			return nil
		}
		return cr.updateTextNode(parent, existing[mapKey("", newIdx)], text)
	}
}

func mapKey(key string, index int) string {
	if key != "" {
		return "k:" + key
	}
	return fmt.Sprintf("i:%d", index)
}

// effectiveKeys returns the key of each child, blanking every repeat of a
// key already used by an earlier sibling.
func effectiveKeys(parent *Fiber, children []Node) []string {
	keys := make([]string, len(children))
	var seen map[string]struct{}
	for i, n := range children {
		key := childKey(n)
		if key == "" {
			continue
		}
		if seen == nil {
			seen = make(map[string]struct{}, len(children))
		}
		if _, dup := seen[key]; dup {
			errors.ReportDiagnostic(&errors.Diagnostic{
				Code:      "duplicate-key",
				Message:   fmt.Sprintf("key %q is used by more than one child; the child at index %d is treated as unkeyed", key, i),
				Component: typeName(parent.elementType),
				Timestamp: time.Now(),
			})
			continue
		}
		seen[key] = struct{}{}
		keys[i] = key
	}
	return keys
}

// reconcileChildrenArray diffs a child list. Children are first matched
// pairwise from the start; the rest are matched through a map of the
// remaining old children. Reused children that are not part of the longest
// run of children already in old order are flagged as moves.
func (cr *childReconciler) reconcileChildrenArray(parent, currentFirst *Fiber, children []Node) *Fiber {
	keys := effectiveKeys(parent, children)

	var first, prev *Fiber
	var placed []*Fiber
	link := func(f *Fiber, index int) {
		f.index = index
		if prev == nil {
			first = f
		} else {
			prev.sibling = f
		}
		prev = f
		placed = append(placed, f)
	}

	oldFiber := currentFirst
	newIdx := 0
	for ; oldFiber != nil && newIdx < len(children); newIdx++ {
		var nextOld *Fiber
		if oldFiber.index > newIdx {
			nextOld = oldFiber
			oldFiber = nil
		} else {
			nextOld = oldFiber.sibling
		}
		f := cr.updateSlot(parent, oldFiber, children[newIdx], keys[newIdx])
		if f == nil {
			if oldFiber == nil {
				oldFiber = nextOld
			}
			break
		}
		if cr.trackSideEffects && oldFiber != nil && f.alternate == nil {
			cr.deleteChild(parent, oldFiber)
		}
		link(f, newIdx)
		oldFiber = nextOld
	}

	if newIdx == len(children) {
		cr.deleteRemainingChildren(parent, oldFiber)
	} else if oldFiber == nil {
		for ; newIdx < len(children); newIdx++ {
			if f := cr.createChild(parent, children[newIdx], keys[newIdx]); f != nil {
				link(f, newIdx)
			}
		}
	} else {
		existing := make(map[string]*Fiber)
		for f := oldFiber; f != nil; f = f.sibling {
			existing[mapKey(f.key, f.index)] = f
		}
		for ; newIdx < len(children); newIdx++ {
			f := cr.updateFromMap(existing, parent, newIdx, children[newIdx], keys[newIdx])
			if f == nil {
				continue
			}
			if f.alternate != nil {
				delete(existing, mapKey(f.alternate.key, f.alternate.index))
			}
			link(f, newIdx)
		}
		if cr.trackSideEffects {
			for f := oldFiber; f != nil; f = f.sibling {
				if _, left := existing[mapKey(f.key, f.index)]; left {
					cr.deleteChild(parent, f)
				}
			}
		}
	}
	if prev != nil {
		prev.sibling = nil
	}

	cr.markPlacements(placed)
	return first
}

// markPlacements flags new children, and reused children that moved
// relative to the longest increasing run of their old positions.
func (cr *childReconciler) markPlacements(placed []*Fiber) {
	if !cr.trackSideEffects {
		return
	}
	oldIndices := make([]int, len(placed))
	for i, f := range placed {
		if f.alternate == nil {
			oldIndices[i] = -1
		} else {
			oldIndices[i] = f.alternate.index
		}
	}
	stable := longestIncreasingSubsequence(oldIndices)
	for i, f := range placed {
		if oldIndices[i] < 0 || !stable[i] {
			f.flags |= Placement
		}
	}
}

// longestIncreasingSubsequence marks the members of one longest strictly
// increasing subsequence of seq, ignoring negative entries.
func longestIncreasingSubsequence(seq []int) []bool {
	in := make([]bool, len(seq))
	// tails[k] is the position in seq of the smallest tail of an increasing
	// run of length k+1.
	tails := make([]int, 0, len(seq))
	prevOf := make([]int, len(seq))
	for i, v := range seq {
		if v < 0 {
			continue
		}
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prevOf[i] = tails[lo-1]
		} else {
			prevOf[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	if len(tails) == 0 {
		return in
	}
	for i := tails[len(tails)-1]; i >= 0; i = prevOf[i] {
		in[i] = true
	}
	return in
}
