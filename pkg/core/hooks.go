package core

import (
	"fmt"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// maxRenderPhaseUpdates bounds how often a component may re-run because it
// updated its own state while rendering.
const maxRenderPhaseUpdates = 25

// Ctx is handed to a component while it renders. Hooks read and record
// per-fiber state through it. A Ctx is only valid during the render call it
// was passed to.
type Ctx struct {
	r           *Reconciler
	root        *Root
	fiber       *Fiber
	current     *Fiber
	renderLanes lanes.Lanes

	hooks        []*hook
	currentHooks []*hook
	// prevAttempt holds the hooks of the previous pass when a render-phase
	// update forces the component to run again.
	prevAttempt []*hook
	hookIndex   int
	effects     []*effect

	renderPhaseUpdate bool
}

// Fiber returns the fiber being rendered.
func (c *Ctx) Fiber() *Fiber { return c.fiber }

// Reconciler returns the reconciler rendering the component.
func (c *Ctx) Reconciler() *Reconciler { return c.r }

// RenderLanes returns the lanes of the render in progress.
func (c *Ctx) RenderLanes() lanes.Lanes { return c.renderLanes }

type hookKind uint8

const (
	hookRoot hookKind = iota
	hookState
	hookReducer
	hookEffect
	hookRef
	hookMemo
)

func (k hookKind) String() string {
	switch k {
	case hookRoot:
		return "root"
	case hookState:
		return "UseState"
	case hookReducer:
		return "UseReducer"
	case hookEffect:
		return "effect"
	case hookRef:
		return "UseRef"
	case hookMemo:
		return "UseMemo"
	default:
		return fmt.Sprintf("hookKind(%d)", uint8(k))
	}
}

type hook struct {
	kind          hookKind
	memoizedState any
	baseState     any
	// baseQueue is the last update of a circular list of updates skipped by
	// an earlier render (or not yet processed).
	baseQueue *update
	queue     *hookQueue
	effect    *effect
	deps      []any
}

type update struct {
	lane          lanes.Lane
	action        any
	hasEagerState bool
	eagerState    any
	next          *update
}

// hookQueue is shared by both fibers of a position so updates survive a
// discarded render.
type hookQueue struct {
	// pending is the last update of a circular list.
	pending           *update
	reducer           func(state, action any) any
	lastRenderedState any
	eager             bool
	fiber             *Fiber
	dispatch          any
}

func (q *hookQueue) enqueue(u *update) {
	if q.pending == nil {
		u.next = u
	} else {
		u.next = q.pending.next
		q.pending.next = u
	}
	q.pending = u
}

func replaceReducer(_, action any) any { return action }

type hookOrderError struct {
	component string
	msg       string
}

func (e *hookOrderError) Error() string {
	return fmt.Sprintf("%v in %s: %s", errors.ErrHookOrder, e.component, e.msg)
}

func (e *hookOrderError) Unwrap() error { return errors.ErrHookOrder }

func (c *Ctx) nextHook(kind hookKind) (h *hook, cur *hook) {
	if c.r.rendering != c {
		panic("core: hooks may only be called while the component renders")
	}
	prev := c.currentHooks
	if c.prevAttempt != nil {
		prev = c.prevAttempt
	}
	if c.current != nil || c.prevAttempt != nil {
		if c.hookIndex >= len(prev) {
			panic(&hookOrderError{component: typeName(c.fiber.elementType), msg: "rendered more hooks than during the previous render"})
		}
		cur = prev[c.hookIndex]
		if cur.kind != kind {
			panic(&hookOrderError{
				component: typeName(c.fiber.elementType),
				msg:       fmt.Sprintf("hook %d changed from %s to %s", c.hookIndex, cur.kind, kind),
			})
		}
		h = &hook{
			kind:          kind,
			memoizedState: cur.memoizedState,
			baseState:     cur.baseState,
			baseQueue:     cur.baseQueue,
			queue:         cur.queue,
			deps:          cur.deps,
		}
	} else {
		h = &hook{kind: kind}
	}
	c.hooks = append(c.hooks, h)
	c.hookIndex++
	return h, cur
}

// committedHook returns the committed counterpart of the hook most recently
// returned by nextHook.
func (c *Ctx) committedHook() *hook {
	i := c.hookIndex - 1
	if c.current == nil || i < 0 || i >= len(c.currentHooks) {
		return nil
	}
	return c.currentHooks[i]
}

// Setter updates a state hook. Its identity is stable across renders.
type Setter[T any] struct {
	r *Reconciler
	q *hookQueue
}

// Set replaces the state with v.
func (s *Setter[T]) Set(v T) {
	s.r.dispatchAction(s.q, v)
}

// Update replaces the state with fn applied to the latest state.
func (s *Setter[T]) Update(fn func(T) T) {
	s.r.dispatchAction(s.q, stateUpdater(func(prev any) any { return fn(valueAs[T](prev)) }))
}

type stateUpdater func(prev any) any

func basicStateReducer(state, action any) any {
	if fn, ok := action.(stateUpdater); ok {
		return fn(state)
	}
	return action
}

// UseState returns the component's state and a setter for it. initial is
// used on the first render only.
//
// Example:
//
//	func Counter(c *core.Ctx, _ core.Props) core.Node {
//	    count, setCount := core.UseState(c, 0)
//	    core.UseEffect(c, func() func() {
//	        setCount.Update(func(n int) int { return n + 1 })
//	        return nil
//	    }, []any{})
//	    return core.H("span", nil, count)
//	}
func UseState[T any](c *Ctx, initial T) (T, *Setter[T]) {
	h, cur := c.nextHook(hookState)
	if cur == nil {
		q := &hookQueue{reducer: basicStateReducer, eager: true, fiber: c.fiber, lastRenderedState: initial}
		q.dispatch = &Setter[T]{r: c.r, q: q}
		h.queue = q
		h.memoizedState = initial
		h.baseState = initial
	} else {
		c.updateReducer(h, cur, basicStateReducer)
	}
	return valueAs[T](h.memoizedState), h.queue.dispatch.(*Setter[T])
}

// UseReducer manages state through reducer. The returned dispatch function
// is stable across renders.
func UseReducer[S, A any](c *Ctx, reducer func(S, A) S, initial S) (S, func(A)) {
	h, cur := c.nextHook(hookReducer)
	untyped := func(state, action any) any {
		return reducer(valueAs[S](state), valueAs[A](action))
	}
	if cur == nil {
		q := &hookQueue{reducer: untyped, fiber: c.fiber, lastRenderedState: initial}
		r := c.r
		q.dispatch = func(a A) { r.dispatchAction(q, a) }
		h.queue = q
		h.memoizedState = initial
		h.baseState = initial
	} else {
		c.updateReducer(h, cur, untyped)
	}
	return valueAs[S](h.memoizedState), h.queue.dispatch.(func(A))
}

// updateReducer folds queued updates into h. Updates whose lane is not being
// rendered are kept, in order, on the base queue together with everything
// after them, and their lanes are left on the fiber.
func (c *Ctx) updateReducer(h, cur *hook, reducer func(state, action any) any) {
	q := h.queue
	q.reducer = reducer

	if c.prevAttempt != nil {
		c.rerenderReducer(h, reducer)
		return
	}

	changed := processUpdateQueue(h, cur, reducer, c.renderLanes, c.fiber)
	if changed {
		c.root.didReceiveUpdate = true
	}
	q.lastRenderedState = h.memoizedState
}

// rerenderReducer applies render-phase updates on top of the previous pass.
func (c *Ctx) rerenderReducer(h *hook, reducer func(state, action any) any) {
	q := h.queue
	last := q.pending
	if last == nil {
		return
	}
	q.pending = nil
	state := h.memoizedState
	u := last.next
	for {
		state = reducer(state, u.action)
		if u == last {
			break
		}
		u = u.next
	}
	if !sameValue(state, h.memoizedState) {
		c.root.didReceiveUpdate = true
	}
	h.memoizedState = state
	if h.baseQueue == nil {
		h.baseState = state
	}
	q.lastRenderedState = state
}

// processUpdateQueue is the base-queue algorithm shared by state hooks and
// the root. It reports whether the resulting state differs from the
// previously memoized one.
func processUpdateQueue(h, cur *hook, reducer func(state, action any) any, renderLanes lanes.Lanes, fiber *Fiber) bool {
	q := h.queue
	baseQueue := cur.baseQueue
	if pending := q.pending; pending != nil {
		if baseQueue != nil {
			baseFirst := baseQueue.next
			pendingFirst := pending.next
			baseQueue.next = pendingFirst
			pending.next = baseFirst
		}
		// Keep the merged list on the committed hook so a discarded render
		// cannot lose updates.
		cur.baseQueue = pending
		baseQueue = pending
		q.pending = nil
	}
	if baseQueue == nil {
		return false
	}

	first := baseQueue.next
	state := cur.baseState
	var newBaseState any
	var newBaseFirst, newBaseLast *update
	u := first
	for {
		if !renderLanes.Has(u.lane) {
			clone := &update{lane: u.lane, action: u.action, hasEagerState: u.hasEagerState, eagerState: u.eagerState}
			if newBaseLast == nil {
				newBaseFirst, newBaseLast = clone, clone
				newBaseState = state
			} else {
				newBaseLast.next = clone
				newBaseLast = clone
			}
			fiber.lanes |= u.lane
		} else {
			if newBaseLast != nil {
				clone := &update{lane: lanes.NoLane, action: u.action, hasEagerState: u.hasEagerState, eagerState: u.eagerState}
				newBaseLast.next = clone
				newBaseLast = clone
			}
			if u.hasEagerState {
				state = u.eagerState
			} else {
				state = reducer(state, u.action)
			}
		}
		u = u.next
		if u == nil || u == first {
			break
		}
	}
	if newBaseLast == nil {
		newBaseState = state
	} else {
		newBaseLast.next = newBaseFirst
	}

	changed := !sameValue(state, h.memoizedState)
	h.memoizedState = state
	h.baseState = newBaseState
	h.baseQueue = newBaseLast
	return changed
}

// dispatchAction queues action on q and schedules the owning fiber.
func (r *Reconciler) dispatchAction(q *hookQueue, action any) {
	if c := r.rendering; c != nil && (c.fiber == q.fiber || (c.fiber.alternate != nil && c.fiber.alternate == q.fiber)) {
		c.renderPhaseUpdate = true
		q.enqueue(&update{lane: c.renderLanes.Highest(), action: action})
		return
	}

	lane := r.RequestUpdateLane()
	u := &update{lane: lane, action: action}
	f := q.fiber
	if q.eager && f.lanes == lanes.NoLanes && (f.alternate == nil || f.alternate.lanes == lanes.NoLanes) {
		if eager, ok := tryReduce(q.reducer, q.lastRenderedState, action); ok {
			u.hasEagerState = true
			u.eagerState = eager
			if sameValue(eager, q.lastRenderedState) {
				q.enqueue(u)
				return
			}
		}
	}
	_ = r.scheduleUpdate(f, lane, func() { q.enqueue(u) })
}

func tryReduce(reducer func(state, action any) any, state, action any) (result any, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return reducer(state, action), true
}

type effectKind uint8

const (
	effectPassive effectKind = iota
	effectLayout
	effectSnapshot
)

type effect struct {
	kind   effectKind
	create func() func()
	deps   []any
	// fire is set when the effect runs in the commit of this render.
	fire bool
	inst *effectInstance
}

// effectInstance outlives renders and holds the cleanup of the last run.
type effectInstance struct {
	destroy func()
}

func (c *Ctx) useEffect(kind effectKind, create func() func(), deps []any) {
	h, _ := c.nextHook(hookEffect)
	e := &effect{kind: kind, create: create, deps: deps, fire: true}
	// Compare against the committed render, not an earlier pass of this one.
	if committed := c.committedHook(); committed != nil && committed.effect != nil {
		prev := committed.effect
		e.inst = prev.inst
		if deps != nil && depsEqual(deps, prev.deps) {
			e.fire = false
		}
	} else {
		e.inst = &effectInstance{}
	}
	if kind == effectSnapshot && c.current == nil {
		e.fire = false
	}
	h.effect = e
	c.effects = append(c.effects, e)
	if !e.fire {
		return
	}
	switch kind {
	case effectPassive:
		c.fiber.flags |= Passive
	case effectLayout:
		c.fiber.flags |= Layout
	case effectSnapshot:
		c.fiber.flags |= Snapshot
	}
}

// UseEffect runs create after the commit has been painted, and the function
// it returns before the next run or on unmount. A nil deps runs the effect
// after every commit; an empty slice runs it once.
func UseEffect(c *Ctx, create func() func(), deps []any) {
	c.useEffect(effectPassive, create, deps)
}

// UseLayoutEffect is like UseEffect but runs synchronously during commit,
// after host mutations and before the commit returns.
func UseLayoutEffect(c *Ctx, create func() func(), deps []any) {
	c.useEffect(effectLayout, create, deps)
}

// UseSnapshot runs fn during commit before any host mutation of an update,
// so it can read the host tree as it was. It does not run on mount.
func UseSnapshot(c *Ctx, fn func(), deps []any) {
	c.useEffect(effectSnapshot, func() func() { fn(); return nil }, deps)
}

// UseRef returns a ref whose identity is stable for the component's life.
func UseRef(c *Ctx, initial any) *Ref {
	h, cur := c.nextHook(hookRef)
	if cur == nil {
		h.memoizedState = &Ref{Current: initial}
	}
	return h.memoizedState.(*Ref)
}

// UseMemo returns compute's result, recomputing it only when deps change.
func UseMemo[T any](c *Ctx, compute func() T, deps []any) T {
	h, cur := c.nextHook(hookMemo)
	if cur != nil && deps != nil && depsEqual(deps, cur.deps) {
		return valueAs[T](h.memoizedState)
	}
	v := compute()
	h.memoizedState = v
	h.deps = deps
	return v
}

// readContext records a dependency of the rendering fiber on ctx.
func (c *Ctx) readContext(ctx *contextBase) any {
	if c.r.rendering != c {
		panic("core: UseContext may only be called while the component renders")
	}
	deps := c.fiber.dependencies
	if deps == nil {
		deps = &dependencies{}
		c.fiber.dependencies = deps
	}
	found := false
	for _, d := range deps.contexts {
		if d == ctx {
			found = true
			break
		}
	}
	if !found {
		deps.contexts = append(deps.contexts, ctx)
	}
	return c.root.ctxStack.read(ctx)
}

func depsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

func effectsOf(f *Fiber) []*effect {
	effects, _ := f.updateQueue.([]*effect)
	return effects
}
