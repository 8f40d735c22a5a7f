package core

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-drift/fiber/pkg/lanes"
)

// Thenable is a pending signal a component can suspend on. Then registers
// callbacks for settlement; they may run on any goroutine, and must run
// immediately if the thenable has already settled.
//
// Implementations are stored in sets, so they must be comparable (pointer
// types are).
type Thenable interface {
	Then(onFulfilled func(), onRejected func(error))
}

// PromiseStatus is the settlement state of a Promise.
type PromiseStatus uint8

const (
	PromisePending PromiseStatus = iota
	PromiseFulfilled
	PromiseRejected
)

func (s PromiseStatus) String() string {
	switch s {
	case PromisePending:
		return "pending"
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	default:
		return fmt.Sprintf("PromiseStatus(%d)", uint8(s))
	}
}

type promiseCallback struct {
	onFulfilled func()
	onRejected  func(error)
}

// Promise is a Thenable holding a value of type T. It is safe for concurrent
// use; Resolve and Reject may be called from any goroutine.
type Promise[T any] struct {
	mu        sync.Mutex
	status    PromiseStatus
	value     T
	err       error
	callbacks []promiseCallback
}

// NewPromise returns a pending promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{}
}

// Resolved returns a promise already fulfilled with v.
func Resolved[T any](v T) *Promise[T] {
	return &Promise[T]{status: PromiseFulfilled, value: v}
}

// Resolve fulfills the promise. It reports false if the promise had already
// settled.
func (p *Promise[T]) Resolve(v T) bool {
	p.mu.Lock()
	if p.status != PromisePending {
		p.mu.Unlock()
		return false
	}
	p.status = PromiseFulfilled
	p.value = v
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		if cb.onFulfilled != nil {
			cb.onFulfilled()
		}
	}
	return true
}

// Reject fails the promise. It reports false if the promise had already
// settled.
func (p *Promise[T]) Reject(err error) bool {
	p.mu.Lock()
	if p.status != PromisePending {
		p.mu.Unlock()
		return false
	}
	p.status = PromiseRejected
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		if cb.onRejected != nil {
			cb.onRejected(err)
		}
	}
	return true
}

// Then implements Thenable.
func (p *Promise[T]) Then(onFulfilled func(), onRejected func(error)) {
	p.mu.Lock()
	switch p.status {
	case PromisePending:
		p.callbacks = append(p.callbacks, promiseCallback{onFulfilled, onRejected})
		p.mu.Unlock()
	case PromiseFulfilled:
		p.mu.Unlock()
		if onFulfilled != nil {
			onFulfilled()
		}
	default:
		err := p.err
		p.mu.Unlock()
		if onRejected != nil {
			onRejected(err)
		}
	}
}

// Status returns the current settlement state.
func (p *Promise[T]) Status() PromiseStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Result returns the settled value or error. Both are zero while pending.
func (p *Promise[T]) Result() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

// Await reads a promise during render. When the promise has not settled yet
// the returned node is non-nil and the component must return it:
//
//	user, wait := core.Await(userPromise)
//	if wait != nil {
//	    return wait
//	}
//
// A rejected promise yields a Fail node carrying its error.
func Await[T any](p *Promise[T]) (T, Node) {
	p.mu.Lock()
	status, value, err := p.status, p.value, p.err
	p.mu.Unlock()
	switch status {
	case PromiseFulfilled:
		return value, nil
	case PromiseRejected:
		var zero T
		return zero, Fail(err)
	default:
		var zero T
		return zero, Suspend(p)
	}
}

// SuspenseState is the lifecycle state of a suspense boundary.
type SuspenseState uint8

const (
	// SuspenseUnsuspended shows the primary children.
	SuspenseUnsuspended SuspenseState = iota
	// SuspenseSuspended shows the fallback while signals are pending.
	SuspenseSuspended
	// SuspenseRetrying has a retry render scheduled.
	SuspenseRetrying
)

func (s SuspenseState) String() string {
	switch s {
	case SuspenseUnsuspended:
		return "unsuspended"
	case SuspenseSuspended:
		return "suspended"
	case SuspenseRetrying:
		return "retrying"
	default:
		return fmt.Sprintf("SuspenseState(%d)", uint8(s))
	}
}

// SuspenseRecord is the state a suspense boundary keeps across renders. Both
// fibers of the boundary share one record.
type SuspenseRecord struct {
	state SuspenseState
	// pending holds signals the boundary is still waiting on.
	pending mapset.Set[Thenable]
	// attached holds signals that already have a retry listener.
	attached mapset.Set[Thenable]
	// lanes are the render lanes the boundary suspended at; retries are
	// scheduled at them.
	lanes lanes.Lanes
	// fiber is the committed boundary fiber.
	fiber     *Fiber
	unmounted bool
	retries   int
}

func newSuspenseRecord() *SuspenseRecord {
	return &SuspenseRecord{
		pending:  mapset.NewThreadUnsafeSet[Thenable](),
		attached: mapset.NewThreadUnsafeSet[Thenable](),
	}
}

// State returns the boundary's lifecycle state.
func (s *SuspenseRecord) State() SuspenseState { return s.state }

// Pending returns the number of signals the boundary is waiting on.
func (s *SuspenseRecord) Pending() int { return s.pending.Cardinality() }

// Retries returns how many retry renders the boundary has scheduled.
func (s *SuspenseRecord) Retries() int { return s.retries }

// suspenseTimedOut is the memoized state of a boundary showing its fallback.
type suspenseTimedOut struct{}

// attachRetryListeners subscribes to every signal thrown inside the boundary
// during the render being committed.
func (r *Reconciler) attachRetryListeners(finished *Fiber) {
	record, ok := finished.stateNode.(*SuspenseRecord)
	if !ok {
		return
	}
	record.fiber = finished
	wakeables, _ := finished.updateQueue.(mapset.Set[Thenable])
	finished.updateQueue = nil
	if alt := finished.alternate; alt != nil {
		alt.updateQueue = nil
	}
	if wakeables == nil {
		return
	}
	record.state = SuspenseSuspended
	wakeables.Each(func(w Thenable) bool {
		record.pending.Add(w)
		if record.attached.Contains(w) {
			return false
		}
		record.attached.Add(w)
		w.Then(func() {
			r.sched.Post(func() { r.retrySuspenseBoundary(record, w, nil) })
		}, func(err error) {
			r.sched.Post(func() { r.retrySuspenseBoundary(record, w, err) })
		})
		return false
	})
}

// retrySuspenseBoundary runs on the scheduler goroutine once w settles.
// Rejections retry immediately so the failing component can surface the
// error; fulfilment waits until every pending signal has settled.
func (r *Reconciler) retrySuspenseBoundary(record *SuspenseRecord, w Thenable, err error) {
	record.attached.Remove(w)
	if !record.pending.Contains(w) {
		return
	}
	record.pending.Remove(w)
	if record.unmounted || record.fiber == nil {
		return
	}
	if err == nil && record.pending.Cardinality() > 0 {
		return
	}
	lane := record.lanes
	if lane == lanes.NoLanes {
		lane = r.alloc.ClaimRetry()
	}
	record.state = SuspenseRetrying
	record.retries++
	_ = r.scheduleUpdate(record.fiber, lane, nil)
}

// hideOrUnhideChildren toggles the visibility of the top-level host nodes
// below an offscreen fiber. Nested hidden offscreen subtrees stay hidden.
func hideOrUnhideChildren(host Host, offscreen *Fiber, hide bool) {
	if offscreen == nil {
		return
	}
	for c := offscreen.child; c != nil; c = c.sibling {
		hideOrUnhideFiber(host, c, hide)
	}
}

func hideOrUnhideFiber(host Host, f *Fiber, hide bool) {
	switch f.tag {
	case HostComponent, HostText:
		if hide {
			host.HideInstance(f.stateNode)
		} else {
			host.UnhideInstance(f.stateNode)
		}
		return
	case OffscreenComponent:
		if p, ok := f.memoizedProps.(*offscreenProps); ok && p.mode == offscreenHidden {
			return
		}
	}
	for c := f.child; c != nil; c = c.sibling {
		hideOrUnhideFiber(host, c, hide)
	}
}
