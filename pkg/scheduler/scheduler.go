// Package scheduler provides the cooperative task queue that drives rendering.
//
// The scheduler is single-threaded: every callback runs on the goroutine that
// calls RunSlice, FlushAll, FlushUnits or Run. Post is the only method that is
// safe to call from other goroutines; posted functions are drained on the
// scheduler goroutine before each slice.
package scheduler

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/go-drift/fiber/pkg/errors"
)

// DefaultFrameBudget is how long a slice may run before ShouldYield reports
// true.
const DefaultFrameBudget = 5 * time.Millisecond

// DefaultFrameInterval is how often Run starts a slice while work remains.
const DefaultFrameInterval = 16 * time.Millisecond

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Options configures a Scheduler.
type Options struct {
	// Clock defaults to SystemClock.
	Clock Clock
	// FrameBudget defaults to DefaultFrameBudget.
	FrameBudget time.Duration
	// Timeouts defaults to DefaultTimeouts().
	Timeouts *Timeouts
	// FrameInterval defaults to DefaultFrameInterval.
	FrameInterval time.Duration
}

type yieldMode uint8

const (
	// yieldOnDeadline yields once the frame budget of the slice is spent.
	yieldOnDeadline yieldMode = iota
	// yieldOnUnits yields after a fixed number of ShouldYield checks.
	yieldOnUnits
	// yieldNever runs until the queue is empty.
	yieldNever
)

// Scheduler is a priority queue of cooperative tasks.
type Scheduler struct {
	clock         Clock
	frameBudget   time.Duration
	frameInterval time.Duration
	timeouts      Timeouts

	queue   taskHeap
	nextID  uint64
	current *Task

	mode       yieldMode
	sliceStart time.Time
	unitsLeft  int
	exhausted  bool
	preempt    bool

	postMu sync.Mutex
	posted []func()
	wake   chan struct{}
}

// New creates a scheduler.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		clock:         opts.Clock,
		frameBudget:   opts.FrameBudget,
		frameInterval: opts.FrameInterval,
		timeouts:      DefaultTimeouts(),
		wake:          make(chan struct{}, 1),
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.frameBudget <= 0 {
		s.frameBudget = DefaultFrameBudget
	}
	if s.frameInterval <= 0 {
		s.frameInterval = DefaultFrameInterval
	}
	if opts.Timeouts != nil {
		s.timeouts = *opts.Timeouts
	}
	return s
}

// Now returns the scheduler clock's current time.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// ScheduleCallback queues cb at priority p and returns its handle.
func (s *Scheduler) ScheduleCallback(p Priority, cb Callback) *Task {
	now := s.clock.Now()
	s.nextID++
	t := &Task{
		id:         s.nextID,
		callback:   cb,
		priority:   p,
		start:      now,
		expiration: now.Add(s.timeouts.forPriority(p)),
	}
	heap.Push(&s.queue, t)
	if s.current != nil && p < s.current.priority {
		s.preempt = true
	}
	s.signal()
	return t
}

// CancelCallback removes t from the queue. Cancelling a finished or already
// cancelled task is a no-op.
func (s *Scheduler) CancelCallback(t *Task) {
	if t == nil || t.callback == nil {
		return
	}
	t.callback = nil
	if t != s.current && t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
}

// ShouldYield reports whether the running task should return a continuation
// and give control back to the host.
func (s *Scheduler) ShouldYield() bool {
	if s.preempt {
		return true
	}
	switch s.mode {
	case yieldOnUnits:
		if s.unitsLeft <= 0 {
			s.exhausted = true
			return true
		}
		s.unitsLeft--
		return false
	case yieldNever:
		return false
	default:
		return s.clock.Now().Sub(s.sliceStart) >= s.frameBudget
	}
}

// Post queues fn to run on the scheduler goroutine. It is safe to call from
// any goroutine.
func (s *Scheduler) Post(fn func()) {
	if fn == nil {
		return
	}
	s.postMu.Lock()
	s.posted = append(s.posted, fn)
	s.postMu.Unlock()
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) drainPosted() []func() {
	s.postMu.Lock()
	fns := s.posted
	s.posted = nil
	s.postMu.Unlock()
	return fns
}

func (s *Scheduler) runPosted() {
	for {
		fns := s.drainPosted()
		if len(fns) == 0 {
			return
		}
		for _, fn := range fns {
			s.runPostedFn(fn)
		}
	}
}

func (s *Scheduler) runPostedFn(fn func()) {
	defer errors.Recover("scheduler.Post")
	fn()
}

// HasPendingWork reports whether any task or posted function is waiting.
func (s *Scheduler) HasPendingWork() bool {
	if s.queue.Len() > 0 {
		return true
	}
	s.postMu.Lock()
	defer s.postMu.Unlock()
	return len(s.posted) > 0
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int { return s.queue.Len() }

// RunSlice runs one host macrotask: posted functions first, then tasks in
// order until the frame budget is spent. Expired tasks ignore the budget.
// It reports whether work remains.
func (s *Scheduler) RunSlice() bool {
	s.mode = yieldOnDeadline
	s.sliceStart = s.clock.Now()
	s.runPosted()
	s.workLoop()
	return s.HasPendingWork()
}

// FlushAll runs posted functions and tasks until nothing is left.
func (s *Scheduler) FlushAll() {
	s.mode = yieldNever
	defer func() { s.mode = yieldOnDeadline }()
	for {
		s.runPosted()
		if s.queue.Len() == 0 {
			return
		}
		s.workLoop()
	}
}

// FlushUnits runs tasks until n ShouldYield checks have passed, then stops at
// the next yield point. It gives tests and scenarios deterministic control
// over where a concurrent render is interrupted.
func (s *Scheduler) FlushUnits(n int) {
	s.mode = yieldOnUnits
	s.unitsLeft = n
	s.exhausted = false
	defer func() { s.mode = yieldOnDeadline }()
	for !s.exhausted {
		s.runPosted()
		if s.queue.Len() == 0 {
			return
		}
		s.workLoop()
	}
}

func (s *Scheduler) workLoop() {
	for {
		t := s.queue.peek()
		if t == nil {
			return
		}
		now := s.clock.Now()
		expired := !now.Before(t.expiration)
		if !expired && s.sliceSpent(now) {
			return
		}
		s.runTask(t, expired)
		if s.mode == yieldOnUnits && s.exhausted {
			return
		}
	}
}

// sliceSpent is the between-task yield check. Unlike ShouldYield it does not
// consume units.
func (s *Scheduler) sliceSpent(now time.Time) bool {
	switch s.mode {
	case yieldOnUnits:
		return s.exhausted
	case yieldNever:
		return false
	default:
		return now.Sub(s.sliceStart) >= s.frameBudget
	}
}

func (s *Scheduler) runTask(t *Task, didTimeout bool) {
	cb := t.callback
	s.current = t
	s.preempt = false
	var next Callback
	func() {
		defer errors.Recover("scheduler.runTask")
		next = cb(didTimeout)
	}()
	s.current = nil
	if next != nil && t.callback != nil {
		t.callback = next
		return
	}
	t.callback = nil
	if t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
}

// Run drives the scheduler on the calling goroutine until ctx is done,
// sleeping while there is nothing to do. While tasks remain it starts at most
// one slice per frame interval; posted functions wake it early.
func (s *Scheduler) Run(ctx context.Context) error {
	var frame *time.Timer
	defer func() {
		if frame != nil {
			frame.Stop()
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.RunSlice() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			}
			continue
		}
		gap := s.frameInterval - s.clock.Now().Sub(s.sliceStart)
		if gap <= 0 {
			runtime.Gosched()
			continue
		}
		if frame == nil {
			frame = time.NewTimer(gap)
		} else {
			frame.Reset(gap)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
			frame.Stop()
		case <-frame.C:
		}
	}
}
