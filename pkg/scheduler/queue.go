package scheduler

import "time"

// Callback is the unit of scheduled work. didTimeout reports whether the
// task's expiration time has passed. Returning a non-nil Callback keeps the
// task queued with the returned continuation in place of the original.
type Callback func(didTimeout bool) Callback

// Task is a handle to a scheduled callback.
type Task struct {
	id         uint64
	callback   Callback
	priority   Priority
	start      time.Time
	expiration time.Time
	index      int
}

// ID returns the task's sequence number.
func (t *Task) ID() uint64 { return t.id }

// Priority returns the priority the task was scheduled at.
func (t *Task) Priority() Priority { return t.priority }

// Expiration returns the time after which the task runs without yielding.
func (t *Task) Expiration() time.Time { return t.expiration }

// Cancelled reports whether the task was cancelled or has finished.
func (t *Task) Cancelled() bool { return t.callback == nil }

// taskHeap orders tasks by expiration time, then insertion order.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if !h[i].expiration.Equal(h[j].expiration) {
		return h[i].expiration.Before(h[j].expiration)
	}
	return h[i].id < h[j].id
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

func (h taskHeap) peek() *Task {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
