package core

import (
	"time"

	"github.com/go-drift/fiber/pkg/scheduler"
)

// Instance is an opaque host node created by a Host.
type Instance any

// Host applies mutations to the host tree. Instances are created, and
// attached to their not yet mounted parents, while a render completes; every
// call that touches the mounted tree happens during commit.
type Host interface {
	CreateInstance(typ string, props Props) Instance
	CreateTextInstance(text string) Instance
	// AppendInitialChild attaches a child to a parent that is not yet in
	// the host tree.
	AppendInitialChild(parent, child Instance)
	AppendChild(parent, child Instance)
	InsertBefore(parent, child, before Instance)
	RemoveChild(parent, child Instance)
	CommitUpdate(instance Instance, typ string, oldProps, newProps Props)
	CommitTextUpdate(instance Instance, oldText, newText string)
	HideInstance(instance Instance)
	// UnhideInstance may be called on an instance that is already visible.
	UnhideInstance(instance Instance)
}

// Scheduler is the cooperative task queue the reconciler runs on.
// *scheduler.Scheduler implements it.
type Scheduler interface {
	ScheduleCallback(p scheduler.Priority, cb scheduler.Callback) *scheduler.Task
	CancelCallback(t *scheduler.Task)
	Now() time.Time
	ShouldYield() bool
	Post(fn func())
}

var _ Scheduler = (*scheduler.Scheduler)(nil)
