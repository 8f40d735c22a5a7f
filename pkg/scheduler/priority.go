package scheduler

import (
	"fmt"
	"time"

	"github.com/go-drift/fiber/pkg/lanes"
)

// Priority is the urgency class of a scheduled task. Lower values run first
// when their expiration times tie.
type Priority uint8

const (
	ImmediatePriority Priority = iota
	UserBlockingPriority
	NormalPriority
	LowPriority
	IdlePriority
)

func (p Priority) String() string {
	switch p {
	case ImmediatePriority:
		return "immediate"
	case UserBlockingPriority:
		return "user-blocking"
	case NormalPriority:
		return "normal"
	case LowPriority:
		return "low"
	case IdlePriority:
		return "idle"
	default:
		return fmt.Sprintf("Priority(%d)", p)
	}
}

// PriorityFor maps a lane urgency to the task priority used to run it.
func PriorityFor(u lanes.Urgency) Priority {
	switch u {
	case lanes.UrgencySync:
		return ImmediatePriority
	case lanes.UrgencyUserBlocking:
		return UserBlockingPriority
	case lanes.UrgencyIdle:
		return IdlePriority
	default:
		return NormalPriority
	}
}

// Timeouts is how long a task of each priority may wait before it is
// considered expired. Expired tasks run without yielding. A negative value
// means the task is expired as soon as it is queued.
type Timeouts struct {
	Immediate    time.Duration
	UserBlocking time.Duration
	Normal       time.Duration
	Low          time.Duration
	Idle         time.Duration
}

// maxTimeout stands in for "never" while keeping time arithmetic in range.
const maxTimeout = (1 << 30) * time.Millisecond

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Immediate:    -time.Millisecond,
		UserBlocking: 250 * time.Millisecond,
		Normal:       5 * time.Second,
		Low:          10 * time.Second,
		Idle:         maxTimeout,
	}
}

func (t Timeouts) forPriority(p Priority) time.Duration {
	switch p {
	case ImmediatePriority:
		return t.Immediate
	case UserBlockingPriority:
		return t.UserBlocking
	case LowPriority:
		return t.Low
	case IdlePriority:
		return t.Idle
	default:
		return t.Normal
	}
}
