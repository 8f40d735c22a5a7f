package lanes

import "time"

// Timeouts controls how long pending lanes may wait before they are treated
// as starved and forced to render synchronously. A zero duration means the
// lane never expires.
type Timeouts struct {
	// Blocking applies to the sync and input-continuous lanes.
	Blocking time.Duration
	// Normal applies to the default and transition lanes.
	Normal time.Duration
	// Retry applies to retry lanes.
	Retry time.Duration
	// Idle applies to idle and offscreen lanes.
	Idle time.Duration
}

// DefaultTimeouts returns the expiration policy used when none is configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Blocking: 250 * time.Millisecond,
		Normal:   5 * time.Second,
	}
}

func (t Timeouts) forLane(lane Lane) time.Duration {
	switch {
	case lane == SyncLane, lane == InputContinuousLane:
		return t.Blocking
	case lane == DefaultLane, IsTransitionLane(lane):
		return t.Normal
	case IsRetryLane(lane):
		return t.Retry
	default:
		return t.Idle
	}
}

// Tracker holds the lane bookkeeping of a single root.
type Tracker struct {
	timeouts Timeouts

	pending   Lanes
	suspended Lanes
	pinged    Lanes
	expired   Lanes
	entangled Lanes

	entanglements   [TotalLanes]Lanes
	expirationTimes [TotalLanes]time.Time
}

// NewTracker returns an empty tracker using the given expiration policy.
func NewTracker(timeouts Timeouts) *Tracker {
	return &Tracker{timeouts: timeouts}
}

// Pending returns every lane with queued work.
func (t *Tracker) Pending() Lanes { return t.pending }

// Suspended returns the pending lanes whose last render suspended.
func (t *Tracker) Suspended() Lanes { return t.suspended }

// Pinged returns suspended lanes whose data has since arrived.
func (t *Tracker) Pinged() Lanes { return t.pinged }

// Expired returns the pending lanes that have starved.
func (t *Tracker) Expired() Lanes { return t.expired }

// ExpirationTime returns the deadline recorded for lane, if any.
func (t *Tracker) ExpirationTime(lane Lane) (time.Time, bool) {
	at := t.expirationTimes[Index(lane)]
	return at, !at.IsZero()
}

// MarkUpdated records a new update at lane. A non-idle update may unblock
// previously suspended lanes, so suspension bookkeeping is reset.
func (t *Tracker) MarkUpdated(lane Lane) {
	t.pending |= lane
	if lane != IdleLane {
		t.suspended = NoLanes
		t.pinged = NoLanes
	}
}

// MarkSuspended records that a render of lanes suspended with nothing to show.
// Suspended lanes do not expire while waiting for data.
func (t *Tracker) MarkSuspended(lanes Lanes) {
	t.suspended |= lanes
	t.pinged &^= lanes
	lanes.Each(func(lane Lane) {
		t.expirationTimes[Index(lane)] = time.Time{}
	})
}

// MarkPinged records that data for some suspended lanes has arrived.
func (t *Tracker) MarkPinged(lanes Lanes) {
	t.pinged |= t.suspended & lanes
}

// MarkFinished is called after a commit with the lanes still pending on the
// committed tree.
func (t *Tracker) MarkFinished(remaining Lanes) {
	noLongerPending := t.pending &^ remaining
	t.pending = remaining
	t.suspended = NoLanes
	t.pinged = NoLanes
	t.expired &= remaining
	t.entangled &= remaining
	noLongerPending.Each(func(lane Lane) {
		i := Index(lane)
		t.entanglements[i] = NoLanes
		t.expirationTimes[i] = time.Time{}
	})
}

// MarkEntangled ties lanes together so that rendering any of them also
// renders the others.
func (t *Tracker) MarkEntangled(lanes Lanes) {
	t.entangled |= lanes
	t.entangled.Each(func(lane Lane) {
		i := Index(lane)
		if lane&lanes != 0 || t.entanglements[i]&lanes != 0 {
			t.entanglements[i] |= lanes
		}
	})
}

// Entangled returns lanes plus every lane entangled with one of them.
func (t *Tracker) Entangled(lanes Lanes) Lanes {
	result := lanes
	(t.entangled & lanes).Each(func(lane Lane) {
		result |= t.entanglements[Index(lane)]
	})
	return result
}

// MarkStarvedAsExpired stamps a deadline on every pending lane that lacks one
// and moves lanes whose deadline has passed into the expired set.
func (t *Tracker) MarkStarvedAsExpired(now time.Time) {
	(t.pending &^ t.expired).Each(func(lane Lane) {
		i := Index(lane)
		at := t.expirationTimes[i]
		if at.IsZero() {
			if lane&t.suspended == 0 || lane&t.pinged != 0 {
				if d := t.timeouts.forLane(lane); d > 0 {
					t.expirationTimes[i] = now.Add(d)
				}
			}
			return
		}
		if !now.Before(at) {
			t.expired |= lane
		}
	})
}

// IncludesExpired reports whether lanes contains a starved lane.
func (t *Tracker) IncludesExpired(lanes Lanes) bool {
	return t.expired&lanes != 0
}

// NextLanes picks the lanes the root should render next, given the lanes of
// the render currently in progress (NoLanes when idle). Interrupting the
// in-progress render is only worthwhile for strictly more urgent work.
func (t *Tracker) NextLanes(wip Lanes) Lanes {
	if t.pending == NoLanes {
		return NoLanes
	}

	next := NoLanes
	nonIdle := t.pending & NonIdleLanes
	if nonIdle != NoLanes {
		if unblocked := nonIdle &^ t.suspended; unblocked != NoLanes {
			next = HighestPriorityLanes(unblocked)
		} else if pinged := nonIdle & t.pinged; pinged != NoLanes {
			next = HighestPriorityLanes(pinged)
		}
	} else {
		if unblocked := t.pending &^ t.suspended; unblocked != NoLanes {
			next = HighestPriorityLanes(unblocked)
		} else if t.pinged != NoLanes {
			next = HighestPriorityLanes(t.pinged)
		}
	}
	next |= t.expired & t.pending
	if next == NoLanes {
		return NoLanes
	}

	if wip != NoLanes && wip != next && wip&t.suspended == NoLanes {
		nextLane := next.Highest()
		wipLane := wip.Highest()
		if nextLane >= wipLane || (nextLane == DefaultLane && IsTransitionLane(wipLane)) {
			return wip
		}
	}

	return t.Entangled(next)
}
