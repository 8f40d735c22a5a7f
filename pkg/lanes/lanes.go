// Package lanes implements the priority model used by the reconciler.
//
// A Lane is a single bit in a 31-bit mask; a Lanes value is any set of them.
// Lower bits are more urgent, so the most urgent lane in a set is its lowest
// set bit. Multiple independent updates may share one lane, and a render
// pass always processes a whole set of lanes at once.
package lanes

import (
	"fmt"
	"math/bits"
	"strings"

	"fortio.org/safecast"
)

// Lanes is a set of priority lanes.
type Lanes uint32

// Lane is a Lanes value with exactly one bit set.
type Lane = Lanes

// TotalLanes is the number of usable lane bits.
const TotalLanes = 31

const (
	NoLanes Lanes = 0
	NoLane  Lane  = 0

	SyncLane            Lane = 1 << 0
	InputContinuousLane Lane = 1 << 2
	DefaultLane         Lane = 1 << 4

	TransitionLane1 Lane  = 1 << 6
	TransitionLanes Lanes = 0b11111111 << 6

	RetryLane1 Lane  = 1 << 14
	RetryLanes Lanes = 0b1111 << 14

	IdleLane      Lane = 1 << 28
	OffscreenLane Lane = 1 << 30

	// NonIdleLanes covers everything more urgent than IdleLane.
	NonIdleLanes Lanes = IdleLane - 1

	blockingLanes Lanes = SyncLane | InputContinuousLane | DefaultLane
)

// Merge returns the union of a and b.
func Merge(a, b Lanes) Lanes { return a | b }

// Has reports whether every lane of sub is in l.
func (l Lanes) Has(sub Lanes) bool { return l&sub == sub }

// Intersects reports whether l and other share a lane.
func (l Lanes) Intersects(other Lanes) bool { return l&other != 0 }

// Intersect returns the lanes present in both sets.
func (l Lanes) Intersect(other Lanes) Lanes { return l & other }

// Remove returns l without the lanes in other.
func (l Lanes) Remove(other Lanes) Lanes { return l &^ other }

// Empty reports whether the set is empty.
func (l Lanes) Empty() bool { return l == NoLanes }

// Highest returns the most urgent lane in the set, or NoLane.
func (l Lanes) Highest() Lane { return l & -l }

// Count returns the number of lanes in the set.
func (l Lanes) Count() int { return bits.OnesCount32(uint32(l)) }

// Each calls fn for each lane in the set, most urgent first.
func (l Lanes) Each(fn func(lane Lane)) {
	for l != 0 {
		lane := l.Highest()
		fn(lane)
		l &^= lane
	}
}

// Index returns the bit index of a single lane.
func Index(lane Lane) int { return bits.TrailingZeros32(uint32(lane)) }

// FromIndex returns the lane at bit index i.
func FromIndex(i int) (Lane, error) {
	if i < 0 || i >= TotalLanes {
		return NoLane, fmt.Errorf("lane index %d out of range", i)
	}
	shift, err := safecast.Conv[uint32](i)
	if err != nil {
		return NoLane, err
	}
	return Lane(1) << shift, nil
}

// IsSubset reports whether subset is contained in set.
func IsSubset(set, subset Lanes) bool { return set&subset == subset }

// HighestPriorityLanes returns the group of lanes that should render next
// out of pending. Transition and retry lanes are batched as a group; every
// other lane renders alone.
func HighestPriorityLanes(pending Lanes) Lanes {
	switch lane := pending.Highest(); {
	case lane == NoLane:
		return NoLanes
	case TransitionLanes.Has(lane):
		return pending & TransitionLanes
	case RetryLanes.Has(lane):
		return pending & RetryLanes
	default:
		return lane
	}
}

// IncludesSyncLane reports whether set contains the sync lane.
func IncludesSyncLane(set Lanes) bool { return set&SyncLane != 0 }

// IncludesBlockingLane reports whether set contains a lane that must not be
// time sliced.
func IncludesBlockingLane(set Lanes) bool { return set&blockingLanes != 0 }

// IncludesNonIdleWork reports whether set contains any non-idle lane.
func IncludesNonIdleWork(set Lanes) bool { return set&NonIdleLanes != 0 }

// IncludesOnlyRetries reports whether every lane of set is a retry lane.
func IncludesOnlyRetries(set Lanes) bool { return set != 0 && set&^RetryLanes == 0 }

// IncludesOnlyTransitions reports whether every lane of set is a transition lane.
func IncludesOnlyTransitions(set Lanes) bool { return set != 0 && set&^TransitionLanes == 0 }

// IsTransitionLane reports whether lane belongs to the transition group.
func IsTransitionLane(lane Lane) bool { return lane&TransitionLanes != 0 }

// IsRetryLane reports whether lane belongs to the retry group.
func IsRetryLane(lane Lane) bool { return lane&RetryLanes != 0 }

func (l Lanes) String() string {
	if l == NoLanes {
		return "NoLanes"
	}
	var parts []string
	l.Each(func(lane Lane) {
		parts = append(parts, laneName(lane))
	})
	return strings.Join(parts, "|")
}

func laneName(lane Lane) string {
	switch {
	case lane == SyncLane:
		return "Sync"
	case lane == InputContinuousLane:
		return "InputContinuous"
	case lane == DefaultLane:
		return "Default"
	case IsTransitionLane(lane):
		return fmt.Sprintf("Transition%d", Index(lane)-Index(TransitionLane1)+1)
	case IsRetryLane(lane):
		return fmt.Sprintf("Retry%d", Index(lane)-Index(RetryLane1)+1)
	case lane == IdleLane:
		return "Idle"
	case lane == OffscreenLane:
		return "Offscreen"
	default:
		return fmt.Sprintf("Lane%d", Index(lane))
	}
}

// Allocator hands out transition and retry lanes round-robin so that
// unrelated transitions are unlikely to share a lane.
type Allocator struct {
	nextTransition Lane
	nextRetry      Lane
}

// NewAllocator returns an allocator positioned at the first lane of each group.
func NewAllocator() *Allocator {
	return &Allocator{nextTransition: TransitionLane1, nextRetry: RetryLane1}
}

// ClaimTransition returns the next transition lane.
func (a *Allocator) ClaimTransition() Lane {
	lane := a.nextTransition
	a.nextTransition <<= 1
	if a.nextTransition&TransitionLanes == 0 {
		a.nextTransition = TransitionLane1
	}
	return lane
}

// ClaimRetry returns the next retry lane.
func (a *Allocator) ClaimRetry() Lane {
	lane := a.nextRetry
	a.nextRetry <<= 1
	if a.nextRetry&RetryLanes == 0 {
		a.nextRetry = RetryLane1
	}
	return lane
}
