package lanes

import (
	"fmt"
	"strings"
)

// Urgency is the coarse scheduling class an update is requested at.
type Urgency uint8

const (
	UrgencySync Urgency = iota
	UrgencyUserBlocking
	UrgencyNormal
	UrgencyIdle
)

func (u Urgency) String() string {
	switch u {
	case UrgencySync:
		return "sync"
	case UrgencyUserBlocking:
		return "user-blocking"
	case UrgencyNormal:
		return "normal"
	case UrgencyIdle:
		return "idle"
	default:
		return fmt.Sprintf("Urgency(%d)", u)
	}
}

// ParseUrgency converts a string to an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sync", "discrete", "immediate":
		return UrgencySync, nil
	case "user-blocking", "userblocking", "continuous":
		return UrgencyUserBlocking, nil
	case "normal", "default", "":
		return UrgencyNormal, nil
	case "idle":
		return UrgencyIdle, nil
	default:
		return UrgencyNormal, fmt.Errorf("unknown urgency %q", s)
	}
}

// RequestLane maps an urgency to the lane an update should be queued at.
// Transition lanes are not requested here; they come from an Allocator.
func RequestLane(u Urgency) Lane {
	switch u {
	case UrgencySync:
		return SyncLane
	case UrgencyUserBlocking:
		return InputContinuousLane
	case UrgencyIdle:
		return IdleLane
	default:
		return DefaultLane
	}
}

// UrgencyOf returns the urgency class of the most urgent lane in set.
func UrgencyOf(set Lanes) Urgency {
	lane := set.Highest()
	switch {
	case lane == SyncLane:
		return UrgencySync
	case lane == InputContinuousLane:
		return UrgencyUserBlocking
	case lane == NoLane, lane == IdleLane, lane == OffscreenLane:
		return UrgencyIdle
	default:
		return UrgencyNormal
	}
}
