package testing

import (
	"sync"
	"time"

	"github.com/go-drift/fiber/pkg/scheduler"
)

// Epoch is the time every FakeClock starts at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock is a scheduler clock that only moves when told to, so frame
// budgets and lane expirations are reproducible. It is safe for concurrent
// use.
type FakeClock struct {
	mu      sync.Mutex
	elapsed time.Duration
}

var _ scheduler.Clock = (*FakeClock)(nil)

// NewFakeClock returns a clock reading Epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// Now returns Epoch plus the time advanced so far.
func (c *FakeClock) Now() time.Time {
	return Epoch.Add(c.Elapsed())
}

// Elapsed returns the total time advanced since the clock was created.
func (c *FakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Advance moves the clock forward by d. Negative durations are ignored;
// the scheduler assumes time never runs backwards.
func (c *FakeClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.elapsed += d
	c.mu.Unlock()
}
