// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⏱  TRIGGER CLOCK
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Hardware-Timed Sample Trigger
//
// Description:
//   Periodic tick source standing in for a prescaled timer with a COMPARE0→CLEAR short. Every
//   period the tick event fires; whatever the event router linked to it runs in this goroutine
//   with no further scheduling. After configuration no software touches the clock.
//
// Drift/jitter of the host ticker is a property of the time source and is not corrected here.
// ════════════════════════════════════════════════════════════════════════════════════════════════

package trigclock

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"dmasampler/constants"
	"dmasampler/event"
)

// ErrPeriod is returned for a trigger period below the supported minimum.
var ErrPeriod = errors.New("trigclock: period below minimum")

// ErrRunning is returned when Run is called on a clock that is already running.
var ErrRunning = errors.New("trigclock: already running")

// Config is the typed replacement for the timer PRESCALER/CC[0]/SHORTS setup.
type Config struct {
	// PeriodUs is the tick interval in microseconds.
	PeriodUs int
}

// Period returns the configured interval as a duration.
func (c Config) Period() time.Duration {
	return time.Duration(c.PeriodUs) * time.Microsecond
}

// Validate checks the config against the supported range.
func (c Config) Validate() error {
	if c.PeriodUs < constants.MinTimerReloadUs {
		return ErrPeriod
	}
	return nil
}

// Clock emits one tick event per period.
type Clock struct {
	cfg     Config
	tick    event.Event
	ticks   atomic.Uint64
	running atomic.Bool
}

// New validates cfg and returns a stopped clock.
func New(cfg Config) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Clock{cfg: cfg}, nil
}

// Event returns the tick event endpoint for the router.
func (c *Clock) Event() *event.Event {
	return &c.tick
}

// Config returns the validated configuration.
func (c *Clock) Config() Config {
	return c.cfg
}

// Ticks returns the number of ticks emitted so far.
func (c *Clock) Ticks() uint64 {
	return c.ticks.Load()
}

// fire emits one tick. The COMPARE0→CLEAR short means the timer restarts
// immediately, so the latch is dropped right after the linked tasks ran.
//
//go:nosplit
func (c *Clock) fire() {
	c.ticks.Add(1)
	c.tick.Fire()
	c.tick.Clear()
}

// Step emits n ticks back to back in the caller's goroutine. Used to drive
// the pipeline deterministically, independent of wall-clock time.
func (c *Clock) Step(n int) {
	for i := 0; i < n; i++ {
		c.fire()
	}
}

// Run ticks every period until ctx is cancelled. Blocks; callers run it in
// its own goroutine.
func (c *Clock) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer c.running.Store(false)

	t := time.NewTicker(c.cfg.Period())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.fire()
		}
	}
}

// Running reports whether Run is active.
func (c *Clock) Running() bool {
	return c.running.Load()
}
