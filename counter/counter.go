// ============================================================================
// SAMPLE COUNTER
// ============================================================================
//
// Counter-mode timer advanced once per routed tick. It never samples the
// clock itself; the event router's fork task is its only input.
//
// Registers:
//   - CC[0] = N/2 → COMPARE0 ("half")
//   - CC[1] = N   → COMPARE1 ("full")
//   - CC[3]       ← CAPTURE latch of the live count
//
// Tasks:
//   - Count:   +1, raise compare events on equality
//   - Capture: latch the live count into CC[n] without stopping it
//   - Clear:   zero the count (issued once per cycle by the handler)
//
// When a compare event with its interrupt bit enabled fires, the attached
// interrupt line is pended. The counter does not wait for the handler.

package counter

import (
	"errors"
	"sync/atomic"

	"dmasampler/constants"
	"dmasampler/event"
)

// Interrupt enable bits, one per compare register.
const (
	IntCompare0 uint32 = 1 << iota
	IntCompare1
	IntCompare2
	IntCompare3
)

var (
	// ErrThresholds is returned when Half is zero or not below Full.
	ErrThresholds = errors.New("counter: need 0 < half < full")
	// ErrRegister is returned for an out-of-range CC index.
	ErrRegister = errors.New("counter: register index out of range")
)

// Config is the typed replacement for MODE/CC/INTENSET register writes.
type Config struct {
	Half       uint32
	Full       uint32
	Interrupts uint32 // IntCompareN bits
}

// Validate checks thresholds.
func (c Config) Validate() error {
	if c.Half == 0 || c.Half >= c.Full {
		return ErrThresholds
	}
	return nil
}

// Counter is a hardware-style event counter with compare/capture registers.
type Counter struct {
	count   atomic.Uint32
	cc      [constants.CounterRegisters]atomic.Uint32
	compare [constants.CounterRegisters]event.Event
	inten   uint32
	running atomic.Bool
	irq     atomic.Pointer[func()]

	counted atomic.Uint64
	clears  atomic.Uint64
}

// New validates cfg and returns a stopped counter with CC[0]/CC[1] loaded.
func New(cfg Config) (*Counter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Counter{inten: cfg.Interrupts}
	c.cc[constants.CompareHalf].Store(cfg.Half)
	c.cc[constants.CompareFull].Store(cfg.Full)
	return c, nil
}

// AttachInterrupt sets the function pended when an enabled compare fires.
func (c *Counter) AttachInterrupt(fn func()) {
	c.irq.Store(&fn)
}

// Start enables counting.
func (c *Counter) Start() { c.running.Store(true) }

// Stop disables counting; Count becomes a no-op.
func (c *Counter) Stop() { c.running.Store(false) }

// Count advances the counter by one. Router task endpoint.
//
//go:nosplit
func (c *Counter) Count() {
	if !c.running.Load() {
		return
	}
	v := c.count.Add(1)
	c.counted.Add(1)

	raise := false
	for i := range c.cc {
		if ref := c.cc[i].Load(); ref != 0 && v == ref {
			c.compare[i].Fire()
			if c.inten&(1<<i) != 0 {
				raise = true
			}
		}
	}
	if raise {
		if fn := c.irq.Load(); fn != nil {
			(*fn)()
		}
	}
}

// Capture latches the live count into CC[n] and returns it. Counting is not
// interrupted; ticks after the latch are not reflected in the result.
//
//go:nosplit
func (c *Counter) Capture(n int) uint32 {
	v := c.count.Load()
	c.cc[n].Store(v)
	return v
}

// Clear zeroes the live count.
//
//go:nosplit
func (c *Counter) Clear() {
	c.count.Store(0)
	c.clears.Add(1)
}

// CC returns register n.
func (c *Counter) CC(n int) uint32 {
	return c.cc[n].Load()
}

// SetCC loads register n.
func (c *Counter) SetCC(n int, v uint32) error {
	if n < 0 || n >= len(c.cc) {
		return ErrRegister
	}
	c.cc[n].Store(v)
	return nil
}

// Compare returns the COMPAREn event endpoint.
func (c *Counter) Compare(n int) *event.Event {
	return &c.compare[n]
}

// Value reads the live count. Diagnostic only; the handler uses Capture.
func (c *Counter) Value() uint32 {
	return c.count.Load()
}

// Counted returns the lifetime number of accepted Count tasks.
func (c *Counter) Counted() uint64 {
	return c.counted.Load()
}

// Clears returns the lifetime number of Clear tasks.
func (c *Counter) Clears() uint64 {
	return c.clears.Load()
}
