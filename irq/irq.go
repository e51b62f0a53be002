// ============================================================================
// INTERRUPT LINE
// ============================================================================
//
// A Line carries one peripheral interrupt to its handler. Peripherals Pend
// it from their own goroutine; the handler runs in the line's goroutine,
// which plays the role of interrupt context.
//
// Semantics:
//   - Pend is non-blocking and idempotent while pending.
//   - Mask holds the interrupt off (models latency); ticks keep flowing and
//     the handler runs once on Unmask.
//   - The handler never re-enters itself: Run and Service serialize on the
//     same lock.
//   - Pend happens-before the handler invocation it causes.

package irq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrRunning is returned when Run is called twice concurrently.
var ErrRunning = errors.New("irq: line already running")

// Line is a single maskable interrupt line.
type Line struct {
	handler func()

	pending atomic.Bool
	masked  atomic.Bool
	kick    chan struct{}
	exec    sync.Mutex

	running  atomic.Bool
	raised   atomic.Uint64
	serviced atomic.Uint64
}

// New returns an unmasked line bound to handler.
func New(handler func()) *Line {
	return &Line{
		handler: handler,
		kick:    make(chan struct{}, 1),
	}
}

// Pend marks the interrupt pending and wakes the handler goroutine.
//
//go:nosplit
func (l *Line) Pend() {
	l.raised.Add(1)
	l.pending.Store(true)
	if !l.masked.Load() {
		l.wake()
	}
}

func (l *Line) wake() {
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

// Mask holds the interrupt off.
func (l *Line) Mask() {
	l.masked.Store(true)
}

// Unmask releases the interrupt; a pending request is delivered.
func (l *Line) Unmask() {
	l.masked.Store(false)
	if l.pending.Load() {
		l.wake()
	}
}

// Masked reports whether the line is masked.
func (l *Line) Masked() bool {
	return l.masked.Load()
}

// Pending reports whether a request is waiting for the handler.
func (l *Line) Pending() bool {
	return l.pending.Load()
}

// Service runs the handler inline if the line is pending and unmasked.
// Returns whether the handler ran. Used by deterministic drivers in place
// of Run.
func (l *Line) Service() bool {
	if l.masked.Load() {
		return false
	}
	l.exec.Lock()
	defer l.exec.Unlock()

	if !l.pending.Swap(false) {
		return false
	}
	l.handler()
	l.serviced.Add(1)
	return true
}

// Run delivers pending requests until ctx is cancelled.
func (l *Line) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.kick:
			l.Service()
		}
	}
}

// Raised returns how many times the line was pended.
func (l *Line) Raised() uint64 {
	return l.raised.Load()
}

// Serviced returns how many handler invocations completed.
func (l *Line) Serviced() uint64 {
	return l.serviced.Load()
}
