// ════════════════════════════════════════════════════════════════════════════════════════════════
// 📣 BATCH PUBLISHER (INTERRUPT HANDLER)
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Threshold Handler And Descriptor Publication
//
// Description:
//   Runs in interrupt context whenever the sample counter reaches N/2 or N. Each branch clears its
//   compare event first, computes the newest readable RX window and posts it to the mailbox.
//
// Branches:
//   - Half: descriptor {0, N/2}
//   - Full: CAPTURE the live count, descriptor {N/2, captured-N/2}, repoint the engine to slot 0,
//           then CLEAR the counter
//
// Overrun policy:
//   - Overrun up to M slots is absorbed by the margin and reported in the count.
//   - Beyond M the engine refused the extra items, so the count is clamped to N/2+M and the
//     descriptor is flagged Clamped.
//
// Known hazard:
//   A tick landing between CAPTURE and CLEAR is written to RX but lost from the count. The engine
//   is repointed before CLEAR so that item lands in slot 0 of the next cycle rather than past the
//   margin.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package publisher

import (
	"errors"
	"sync/atomic"

	"dmasampler/constants"
	"dmasampler/control"
	"dmasampler/event"
	"dmasampler/notify"
	"dmasampler/types"
)

// ErrGeometry is returned for a zero or odd cycle length.
var ErrGeometry = errors.New("publisher: items must be even and positive")

// ErrCollaborator is returned when a required collaborator is nil.
var ErrCollaborator = errors.New("publisher: counter, engine and mailbox are required")

// Counter is the part of the sample counter the handler drives.
type Counter interface {
	Compare(n int) *event.Event
	Capture(n int) uint32
	Clear()
}

// Engine is the part of the transfer engine the handler drives.
type Engine interface {
	SetPointers(tx, rx uint32)
}

// Stats is a snapshot of handler counters.
type Stats struct {
	HalfEvents uint64
	FullEvents uint64
	Clamped    uint64 // full branches whose count was cut back to N/2+M
	MaxOverrun uint32 // largest captured-N seen, in ticks
	OutOfPhase uint64 // branches taken in the unexpected state
	Phase      types.Phase
}

// Publisher is the interrupt handler state for one pipeline.
type Publisher struct {
	half    uint32
	margin  uint32
	counter Counter
	engine  Engine
	mailbox notify.Mailbox

	phase atomic.Uint32

	halfEvents atomic.Uint64
	fullEvents atomic.Uint64
	clamped    atomic.Uint64
	maxOverrun atomic.Uint32
	outOfPhase atomic.Uint64
}

// New returns a publisher in AwaitingHalf for a cycle of items slots with
// margin trailing slots.
func New(items, margin int, c Counter, e Engine, m notify.Mailbox) (*Publisher, error) {
	if items <= 0 || items%2 != 0 || margin < 0 {
		return nil, ErrGeometry
	}
	if c == nil || e == nil || m == nil {
		return nil, ErrCollaborator
	}
	return &Publisher{
		half:    uint32(items / 2),
		margin:  uint32(margin),
		counter: c,
		engine:  e,
		mailbox: m,
	}, nil
}

// HandleIRQ services every latched threshold event. Bound to the interrupt
// line; never blocks.
//
//go:nosplit
func (p *Publisher) HandleIRQ() {
	if ev := p.counter.Compare(constants.CompareHalf); ev.Pending() {
		ev.Clear()
		p.onHalf()
	}
	if ev := p.counter.Compare(constants.CompareFull); ev.Pending() {
		ev.Clear()
		p.onFull()
	}
}

func (p *Publisher) onHalf() {
	if types.Phase(p.phase.Load()) != types.AwaitingHalf {
		p.outOfPhase.Add(1)
	}
	p.halfEvents.Add(1)
	p.publish(types.Descriptor{Start: 0, Count: p.half})
	p.phase.Store(uint32(types.AwaitingFull))
}

func (p *Publisher) onFull() {
	if types.Phase(p.phase.Load()) != types.AwaitingFull {
		p.outOfPhase.Add(1)
	}
	p.fullEvents.Add(1)

	v := p.counter.Capture(constants.CaptureRegister)
	p.engine.SetPointers(0, 0)
	p.counter.Clear()

	d := types.Descriptor{Start: p.half}
	if v > p.half {
		d.Count = v - p.half
	}
	if full := 2 * p.half; v > full && v-full > p.maxOverrun.Load() {
		p.maxOverrun.Store(v - full) // handler is the only writer
	}
	if limit := p.half + p.margin; d.Count > limit {
		d.Count = limit
		d.Clamped = true
		p.clamped.Add(1)
	}
	p.publish(d)
	p.phase.Store(uint32(types.AwaitingHalf))
}

// publish posts d and marks the pipeline live.
func (p *Publisher) publish(d types.Descriptor) {
	p.mailbox.Post(d)
	control.SignalActivity()
}

// Phase returns the handler state.
func (p *Publisher) Phase() types.Phase {
	return types.Phase(p.phase.Load())
}

// Stats returns a counter snapshot.
func (p *Publisher) Stats() Stats {
	return Stats{
		HalfEvents: p.halfEvents.Load(),
		FullEvents: p.fullEvents.Load(),
		Clamped:    p.clamped.Load(),
		MaxOverrun: p.maxOverrun.Load(),
		OutOfPhase: p.outOfPhase.Load(),
		Phase:      p.Phase(),
	}
}
