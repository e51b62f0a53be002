// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚙️ ACQUISITION PIPELINE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Owned Pipeline Instance And Consumer Loop
//
// Description:
//   Builds every peripheral once, links them the way the bring-up code programs the hardware, and
//   exposes the consumer side: Wait blocks for a notification and only then reads the descriptor
//   and the RX window it names.
//
// Wiring:
//   clock tick ──router ch2──▶ engine START (task) ──▶ counter COUNT (fork)
//   counter COMPARE0/1 ──▶ interrupt line ──▶ publisher.HandleIRQ ──▶ mailbox
//
// Contexts:
//   - clock goroutine: tick, router, engine exchange, counter increment
//   - interrupt goroutine: publisher
//   - consumer goroutine: Wait / Consume
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"dmasampler/bus"
	"dmasampler/config"
	"dmasampler/constants"
	"dmasampler/control"
	"dmasampler/counter"
	"dmasampler/dmabuf"
	"dmasampler/irq"
	"dmasampler/notify"
	"dmasampler/publisher"
	"dmasampler/router"
	"dmasampler/spim"
	"dmasampler/trigclock"
	"dmasampler/types"
)

// Batch is one consumed notification: the descriptor read after the wake
// and a view of the RX window it names.
type Batch struct {
	Seq        uint64 // 1-based delivery number
	Branch     types.Branch
	Descriptor types.Descriptor
	Window     dmabuf.Window
}

// Stats aggregates every component's counters.
type Stats struct {
	Ticks       uint64
	Routed      uint64
	Counted     uint64
	Clears      uint64
	IRQRaised   uint64
	IRQServiced uint64
	Consumed    uint64
	Engine      spim.Stats
	Publisher   publisher.Stats
	Notify      notify.Stats
}

// Pipeline owns the buffer, the peripherals and the mailbox for the
// process lifetime.
type Pipeline struct {
	cfg     config.Config
	buf     *dmabuf.Buffer
	clock   *trigclock.Clock
	counter *counter.Counter
	router  *router.Router
	engine  *spim.Engine
	line    *irq.Line
	pub     *publisher.Publisher
	mailbox notify.Mailbox

	seq atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New validates cfg, allocates the buffers and links the peripherals. The
// result is armed but not ticking: drive it with Start or Step.
func New(cfg config.Config, b bus.Bus) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg}

	var err error
	if p.buf, err = dmabuf.New(cfg.ListItems, cfg.EndMargin, cfg.ItemSize); err != nil {
		return nil, fmt.Errorf("pipeline: buffer: %w", err)
	}
	if p.clock, err = trigclock.New(trigclock.Config{PeriodUs: cfg.TriggerPeriodUs}); err != nil {
		return nil, fmt.Errorf("pipeline: clock: %w", err)
	}
	if p.counter, err = counter.New(counter.Config{
		Half:       uint32(cfg.Half()),
		Full:       uint32(cfg.ListItems),
		Interrupts: counter.IntCompare0 | counter.IntCompare1,
	}); err != nil {
		return nil, fmt.Errorf("pipeline: counter: %w", err)
	}
	if p.engine, err = spim.New(spim.Config{
		ItemSize:    cfg.ItemSize,
		FrequencyHz: cfg.Bus.FrequencyHz,
		Pins:        cfg.Bus.Pins(),
	}, p.buf, b); err != nil {
		return nil, fmt.Errorf("pipeline: engine: %w", err)
	}
	if p.mailbox, err = notify.New(cfg.Notify.Mode, cfg.Notify.QueueDepth); err != nil {
		return nil, fmt.Errorf("pipeline: mailbox: %w", err)
	}
	if p.pub, err = publisher.New(cfg.ListItems, cfg.EndMargin, p.counter, p.engine, p.mailbox); err != nil {
		return nil, fmt.Errorf("pipeline: publisher: %w", err)
	}

	p.line = irq.New(p.pub.HandleIRQ)
	p.counter.AttachInterrupt(p.line.Pend)

	p.router = router.New()
	if err := p.router.Configure(constants.TriggerChannel, p.clock.Event(), p.engine.Start, p.counter.Count); err != nil {
		return nil, fmt.Errorf("pipeline: router: %w", err)
	}
	if err := p.router.Enable(constants.TriggerChannel); err != nil {
		return nil, fmt.Errorf("pipeline: router: %w", err)
	}

	p.engine.Enable()
	p.counter.Start()
	return p, nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// Buffer returns the TX/RX buffer pair.
func (p *Pipeline) Buffer() *dmabuf.Buffer { return p.buf }

// FillTX writes the transmit pattern for the logical cycle.
func (p *Pipeline) FillTX(fn func(i int, item []byte)) { p.buf.FillTX(fn) }

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start launches the clock and interrupt goroutines. Calling Start again,
// including after Stop, is a no-op: a pipeline runs once.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.line.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.clock.Run(ctx)
	}()
	return nil
}

// Stop halts ticking and waits for both goroutines. Safe to call more than
// once and before Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Step emits n ticks synchronously. Only valid while stopped.
func (p *Pipeline) Step(n int) { p.clock.Step(n) }

// Service runs a pending interrupt inline. Only valid while stopped.
func (p *Pipeline) Service() bool { return p.line.Service() }

// Mask holds the interrupt off, modelling handler latency.
func (p *Pipeline) Mask() { p.line.Mask() }

// Unmask releases a held interrupt.
func (p *Pipeline) Unmask() { p.line.Unmask() }

// ============================================================================
// CONSUMER LOOP
// ============================================================================

// Wait blocks until a notification arrives, then reads the descriptor and
// its RX window.
func (p *Pipeline) Wait(ctx context.Context) (Batch, error) {
	d, err := p.mailbox.Wait(ctx)
	if err != nil {
		return Batch{}, err
	}
	return p.batch(d)
}

// TryWait returns a batch if a notification is pending.
func (p *Pipeline) TryWait() (Batch, bool, error) {
	d, ok := p.mailbox.TryWait()
	if !ok {
		return Batch{}, false, nil
	}
	b, err := p.batch(d)
	return b, true, err
}

func (p *Pipeline) batch(d types.Descriptor) (Batch, error) {
	w, err := p.buf.Window(int(d.Start), int(d.Count))
	if err != nil {
		return Batch{}, fmt.Errorf("pipeline: descriptor %d+%d: %w", d.Start, d.Count, err)
	}
	br := types.BranchFull
	if d.Start == 0 {
		br = types.BranchHalf
	}
	return Batch{
		Seq:        p.seq.Add(1),
		Branch:     br,
		Descriptor: d,
		Window:     w,
	}, nil
}

// Consume runs fn for every batch until ctx is cancelled, shutdown is
// requested, or fn fails. Cancellation is a clean exit.
func (p *Pipeline) Consume(ctx context.Context, fn func(Batch) error) error {
	for !control.Stopping() {
		b, err := p.Wait(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns an aggregated counter snapshot.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Ticks:       p.clock.Ticks(),
		Routed:      p.router.Routed(constants.TriggerChannel),
		Counted:     p.counter.Counted(),
		Clears:      p.counter.Clears(),
		IRQRaised:   p.line.Raised(),
		IRQServiced: p.line.Serviced(),
		Consumed:    p.seq.Load(),
		Engine:      p.engine.Stats(),
		Publisher:   p.pub.Stats(),
		Notify:      p.mailbox.Stats(),
	}
}
