package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"dmasampler/bus"
	"dmasampler/config"
	"dmasampler/control"
	"dmasampler/spim"
	"dmasampler/types"
)

// ============================================================================
// HELPERS
// ============================================================================

func newPipeline(t *testing.T, cfg config.Config) *Pipeline {
	t.Helper()
	control.Reset()
	p, err := New(cfg, bus.Loopback{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.FillTX(func(i int, item []byte) {
		item[0], item[1] = 0x5, byte(i+1)
	})
	return p
}

func mustTake(t *testing.T, p *Pipeline) Batch {
	t.Helper()
	b, ok, err := p.TryWait()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("no batch pending")
	}
	return b
}

// ============================================================================
// CONSTRUCTION
// ============================================================================

func TestNewRejectsBadInput(t *testing.T) {
	cfg := config.Default()
	cfg.ListItems = 7
	if _, err := New(cfg, bus.Loopback{}); !errors.Is(err, config.ErrItems) {
		t.Fatalf("err = %v, want ErrItems", err)
	}
	if _, err := New(config.Default(), nil); !errors.Is(err, spim.ErrNoBus) {
		t.Fatalf("err = %v, want ErrNoBus", err)
	}
}

// ============================================================================
// DETERMINISTIC PROPERTIES
// ============================================================================

func TestLoopbackRoundTrip(t *testing.T) {
	cfg := config.Default()
	p := newPipeline(t, cfg)
	half := cfg.Half()

	p.Step(half)
	if !p.Service() {
		t.Fatal("half threshold did not raise the interrupt")
	}
	b := mustTake(t, p)
	if b.Branch != types.BranchHalf || b.Descriptor != (types.Descriptor{Start: 0, Count: uint32(half)}) {
		t.Fatalf("half batch = %+v", b)
	}

	p.Step(half)
	p.Service()
	b = mustTake(t, p)
	if b.Branch != types.BranchFull || b.Window.Start() != half || b.Window.Len() != half {
		t.Fatalf("full batch = %+v", b)
	}

	tx := p.Buffer()
	for i := 0; i < cfg.ListItems; i++ {
		rx, want := tx.RXItem(i), tx.TXItem(i)
		if rx[0] != want[0] || rx[1] != want[1] {
			t.Fatalf("RX[%d] = %x, want %x", i, rx, want)
		}
	}
	if it := b.Window.Item(0); it[0] != 0x5 || it[1] != byte(half+1) {
		t.Fatalf("first full item = %x", it)
	}
}

func TestMillionTickScenario(t *testing.T) {
	cfg := config.Default()
	p := newPipeline(t, cfg)

	var halves, fulls int
	for i := 0; i < 1_000_000; i++ {
		p.Step(1)
		if !p.line.Pending() {
			continue
		}
		p.Service()
		b := mustTake(t, p)
		switch b.Branch {
		case types.BranchHalf:
			halves++
		case types.BranchFull:
			fulls++
			if c := b.Descriptor.Count; c < 1000 || c > 1100 {
				t.Fatalf("full count %d outside [1000, 1100]", c)
			}
		}
	}
	if halves != 500 || fulls != 500 {
		t.Fatalf("halves=%d fulls=%d, want 500/500", halves, fulls)
	}

	st := p.Stats()
	if st.Ticks != 1_000_000 || st.Routed != 1_000_000 || st.Counted != 1_000_000 {
		t.Fatalf("ticks=%d routed=%d counted=%d", st.Ticks, st.Routed, st.Counted)
	}
	if st.Publisher.HalfEvents != 500 || st.Publisher.FullEvents != 500 || st.Clears != 500 {
		t.Fatalf("publisher = %+v clears=%d", st.Publisher, st.Clears)
	}
	if st.Engine.Overflows != 0 || st.Engine.Transfers != 1_000_000 {
		t.Fatalf("engine = %+v", st.Engine)
	}
	if st.Consumed != 1000 || st.Notify.Coalesced != 0 {
		t.Fatalf("consumed=%d notify=%+v", st.Consumed, st.Notify)
	}
}

func TestDelayedHandlerStaysInsideMargin(t *testing.T) {
	cfg := config.Default()
	p := newPipeline(t, cfg)
	half, margin := cfg.Half(), cfg.EndMargin

	for cycle := 0; cycle < 200; cycle++ {
		d := (cycle * 37) % (margin + 1)

		p.Step(half)
		p.Service()
		mustTake(t, p)

		p.Mask()
		p.Step(half + d)
		p.Unmask()
		if !p.Service() {
			t.Fatalf("cycle %d: held interrupt not delivered on unmask", cycle)
		}
		b := mustTake(t, p)
		want := types.Descriptor{Start: uint32(half), Count: uint32(half + d)}
		if b.Descriptor != want {
			t.Fatalf("cycle %d delay %d: descriptor %+v, want %+v", cycle, d, b.Descriptor, want)
		}
		if int(b.Descriptor.End()) > cfg.Total() {
			t.Fatalf("cycle %d: window end %d past buffer", cycle, b.Descriptor.End())
		}
		if p.counter.Value() != 0 {
			t.Fatalf("cycle %d: counter %d after full", cycle, p.counter.Value())
		}
	}
	if st := p.Stats(); st.Engine.Overflows != 0 || st.Publisher.Clamped != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestOverrunPastMarginClamps(t *testing.T) {
	cfg := config.Default()
	p := newPipeline(t, cfg)

	p.Step(cfg.Half())
	p.Service()
	mustTake(t, p)

	p.Mask()
	p.Step(cfg.Half() + cfg.EndMargin + 10)
	p.Unmask()
	p.Service()

	b := mustTake(t, p)
	if !b.Descriptor.Clamped || b.Window.Len() != cfg.Half()+cfg.EndMargin {
		t.Fatalf("batch = %+v", b.Descriptor)
	}
	if st := p.Stats(); st.Engine.Overflows != 10 || st.Publisher.MaxOverrun != uint32(cfg.EndMargin+10) {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSecondPublishCoalesces(t *testing.T) {
	cfg := config.Default()
	p := newPipeline(t, cfg)

	p.Step(cfg.Half())
	p.Service()
	p.Step(cfg.Half())
	p.Service()

	b, err := p.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if b.Branch != types.BranchFull || b.Seq != 1 {
		t.Fatalf("batch = %+v, want the full branch as first delivery", b)
	}
	if _, ok, _ := p.TryWait(); ok {
		t.Fatal("coalesced notification delivered twice")
	}
	if st := p.Stats().Notify; st.Posted != 2 || st.Coalesced != 1 || st.Delivered != 1 {
		t.Fatalf("notify = %+v", st)
	}
}

func TestQueueModeDeliversEveryBatch(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Mode, cfg.Notify.QueueDepth = "queue", 4
	p := newPipeline(t, cfg)

	for i := 0; i < 2; i++ {
		p.Step(cfg.Half())
		p.Service()
	}
	first, second := mustTake(t, p), mustTake(t, p)
	if first.Branch != types.BranchHalf || second.Branch != types.BranchFull {
		t.Fatalf("order = %v, %v", first.Branch, second.Branch)
	}
	if st := p.Stats().Notify; st.Dropped != 0 || st.Coalesced != 0 {
		t.Fatalf("notify = %+v", st)
	}
}

// ============================================================================
// CONSUMER LOOP
// ============================================================================

func TestConsumeStopsOnCallbackError(t *testing.T) {
	p := newPipeline(t, config.Default())
	p.Step(p.Config().Half())
	p.Service()

	boom := errors.New("boom")
	err := p.Consume(context.Background(), func(Batch) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestConsumeExitsOnShutdown(t *testing.T) {
	p := newPipeline(t, config.Default())
	p.Step(p.Config().Half())
	p.Service()

	var n int
	err := p.Consume(context.Background(), func(Batch) error {
		n++
		control.Shutdown()
		return nil
	})
	control.Reset()
	if err != nil || n != 1 {
		t.Fatalf("err=%v batches=%d", err, n)
	}
}

func TestPinnedConsumer(t *testing.T) {
	p := newPipeline(t, config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan types.Descriptor, 16)
	done := p.PinnedConsumer(ctx, 0, func(b Batch) error {
		got <- b.Descriptor
		return nil
	})

	half := p.Config().Half()
	p.Step(half)
	p.Service()
	select {
	case d := <-got:
		if d != (types.Descriptor{Start: 0, Count: uint32(half)}) {
			t.Fatalf("descriptor = %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pinned consumer did not receive the batch")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pinned consumer did not exit")
	}
}

// ============================================================================
// WALL-CLOCK RUN
// ============================================================================

func TestStartStopRealTime(t *testing.T) {
	cfg := config.Default()
	cfg.ListItems, cfg.EndMargin = 200, 20
	p := newPipeline(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatal("second Start must be a no-op")
	}

	var batches []types.Descriptor
	err := p.Consume(ctx, func(b Batch) error {
		batches = append(batches, b.Descriptor)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	p.Stop()
	p.Stop()

	if len(batches) == 0 {
		t.Fatal("no batches in 150ms at 100us per tick")
	}
	for _, d := range batches {
		if int(d.End()) > cfg.Total() {
			t.Fatalf("descriptor %+v past buffer", d)
		}
		if d.Start != 0 && (d.Count < 100 || d.Count > 120) {
			t.Fatalf("full count %d outside [100, 120]", d.Count)
		}
	}
	if p.clock.Running() {
		t.Fatal("clock still running after Stop")
	}
}

func TestStopBeforeStart(t *testing.T) {
	p := newPipeline(t, config.Default())
	p.Stop()
}

func BenchmarkCycle(b *testing.B) {
	control.Reset()
	p, _ := New(config.Default(), bus.Loopback{})
	half := p.Config().Half()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p.Step(half)
		p.Service()
		p.TryWait()
	}
}
