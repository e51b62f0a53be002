// ════════════════════════════════════════════════════════════════════════════════════════════════
// Triggered Double-Buffer Sampler - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Hardware-Timed Bus Acquisition Pipeline
// Component: Main Entry Point & System Orchestration
//
// Description:
//   Brings the pipeline up the way the firmware does: configure the bus master, prefill TX, link
//   the trigger clock to the engine and counter, then hand every published batch to the sink.
//
// Architecture:
//   - Phase 1: Configuration, buffer allocation and peripheral linkage
//   - Phase 2: Memory cleanup before the timed run
//   - Phase 3: Clock and interrupt goroutines running, pinned consumer draining batches,
//              stall watchdog polling from the main goroutine
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"
	"time"

	"github.com/google/uuid"

	"dmasampler/bus"
	"dmasampler/config"
	"dmasampler/constants"
	"dmasampler/control"
	"dmasampler/debug"
	"dmasampler/metrics"
	"dmasampler/pipeline"
	"dmasampler/sink"
	"dmasampler/utils"
)

// watchdogPeriod is how often main polls for a stalled pipeline.
const watchdogPeriod = 100 * time.Millisecond

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MAIN ORCHESTRATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func main() {
	// PHASE 1: configuration and bring-up
	utils.PrintInfo("Starting triggered double-buffer sampler.\n")

	cfg, err := config.FromEnv()
	if err != nil {
		fatal("CONFIG", err)
	}
	run := uuid.New()
	debug.DropMessage("RUN", run.String())
	debug.DropMessage("CONFIG", "N "+utils.Itoa(cfg.ListItems)+", M "+utils.Itoa(cfg.EndMargin)+
		", period "+utils.Itoa(cfg.TriggerPeriodUs)+"us, bus "+cfg.Bus.Device+
		" @ "+utils.Itoa(cfg.Bus.FrequencyHz)+"Hz, notify "+cfg.Notify.Mode)

	dev, err := bus.New(cfg.Bus.Device)
	if err != nil {
		fatal("BUS", err)
	}
	p, err := pipeline.New(cfg, dev)
	if err != nil {
		fatal("PIPELINE", err)
	}
	debug.DropMessage("TX", "prefill (h"+utils.Hex2(constants.TxCommand)+", i+1) over "+
		utils.PadInt(cfg.ListItems, 4)+" items")
	p.FillTX(func(i int, item []byte) {
		item[0] = constants.TxCommand
		if len(item) > 1 {
			item[1] = byte(i + 1)
		}
	})

	out, err := sink.New(cfg.Sink)
	if err != nil {
		fatal("SINK", err)
	}

	var ms *metrics.Server
	if cfg.MetricsAddr != "" {
		reg, err := metrics.NewRegistry(p)
		if err != nil {
			fatal("METRICS", err)
		}
		if ms, err = metrics.Serve(cfg.MetricsAddr, reg); err != nil {
			fatal("METRICS", err)
		}
		debug.DropMessage("METRICS", "serving http://"+ms.Addr()+"/metrics")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	// PHASE 2: settle the heap before ticks start
	runtime.GC()
	rtdebug.FreeOSMemory()

	// PHASE 3: timed run
	if err := p.Start(ctx); err != nil {
		fatal("START", err)
	}
	halfCycle := time.Duration(cfg.Half()*cfg.TriggerPeriodUs) * time.Microsecond
	control.SetCooldown(max(constants.StallCooldownMs*time.Millisecond, 4*halfCycle))
	control.ForceHot()
	utils.PrintInfo("READY: trigger clock running, first batch after " +
		utils.PadInt(cfg.Half(), 4) + " ticks\n")

	control.ShutdownWG.Add(1)
	done := p.PinnedConsumer(ctx, cfg.Consumer.Core, func(b pipeline.Batch) error {
		return out.Write(sink.NewRecord(run, b, p.Stats().Notify.Coalesced))
	})

	watch(ctx, done)

	p.Stop()
	if err := out.Close(); err != nil {
		debug.DropError("SINK", err)
	}
	if ms != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		ms.Close(shutdownCtx)
		stop()
	}
	report(p.Stats())
	control.ShutdownWG.Done()
	control.ShutdownWG.Wait()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// STALL WATCHDOG
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// watch blocks until shutdown or consumer exit, logging every transition
// into and out of a stall. A stall means no threshold event has been
// published for the cooldown window: the trigger or counter is not firing.
func watch(ctx context.Context, done <-chan error) {
	t := time.NewTicker(watchdogPeriod)
	defer t.Stop()

	stalled := false
	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case err := <-done:
			if err != nil {
				debug.DropError("CONSUMER", err)
			}
			return
		case <-t.C:
			if control.PollCooldown() {
				stalled = true
				debug.DropMessage("STALL", "no batch published within the cooldown window")
			} else if stalled && control.Active() {
				stalled = false
				debug.DropMessage("STALL", "batches resumed")
			}
		}
	}
}

// report prints the end-of-run counters.
func report(s pipeline.Stats) {
	debug.DropMessage("STATS", "ticks "+utils.Utoa(s.Ticks)+
		", transfers "+utils.Utoa(s.Engine.Transfers)+
		", overflows "+utils.Utoa(s.Engine.Overflows)+
		", bus errors "+utils.Utoa(s.Engine.Errors))
	debug.DropMessage("STATS", "half "+utils.Utoa(s.Publisher.HalfEvents)+
		", full "+utils.Utoa(s.Publisher.FullEvents)+
		", clamped "+utils.Utoa(s.Publisher.Clamped)+
		", max overrun "+utils.Utoa(uint64(s.Publisher.MaxOverrun)))
	debug.DropMessage("STATS", "consumed "+utils.Utoa(s.Consumed)+
		", coalesced "+utils.Utoa(s.Notify.Coalesced)+
		", dropped "+utils.Utoa(s.Notify.Dropped))
}

func fatal(prefix string, err error) {
	debug.DropError(prefix, err)
	os.Exit(1)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SYSTEM LIFECYCLE MANAGEMENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// setupSignalHandling turns SIGINT/SIGTERM into a coordinated shutdown:
// the stop flag for polling loops and ctx cancellation for blocked waits.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "Received interrupt, shutting down...")
		control.Shutdown()
		cancel()

		control.ShutdownWG.Wait()
		debug.DropMessage("SIGNAL", "All subsystems shutdown complete")
	}()
}
