// control.go: Global control flags and activity management for the sampler
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Control package provides lightweight global signaling shared by the batch
// publisher, the pinned consumer and the stall watchdog in main.
//
// Architecture overview:
//   • Global hot/stop flags for lock-free inter-goroutine communication
//   • Nanosecond activity timestamp refreshed on every batch publish
//   • Automatic cooldown: hot drops to 0 when publishing stops
//   • ShutdownWG lets main wait for subsystems to drain
//
// Threading model:
//   • Batch publisher signals activity via SignalActivity()
//   • Consumer polls Stopping() between batches
//   • Watchdog calls PollCooldown() and reads Active()

package control

import (
	"sync"
	"sync/atomic"
	"time"

	"dmasampler/constants"
)

// ============================================================================
// GLOBAL STATE MANAGEMENT
// ============================================================================

var (
	hot  atomic.Uint32 // 1 = batches are being published, 0 = idle/stalled
	stop atomic.Uint32 // 1 = shutdown requested

	lastHot    atomic.Int64 // Nanosecond timestamp of the last publish
	cooldownNs atomic.Int64 // Silence before hot is cleared

	// ShutdownWG tracks subsystems that must drain before process exit.
	ShutdownWG sync.WaitGroup
)

func init() {
	cooldownNs.Store(int64(constants.StallCooldownMs * time.Millisecond))
}

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity marks the pipeline as live. Called by the batch publisher
// after every descriptor publish; two atomic stores, never blocks.
//
//go:nosplit
func SignalActivity() {
	lastHot.Store(time.Now().UnixNano())
	hot.Store(1)
}

// ForceHot marks the system active without a publish, used at startup so
// the watchdog grants the first half cycle before declaring a stall.
func ForceHot() {
	SignalActivity()
}

// ============================================================================
// COOLDOWN MANAGEMENT
// ============================================================================

// PollCooldown clears the hot flag when no activity has been signaled for
// the cooldown window. Returns true when this call performed the transition,
// so the caller can report the stall exactly once.
func PollCooldown() bool {
	if hot.Load() == 1 && time.Now().UnixNano()-lastHot.Load() > cooldownNs.Load() {
		return hot.CompareAndSwap(1, 0)
	}
	return false
}

// SetCooldown overrides the stall window. Non-positive values are ignored.
func SetCooldown(d time.Duration) {
	if d > 0 {
		cooldownNs.Store(int64(d))
	}
}

// Active reports whether the hot flag is set.
func Active() bool {
	return hot.Load() == 1
}

// ============================================================================
// SYSTEM SHUTDOWN
// ============================================================================

// Shutdown sets the global stop flag. The pinned consumer observes it after
// its current batch and exits.
func Shutdown() {
	stop.Store(1)
}

// Stopping reports whether Shutdown has been called.
//
//go:nosplit
func Stopping() bool {
	return stop.Load() != 0
}

// Reset clears all flags. Intended for tests and process re-initialisation.
func Reset() {
	hot.Store(0)
	stop.Store(0)
	lastHot.Store(0)
	cooldownNs.Store(int64(constants.StallCooldownMs * time.Millisecond))
}
