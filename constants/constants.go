// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go: Acquisition tunables & peripheral wiring defaults
//
// Purpose:
//   - Defines the cycle geometry (list items, end margin) and trigger period.
//   - Names the router channel, counter registers and bus pins used at bring-up.
//
// Notes:
//   - Every value here is a default; config.Config may override at startup.
//   - Buffer capacity is fixed for the process lifetime once the pipeline is built.
//
// ⚠️ No runtime logic here: all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Cycle Geometry ──────────────────────────────

const (
	// ListItems is N, the number of items sampled per full cycle.
	// Split in two halves of N/2; the half and full compare events fire at
	// N/2 and N counted ticks respectively. Must be even.
	ListItems = 2000

	// EndMargin is M, the slack slots appended after the logical cycle.
	// Absorbs transfers that happen between the full compare event and the
	// handler repointing the engine. 100 items = 10ms of latency at 100µs.
	EndMargin = 100

	// TotalItems is the allocated slot count of each of the TX and RX arrays.
	TotalItems = ListItems + EndMargin

	// MaxTotalItems bounds list_items+end_margin to the descriptor count field.
	MaxTotalItems = 1 << 30

	// ItemSize is the byte width of one bus exchange (command/address + data).
	ItemSize = 2
)

// ───────────────────────────── Trigger Timing ──────────────────────────────

const (
	// TimerReloadUs is the trigger period in microseconds.
	// 100µs = 10 kHz sample rate, a full 2000-item cycle every 200ms.
	TimerReloadUs = 100

	// MinTimerReloadUs guards against periods the host scheduler cannot honour.
	MinTimerReloadUs = 1
)

// ─────────────────────────── Sample Counter Layout ─────────────────────────

const (
	// CounterRegisters is the number of capture/compare registers on the counter.
	CounterRegisters = 4

	// CompareHalf is the CC register holding N/2.
	CompareHalf = 0

	// CompareFull is the CC register holding N.
	CompareFull = 1

	// CaptureRegister receives the on-demand latch of the live count.
	CaptureRegister = 3
)

// ───────────────────────────── Event Router ────────────────────────────────

const (
	// RouterChannels is the number of programmable router channels.
	RouterChannels = 20

	// TriggerChannel links the clock tick to engine START with a fork to COUNT.
	TriggerChannel = 2
)

// ───────────────────────────── Bus Master ──────────────────────────────────

const (
	// BusFrequencyHz is the bus clock; opaque to the acquisition core.
	BusFrequencyHz = 1_000_000

	// Pin assignment handed to the bus-master initializer.
	PinCSN  = 33
	PinSCK  = 35
	PinMOSI = 36
	PinMISO = 37

	// TxCommand is the command byte written in every pre-filled TX item.
	TxCommand = 0x5
)

// ───────────────────────────── Notification ────────────────────────────────

const (
	// QueueDepth is the descriptor ring size used by the queued mailbox.
	// Power of two; 4 slots = two full cycles of slack for a stalled consumer.
	QueueDepth = 4

	// NoCore leaves the consumer thread unpinned.
	NoCore = -1
)

// ───────────────────────────── Diagnostics ─────────────────────────────────

const (
	// StallCooldownMs is the silence after which the watchdog reports a stall.
	// A healthy pipeline publishes every N/2 ticks (100ms at defaults).
	StallCooldownMs = 1000

	// ConfigEnv names the environment variable holding the config file path.
	ConfigEnv = "SAMPLER_CONFIG"
)
