// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🚌 TRANSFER ENGINE (BUS MASTER, ARRAY-LIST MODE)
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Autonomous Per-Trigger Item Exchange
//
// Description:
//   Each START task exchanges exactly one item over the bus: TX slot at the TX pointer goes out,
//   the answer lands in the RX slot at the RX pointer, then both pointers advance by one slot.
//   No software re-arms the engine between items; the handler only repoints at mid-cycle.
//
// Pointer model:
//   - TX and RX slot indices are packed into one word and advanced with a single atomic add,
//     so a concurrent repoint can never tear the pair.
//   - A pointer at or past N+M is refused: the exchange is skipped and counted as an overflow
//     instead of writing outside the allocated buffer.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package spim

import (
	"errors"
	"sync/atomic"

	"dmasampler/bus"
	"dmasampler/constants"
	"dmasampler/dmabuf"
)

var (
	// ErrConfig is returned for a non-positive item size or frequency.
	ErrConfig = errors.New("spim: item size and frequency must be positive")
	// ErrBuffer is returned when the buffer item size disagrees with the config.
	ErrBuffer = errors.New("spim: buffer item size does not match MAXCNT")
	// ErrNoBus is returned when no bus is supplied.
	ErrNoBus = errors.New("spim: bus is required")
)

// ptrStep advances both packed pointers by one slot.
const ptrStep = uint64(1) | uint64(1)<<32

// Pins is the pin assignment handed through to the bus initializer.
type Pins struct {
	CSN  int `json:"csn"`
	SCK  int `json:"sck"`
	MOSI int `json:"mosi"`
	MISO int `json:"miso"`
}

// DefaultPins returns the board wiring used at bring-up.
func DefaultPins() Pins {
	return Pins{
		CSN:  constants.PinCSN,
		SCK:  constants.PinSCK,
		MOSI: constants.PinMOSI,
		MISO: constants.PinMISO,
	}
}

// Config is the typed replacement for ENABLE/FREQUENCY/PSEL/MAXCNT/LIST.
type Config struct {
	ItemSize    int // MAXCNT for both directions
	FrequencyHz int
	Pins        Pins
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.ItemSize <= 0 || c.FrequencyHz <= 0 {
		return ErrConfig
	}
	return nil
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Transfers uint64 // exchanges completed (including bus errors)
	Overflows uint64 // STARTs refused because a pointer left the buffer
	Errors    uint64 // bus errors
}

// Engine is the bus master bound to one TX/RX buffer pair.
type Engine struct {
	cfg     Config
	buf     *dmabuf.Buffer
	bus     bus.Bus
	ptr     atomic.Uint64
	enabled atomic.Bool

	transfers atomic.Uint64
	overflows atomic.Uint64
	errors    atomic.Uint64
	lastErr   atomic.Pointer[error]
}

// New binds the engine to buf and b with both pointers at slot 0. The
// engine starts disabled.
func New(cfg Config, buf *dmabuf.Buffer, b bus.Bus) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if buf == nil || buf.ItemSize() != cfg.ItemSize {
		return nil, ErrBuffer
	}
	if b == nil {
		return nil, ErrNoBus
	}
	return &Engine{cfg: cfg, buf: buf, bus: b}, nil
}

// Enable arms the engine.
func (e *Engine) Enable() { e.enabled.Store(true) }

// Disable makes START a no-op.
func (e *Engine) Disable() { e.enabled.Store(false) }

// Config returns the validated config.
func (e *Engine) Config() Config { return e.cfg }

// Start exchanges one item and advances both pointers. Router task endpoint.
//
//go:nosplit
func (e *Engine) Start() {
	if !e.enabled.Load() {
		return
	}
	cur := e.ptr.Add(ptrStep) - ptrStep
	tx, rx := int(uint32(cur)), int(uint32(cur>>32))

	if tx >= e.buf.Len() || rx >= e.buf.Len() {
		e.overflows.Add(1)
		return
	}
	if err := e.bus.Transfer(e.buf.TXItem(tx), e.buf.RXItem(rx)); err != nil {
		e.errors.Add(1)
		e.lastErr.Store(&err)
	}
	e.transfers.Add(1)
}

// SetPointers repoints TX and RX to the given slots in one store.
//
//go:nosplit
func (e *Engine) SetPointers(tx, rx uint32) {
	e.ptr.Store(uint64(tx) | uint64(rx)<<32)
}

// Pointers returns the slots the next START will use.
func (e *Engine) Pointers() (tx, rx uint32) {
	p := e.ptr.Load()
	return uint32(p), uint32(p >> 32)
}

// Stats returns a counter snapshot.
func (e *Engine) Stats() Stats {
	return Stats{
		Transfers: e.transfers.Load(),
		Overflows: e.overflows.Load(),
		Errors:    e.errors.Load(),
	}
}

// LastError returns the most recent bus error, or nil.
func (e *Engine) LastError() error {
	if p := e.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}
