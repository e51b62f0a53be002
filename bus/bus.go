// ============================================================================
// BUS COLLABORATOR
// ============================================================================
//
// The transfer engine exchanges one fixed-size item per trigger through a
// Bus. Frequency and pin assignment belong to whoever builds the Bus; the
// acquisition core only calls Transfer.
//
// Implementations:
//   - Loopback: MISO wired to MOSI, rx = tx
//   - Func:     adapter for ad-hoc transforms in tests and tools
//   - Register: simulated sensor answering register reads

package bus

import (
	"errors"
	"sync/atomic"
)

// ErrLength is returned when tx and rx differ in length.
var ErrLength = errors.New("bus: tx and rx length mismatch")

// ErrDevice is returned by New for an unknown device name.
var ErrDevice = errors.New("bus: unknown device")

// Device names accepted by New.
const (
	DeviceLoopback = "loopback"
	DeviceRegister = "register"
)

// Bus performs one full-duplex exchange. Transfer runs on the trigger path
// and must not block.
type Bus interface {
	Transfer(tx, rx []byte) error
}

// New returns the simulated device named by device. An empty name selects
// the loopback.
func New(device string) (Bus, error) {
	switch device {
	case DeviceLoopback, "":
		return Loopback{}, nil
	case DeviceRegister:
		return NewRegister(), nil
	}
	return nil, ErrDevice
}

// ============================================================================
// LOOPBACK
// ============================================================================

// Loopback echoes every transmitted byte back.
type Loopback struct{}

// Transfer copies tx into rx.
//
//go:nosplit
func (Loopback) Transfer(tx, rx []byte) error {
	if len(tx) != len(rx) {
		return ErrLength
	}
	copy(rx, tx)
	return nil
}

// ============================================================================
// FUNC ADAPTER
// ============================================================================

// Func adapts a plain function to Bus.
type Func func(tx, rx []byte) error

// Transfer calls f.
func (f Func) Transfer(tx, rx []byte) error {
	return f(tx, rx)
}

// ============================================================================
// SIMULATED REGISTER DEVICE
// ============================================================================

// ReadCommand is the command byte that selects a register read.
const ReadCommand = 0x5

// Register models a two-byte command/address device: a (ReadCommand, addr)
// item answers (addr, value[addr]). Any other command answers (cmd, 0x00).
type Register struct {
	regs  [256]atomic.Uint32
	reads atomic.Uint64
}

// NewRegister returns a device whose registers hold their own address.
func NewRegister() *Register {
	r := &Register{}
	for i := range r.regs {
		r.regs[i].Store(uint32(i))
	}
	return r
}

// Set stores v in register addr.
func (r *Register) Set(addr, v byte) {
	r.regs[addr].Store(uint32(v))
}

// Reads returns the number of register reads served.
func (r *Register) Reads() uint64 {
	return r.reads.Load()
}

// Transfer answers one two-byte item.
func (r *Register) Transfer(tx, rx []byte) error {
	if len(tx) != len(rx) {
		return ErrLength
	}
	if len(tx) < 2 {
		copy(rx, tx)
		return nil
	}
	if tx[0] != ReadCommand {
		rx[0], rx[1] = tx[0], 0
		return nil
	}
	r.reads.Add(1)
	rx[0] = tx[1]
	rx[1] = byte(r.regs[tx[1]].Load())
	return nil
}
