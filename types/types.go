package types

// ============================================================================
// BATCH DESCRIPTOR - PACKED SINGLE-WORD REPRESENTATION
// ============================================================================

// Descriptor names the newest contiguous region of RX that is safe to read.
//
// Start and Count are slot indices into the RX array. Clamped is set when the
// counter overran past the end margin and Count was cut back to keep
// Start+Count within the allocated buffer.
type Descriptor struct {
	Start   uint32
	Count   uint32
	Clamped bool
}

// clampedBit marks a clamped descriptor in the packed word.
const clampedBit = uint64(1) << 63

// presentBit is set on every packed word so that zero always means "empty".
const presentBit = uint64(1) << 62

// countMask keeps Count to 30 bits so both flags fit in the same word.
const countMask = uint64(1)<<30 - 1

// Pack encodes the descriptor into one machine word so it can be published
// with a single atomic store.
//
// Layout:
//   - bits  0..31: Start
//   - bits 32..61: Count
//   - bit      62: always set, a packed word is never zero
//   - bit      63: Clamped
//
//go:nosplit
func (d Descriptor) Pack() uint64 {
	w := uint64(d.Start) | (uint64(d.Count)&countMask)<<32 | presentBit
	if d.Clamped {
		w |= clampedBit
	}
	return w
}

// Unpack decodes a word produced by Pack.
//
//go:nosplit
func Unpack(w uint64) Descriptor {
	return Descriptor{
		Start:   uint32(w),
		Count:   uint32(w>>32) & uint32(countMask),
		Clamped: w&clampedBit != 0,
	}
}

// End returns the first slot past the described window.
func (d Descriptor) End() uint32 {
	return d.Start + d.Count
}

// ============================================================================
// HANDLER STATE MACHINE
// ============================================================================

// Phase is the batch publisher state within one cycle.
type Phase uint32

const (
	// AwaitingHalf waits for the counter to reach N/2.
	AwaitingHalf Phase = iota
	// AwaitingFull waits for the counter to reach N.
	AwaitingFull
)

func (p Phase) String() string {
	switch p {
	case AwaitingHalf:
		return "awaiting-half"
	case AwaitingFull:
		return "awaiting-full"
	}
	return "unknown"
}

// Branch names which threshold produced a descriptor.
type Branch uint8

const (
	BranchHalf Branch = iota
	BranchFull
)

func (b Branch) String() string {
	if b == BranchHalf {
		return "half"
	}
	return "full"
}
