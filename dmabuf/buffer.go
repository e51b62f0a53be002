// ============================================================================
// TX/RX RING BUFFER PAIR
// ============================================================================
//
// Two parallel flat arrays of N+M fixed-size items. TX holds what the
// transfer engine clocks out; RX receives what it clocks in. The engine is
// the only writer of RX; the consumer reads windows described by batch
// descriptors and must not mutate them.
//
// Layout:
//   - slots [0, N)   logical cycle, two halves of N/2
//   - slots [N, N+M) end margin absorbing handler latency
//
// Allocated once; never resized.

package dmabuf

import (
	"errors"
)

var (
	// ErrGeometry is returned for non-positive or odd item counts.
	ErrGeometry = errors.New("dmabuf: items must be positive and even, margin non-negative")
	// ErrItemSize is returned for a non-positive item size.
	ErrItemSize = errors.New("dmabuf: item size must be positive")
	// ErrWindow is returned for a window outside the allocated slots.
	ErrWindow = errors.New("dmabuf: window out of range")
)

// Buffer is the TX/RX pair.
type Buffer struct {
	items    int
	margin   int
	itemSize int
	tx       []byte
	rx       []byte
}

// New allocates a pair of (items+margin)*itemSize byte arrays.
func New(items, margin, itemSize int) (*Buffer, error) {
	if items <= 0 || items%2 != 0 || margin < 0 {
		return nil, ErrGeometry
	}
	if itemSize <= 0 {
		return nil, ErrItemSize
	}
	total := (items + margin) * itemSize
	return &Buffer{
		items:    items,
		margin:   margin,
		itemSize: itemSize,
		tx:       make([]byte, total),
		rx:       make([]byte, total),
	}, nil
}

// Items returns N.
func (b *Buffer) Items() int { return b.items }

// Margin returns M.
func (b *Buffer) Margin() int { return b.margin }

// Len returns N+M, the slot count of each array.
func (b *Buffer) Len() int { return b.items + b.margin }

// ItemSize returns the byte width of one slot.
func (b *Buffer) ItemSize() int { return b.itemSize }

// TXItem returns slot i of TX. The slice aliases the buffer.
//
//go:nosplit
func (b *Buffer) TXItem(i int) []byte {
	off := i * b.itemSize
	return b.tx[off : off+b.itemSize : off+b.itemSize]
}

// RXItem returns slot i of RX. The slice aliases the buffer.
//
//go:nosplit
func (b *Buffer) RXItem(i int) []byte {
	off := i * b.itemSize
	return b.rx[off : off+b.itemSize : off+b.itemSize]
}

// FillTX calls fn for every logical TX slot [0, N). Must run before the
// engine is started.
func (b *Buffer) FillTX(fn func(i int, item []byte)) {
	for i := 0; i < b.items; i++ {
		fn(i, b.TXItem(i))
	}
}

// Window returns a read-only view of RX slots [start, start+count).
func (b *Buffer) Window(start, count int) (Window, error) {
	if start < 0 || count < 0 || start+count > b.Len() {
		return Window{}, ErrWindow
	}
	return Window{buf: b, start: start, count: count}, nil
}

// ============================================================================
// READ-ONLY RX WINDOW
// ============================================================================

// Window is a view of a contiguous RX region. It holds no copy; reading it
// after the same half has been overwritten by a later cycle returns the
// newer data.
type Window struct {
	buf   *Buffer
	start int
	count int
}

// Start returns the first slot index.
func (w Window) Start() int { return w.start }

// Len returns the number of items in the window.
func (w Window) Len() int { return w.count }

// Item returns the i-th item of the window (slot Start+i).
// ⚠️ The slice aliases RX; callers must not modify it.
func (w Window) Item(i int) []byte {
	return w.buf.RXItem(w.start + i)
}

// Bytes returns the window's contiguous RX bytes.
// ⚠️ Aliases RX; callers must not modify it.
func (w Window) Bytes() []byte {
	if w.buf == nil {
		return nil
	}
	lo := w.start * w.buf.itemSize
	hi := (w.start + w.count) * w.buf.itemSize
	return w.buf.rx[lo:hi:hi]
}

// CopyTo copies the window into dst and returns the number of bytes copied.
func (w Window) CopyTo(dst []byte) int {
	return copy(dst, w.Bytes())
}
