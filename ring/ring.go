// ring.go
//
// Lock-free single-producer/single-consumer ring of packed descriptor words.
// The interrupt handler is the only producer and the consumer loop the only
// reader. Producer and consumer cursors sit on separate cache lines and each
// slot carries a sequence stamp, so Push and Pop are wait-free.
//
// Sequence contract for slot i at lap L (size S):
//   seq == L*S+i        slot free, producer may write
//   seq == L*S+i+1      slot published, consumer may read
// The release store of seq happens-after the payload write, so a reader that
// observes the published stamp also observes the payload.

package ring

import (
	"sync/atomic"

	"dmasampler/utils"
)

// slot couples a payload word with its sequence stamp.
type slot struct {
	seq atomic.Uint64
	val uint64
}

// Ring is a fixed-capacity circular buffer dedicated to one producer and
// one consumer.
type Ring struct {
	_    [64]byte // producer tail isolated on its own cache-line
	tail uint64
	//lint:ignore U1000 padding to keep head & tail on different cache-lines
	_pad1 [64]byte
	head  uint64
	//lint:ignore U1000 padding to keep hot fields from colliding with metadata
	_pad2 [64]byte
	mask  uint64
	buf   []slot
}

// New allocates a ring whose size must be a power-of-two; otherwise it
// panics so that the bit-masking arithmetic stays valid.
func New(size int) *Ring {
	if !utils.IsPow2(size) {
		panic("ring: size must be >0 and a power of two")
	}
	r := &Ring{
		mask: uint64(size - 1),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq.Store(uint64(i))
	}
	return r
}

// Cap returns the slot count.
func (r *Ring) Cap() int { return len(r.buf) }

// Push enqueues v, returning false if the buffer is full.
//
//go:nosplit
func (r *Ring) Push(v uint64) bool {
	t := r.tail
	s := &r.buf[t&r.mask]
	if s.seq.Load() != t {
		return false // consumer has not yet reclaimed the slot
	}
	s.val = v
	s.seq.Store(t + 1)
	r.tail = t + 1
	return true
}

// Pop dequeues one word; ok is false if the buffer is empty.
//
//go:nosplit
func (r *Ring) Pop() (v uint64, ok bool) {
	h := r.head
	s := &r.buf[h&r.mask]
	if s.seq.Load() != h+1 {
		return 0, false // producer has not yet published to the slot
	}
	v = s.val
	s.seq.Store(h + uint64(len(r.buf)))
	r.head = h + 1
	return v, true
}
