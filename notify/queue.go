package notify

import (
	"context"
	"sync/atomic"

	"dmasampler/constants"
	"dmasampler/ring"
	"dmasampler/types"
)

// Queue delivers every descriptor in order while the ring has room. When
// the consumer falls a full ring behind, new descriptors are dropped and
// counted; the unread ones are kept.
type Queue struct {
	ring   *ring.Ring
	signal chan struct{}

	posted    atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueue returns a queue holding depth descriptors, rounded up to a
// power of two. Non-positive depth selects the default.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = constants.QueueDepth
	}
	size := 1
	for size < depth {
		size <<= 1
	}
	return &Queue{
		ring:   ring.New(size),
		signal: make(chan struct{}, 1),
	}
}

// Depth returns the ring capacity.
func (q *Queue) Depth() int { return q.ring.Cap() }

// Post enqueues d and wakes the consumer.
//
//go:nosplit
func (q *Queue) Post(d types.Descriptor) {
	q.posted.Add(1)
	if !q.ring.Push(d.Pack()) {
		q.dropped.Add(1)
		return
	}
	wake(q.signal)
}

// TryWait dequeues the oldest descriptor if any.
func (q *Queue) TryWait() (types.Descriptor, bool) {
	w, ok := q.ring.Pop()
	if !ok {
		return types.Descriptor{}, false
	}
	q.delivered.Add(1)
	return types.Unpack(w), true
}

// Wait blocks until a descriptor is queued.
func (q *Queue) Wait(ctx context.Context) (types.Descriptor, error) {
	for {
		if d, ok := q.TryWait(); ok {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return types.Descriptor{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Stats returns a counter snapshot.
func (q *Queue) Stats() Stats {
	return Stats{
		Posted:    q.posted.Load(),
		Delivered: q.delivered.Load(),
		Dropped:   q.dropped.Load(),
	}
}
