package notify

import (
	"context"
	"sync/atomic"

	"dmasampler/types"
)

// Latest is a coalescing single-slot mailbox. Two posts before one Wait
// produce one wake-up carrying the second descriptor.
type Latest struct {
	cell   atomic.Uint64 // packed descriptor, 0 when consumed
	signal chan struct{}

	posted    atomic.Uint64
	delivered atomic.Uint64
	coalesced atomic.Uint64
}

// NewLatest returns an empty coalescing mailbox.
func NewLatest() *Latest {
	return &Latest{signal: make(chan struct{}, 1)}
}

// Post replaces any unread descriptor with d and wakes the consumer.
//
//go:nosplit
func (l *Latest) Post(d types.Descriptor) {
	l.posted.Add(1)
	if l.cell.Swap(d.Pack()) != 0 {
		l.coalesced.Add(1)
	}
	wake(l.signal)
}

// TryWait takes the current descriptor if any.
func (l *Latest) TryWait() (types.Descriptor, bool) {
	w := l.cell.Swap(0)
	if w == 0 {
		return types.Descriptor{}, false
	}
	l.delivered.Add(1)
	return types.Unpack(w), true
}

// Wait blocks until a descriptor is posted. A signal left over from a
// descriptor already taken by TryWait is absorbed and waiting resumes.
func (l *Latest) Wait(ctx context.Context) (types.Descriptor, error) {
	for {
		if d, ok := l.TryWait(); ok {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return types.Descriptor{}, ctx.Err()
		case <-l.signal:
		}
	}
}

// Stats returns a counter snapshot.
func (l *Latest) Stats() Stats {
	return Stats{
		Posted:    l.posted.Load(),
		Delivered: l.delivered.Load(),
		Coalesced: l.coalesced.Load(),
	}
}
