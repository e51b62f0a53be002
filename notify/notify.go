// ============================================================================
// BATCH NOTIFICATION MAILBOX
// ============================================================================
//
// Carries descriptors from the interrupt handler to the consumer loop.
//
// Contract:
//   - Post never blocks and never allocates; it is called from interrupt
//     context.
//   - The descriptor store happens-before the wake signal, and the consumer
//     reads the descriptor only after receiving the signal, so a woken
//     consumer always sees the descriptor that caused the wake.
//   - Exactly one consumer goroutine calls Wait/TryWait.
//
// Modes:
//   - Latest: one slot, newer descriptors replace unread ones (coalescing)
//   - Queue:  bounded SPSC ring, every descriptor delivered while room

package notify

import (
	"context"
	"errors"

	"dmasampler/types"
)

// Mode names accepted by New.
const (
	ModeCoalesce = "coalesce"
	ModeQueue    = "queue"
)

// ErrMode is returned by New for an unknown mode.
var ErrMode = errors.New("notify: unknown mode")

// Stats is a snapshot of mailbox counters.
type Stats struct {
	Posted    uint64 // descriptors handed to Post
	Delivered uint64 // descriptors returned to the consumer
	Coalesced uint64 // unread descriptors replaced by a newer one
	Dropped   uint64 // descriptors refused because the queue was full
}

// Mailbox is the handler-to-consumer hand-off.
type Mailbox interface {
	// Post publishes d and wakes the consumer.
	Post(d types.Descriptor)
	// Wait blocks until a descriptor is available or ctx is done.
	Wait(ctx context.Context) (types.Descriptor, error)
	// TryWait returns a descriptor if one is ready.
	TryWait() (types.Descriptor, bool)
	// Stats returns a counter snapshot.
	Stats() Stats
}

// New builds the mailbox for mode. depth applies to ModeQueue only.
func New(mode string, depth int) (Mailbox, error) {
	switch mode {
	case ModeCoalesce, "":
		return NewLatest(), nil
	case ModeQueue:
		return NewQueue(depth), nil
	}
	return nil, ErrMode
}

// wake performs a non-blocking send on a capacity-1 signal channel.
// Reports false when a signal was already pending.
//
//go:nosplit
func wake(ch chan struct{}) bool {
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}
