// pinned_consumer.go
//
// Consumer loop on a dedicated OS thread pinned to one core.
//
//   • While publishes keep arriving (control.Active) the loop polls the
//     mailbox with TryWait and yields between misses, skipping the
//     channel wake-up on the hot path.
//   • After spinBudget misses, or once the publisher has gone quiet, it
//     drops to a blocking Wait.
//   • Exits on control.Stopping(), ctx cancellation or a callback error,
//     and reports the result on the returned channel exactly once.

package pipeline

import (
	"context"
	"errors"
	"runtime"

	"dmasampler/control"
	"dmasampler/debug"
)

// spinBudget is the number of empty polls before blocking.
const spinBudget = 256

// PinnedConsumer runs fn for every batch on a locked OS thread bound to
// core. A negative core leaves the thread unpinned. The returned channel
// yields nil on clean shutdown or the first error, then closes.
func (p *Pipeline) PinnedConsumer(ctx context.Context, core int, fn func(Batch) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		if err := setAffinity(core); err != nil {
			debug.DropError("PINNED CONSUMER", err)
		}
		var err error
		defer func() {
			runtime.UnlockOSThread()
			done <- err
			close(done)
		}()
		err = p.pinnedLoop(ctx, fn)
	}()
	return done
}

func (p *Pipeline) pinnedLoop(ctx context.Context, fn func(Batch) error) error {
	miss := 0
	for !control.Stopping() && ctx.Err() == nil {
		b, ok, err := p.TryWait()
		if err != nil {
			return err
		}
		if !ok {
			if miss < spinBudget && control.Active() {
				miss++
				runtime.Gosched()
				continue
			}
			miss = 0
			if b, err = p.Wait(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			}
		}
		miss = 0
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}
