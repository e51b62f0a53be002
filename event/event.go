// ============================================================================
// HARDWARE EVENT ENDPOINTS
// ============================================================================
//
// An Event models a peripheral event register: a latched flag set by the
// peripheral and cleared only by software, plus the set of task endpoints
// statically linked to it through the event router.
//
// Semantics:
//   - Fire latches the flag, then runs every linked hook synchronously in
//     the firing goroutine. No scheduler hop sits between event and task.
//   - Clear is the only way to drop the latch; a handler that forgets to
//     clear sees the event again on its next run.
//   - Hooks are swapped atomically, so linking at bring-up never races a
//     firing peripheral.

package event

import (
	"sync"
	"sync/atomic"
)

// Task is a peripheral task endpoint (START, COUNT, CLEAR, ...).
type Task func()

// Event is one latched peripheral event with its linked hooks.
type Event struct {
	latched atomic.Bool
	fired   atomic.Uint64

	mu    sync.Mutex
	hooks atomic.Pointer[[]Task]
}

// Fire latches the event and runs linked hooks in order.
//
//go:nosplit
func (e *Event) Fire() {
	e.latched.Store(true)
	e.fired.Add(1)
	if hs := e.hooks.Load(); hs != nil {
		for _, h := range *hs {
			h()
		}
	}
}

// Pending reports whether the event is latched.
//
//go:nosplit
func (e *Event) Pending() bool {
	return e.latched.Load()
}

// Clear drops the latch.
//
//go:nosplit
func (e *Event) Clear() {
	e.latched.Store(false)
}

// Fired returns how many times the event has fired since construction.
func (e *Event) Fired() uint64 {
	return e.fired.Load()
}

// Link appends a hook and returns its index for Unlink.
func (e *Event) Link(t Task) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var next []Task
	if hs := e.hooks.Load(); hs != nil {
		next = append(next, *hs...)
	}
	next = append(next, t)
	e.hooks.Store(&next)
	return len(next) - 1
}

// Unlink replaces the hook at idx with a no-op. Indices of other hooks stay
// valid.
func (e *Event) Unlink(idx int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hs := e.hooks.Load()
	if hs == nil || idx < 0 || idx >= len(*hs) {
		return
	}
	next := append([]Task(nil), *hs...)
	next[idx] = func() {}
	e.hooks.Store(&next)
}
