// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🔀 EVENT ROUTER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Static Event→Task Linkage
//
// Description:
//   Programmable channels that connect one event endpoint to a task endpoint plus an optional
//   fork task. Configured once at bring-up; afterwards every event fires its channel's tasks in
//   the event source's goroutine, with no software between the tick and the transfer.
//
// Channel semantics:
//   - Disabled channels are linked but inert; Enable arms them atomically.
//   - Task runs before fork, matching TEP before FORK.TEP ordering.
//   - Reconfiguring a channel unlinks the previous event.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package router

import (
	"errors"
	"sync"
	"sync/atomic"

	"dmasampler/constants"
	"dmasampler/event"
)

var (
	// ErrChannel is returned for an index outside [0, RouterChannels).
	ErrChannel = errors.New("router: channel out of range")
	// ErrEndpoint is returned when the event or main task is missing.
	ErrEndpoint = errors.New("router: event and task endpoints are required")
)

// channel is one EEP → TEP (+ FORK) linkage.
type channel struct {
	eep     *event.Event
	hook    int
	tep     event.Task
	fork    event.Task
	enabled atomic.Bool
	routed  atomic.Uint64
}

func (c *channel) dispatch() {
	if !c.enabled.Load() {
		return
	}
	c.routed.Add(1)
	c.tep()
	if c.fork != nil {
		c.fork()
	}
}

// Router owns a fixed bank of channels.
type Router struct {
	mu       sync.Mutex
	channels [constants.RouterChannels]channel
}

// New returns a router with all channels unconfigured and disabled.
func New() *Router {
	return &Router{}
}

// Configure links eep to tep and fork on channel ch. fork may be nil.
// The channel stays in its current enable state.
func (r *Router) Configure(ch int, eep *event.Event, tep, fork event.Task) error {
	if ch < 0 || ch >= len(r.channels) {
		return ErrChannel
	}
	if eep == nil || tep == nil {
		return ErrEndpoint
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := &r.channels[ch]
	wasEnabled := c.enabled.Swap(false)
	if c.eep != nil {
		c.eep.Unlink(c.hook)
	}
	c.eep, c.tep, c.fork = eep, tep, fork
	c.hook = eep.Link(c.dispatch)
	c.enabled.Store(wasEnabled)
	return nil
}

// Enable arms channel ch.
func (r *Router) Enable(ch int) error {
	if ch < 0 || ch >= len(r.channels) {
		return ErrChannel
	}
	r.channels[ch].enabled.Store(true)
	return nil
}

// Disable disarms channel ch. Its event still latches; tasks no longer run.
func (r *Router) Disable(ch int) error {
	if ch < 0 || ch >= len(r.channels) {
		return ErrChannel
	}
	r.channels[ch].enabled.Store(false)
	return nil
}

// Enabled reports whether channel ch is armed.
func (r *Router) Enabled(ch int) bool {
	if ch < 0 || ch >= len(r.channels) {
		return false
	}
	return r.channels[ch].enabled.Load()
}

// Routed returns how many events channel ch has dispatched.
func (r *Router) Routed(ch int) uint64 {
	if ch < 0 || ch >= len(r.channels) {
		return 0
	}
	return r.channels[ch].routed.Load()
}
