package router

import (
	"errors"
	"testing"

	"dmasampler/constants"
	"dmasampler/event"
)

func TestConfigureValidation(t *testing.T) {
	r := New()
	var e event.Event
	task := func() {}

	if err := r.Configure(-1, &e, task, nil); !errors.Is(err, ErrChannel) {
		t.Errorf("negative channel err = %v", err)
	}
	if err := r.Configure(constants.RouterChannels, &e, task, nil); !errors.Is(err, ErrChannel) {
		t.Errorf("overflow channel err = %v", err)
	}
	if err := r.Configure(0, nil, task, nil); !errors.Is(err, ErrEndpoint) {
		t.Errorf("nil event err = %v", err)
	}
	if err := r.Configure(0, &e, nil, nil); !errors.Is(err, ErrEndpoint) {
		t.Errorf("nil task err = %v", err)
	}
	if err := r.Enable(constants.RouterChannels); !errors.Is(err, ErrChannel) {
		t.Errorf("Enable err = %v", err)
	}
	if err := r.Disable(-1); !errors.Is(err, ErrChannel) {
		t.Errorf("Disable err = %v", err)
	}
}

func TestTaskThenForkOnEnabledChannel(t *testing.T) {
	r := New()
	var (
		e     event.Event
		order []string
	)
	err := r.Configure(constants.TriggerChannel, &e,
		func() { order = append(order, "start") },
		func() { order = append(order, "count") })
	if err != nil {
		t.Fatal(err)
	}

	e.Fire()
	if len(order) != 0 {
		t.Fatal("disabled channel must not dispatch")
	}

	r.Enable(constants.TriggerChannel)
	e.Fire()
	if len(order) != 2 || order[0] != "start" || order[1] != "count" {
		t.Fatalf("order = %v, want [start count]", order)
	}
	if r.Routed(constants.TriggerChannel) != 1 {
		t.Fatalf("Routed = %d", r.Routed(constants.TriggerChannel))
	}
}

func TestDisableStopsDispatch(t *testing.T) {
	r := New()
	var (
		e event.Event
		n int
	)
	r.Configure(1, &e, func() { n++ }, nil)
	r.Enable(1)
	e.Fire()
	r.Disable(1)
	e.Fire()

	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
	if r.Enabled(1) {
		t.Fatal("channel should report disabled")
	}
	if !e.Pending() {
		t.Fatal("event latches regardless of channel state")
	}
}

func TestReconfigureUnlinksPreviousEvent(t *testing.T) {
	r := New()
	var (
		a, b event.Event
		n    int
	)
	r.Configure(3, &a, func() { n++ }, nil)
	r.Enable(3)
	r.Configure(3, &b, func() { n += 10 }, nil)

	a.Fire()
	if n != 0 {
		t.Fatal("old event must no longer dispatch")
	}
	b.Fire()
	if n != 10 {
		t.Fatalf("n = %d, want 10", n)
	}
	if !r.Enabled(3) {
		t.Fatal("reconfigure keeps the enable state")
	}
}

func TestOutOfRangeQueries(t *testing.T) {
	r := New()
	if r.Enabled(-1) || r.Routed(99) != 0 {
		t.Fatal("out-of-range queries must return zero values")
	}
}
