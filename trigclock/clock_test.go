package trigclock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRejectsBadPeriod(t *testing.T) {
	for _, us := range []int{0, -100} {
		if _, err := New(Config{PeriodUs: us}); !errors.Is(err, ErrPeriod) {
			t.Errorf("New(%d) err = %v, want ErrPeriod", us, err)
		}
	}
}

func TestPeriod(t *testing.T) {
	if got := (Config{PeriodUs: 100}).Period(); got != 100*time.Microsecond {
		t.Fatalf("Period = %v", got)
	}
}

func TestStepFiresLinkedTasks(t *testing.T) {
	c, err := New(Config{PeriodUs: 100})
	if err != nil {
		t.Fatal(err)
	}
	var n int
	c.Event().Link(func() { n++ })

	c.Step(250)
	if n != 250 {
		t.Fatalf("linked task ran %d times, want 250", n)
	}
	if c.Ticks() != 250 {
		t.Fatalf("Ticks = %d, want 250", c.Ticks())
	}
	if c.Event().Pending() {
		t.Fatal("tick latch should be cleared by the compare-clear short")
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	c, _ := New(Config{PeriodUs: 200})
	var n atomic.Uint64
	c.Event().Link(func() { n.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if n.Load() < 10 {
		t.Fatalf("only %d ticks in 2s", n.Load())
	}
	if c.Running() {
		t.Fatal("clock should report stopped after Run returns")
	}
}

func TestRunTwice(t *testing.T) {
	c, _ := New(Config{PeriodUs: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx)
	deadline := time.Now().Add(time.Second)
	for !c.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := c.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Fatalf("second Run err = %v, want ErrRunning", err)
	}
}
