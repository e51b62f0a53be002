package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dmasampler/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		mode  string
		depth int
		want  string
		err   error
	}{
		{"", 0, "latest", nil},
		{ModeCoalesce, 0, "latest", nil},
		{ModeQueue, 3, "queue", nil},
		{"fifo", 0, "", ErrMode},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			m, err := New(tt.mode, tt.depth)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			switch m.(type) {
			case *Latest:
				if tt.want != "latest" {
					t.Fatalf("got Latest, want %s", tt.want)
				}
			case *Queue:
				if tt.want != "queue" {
					t.Fatalf("got Queue, want %s", tt.want)
				}
				if d := m.(*Queue).Depth(); d != 4 {
					t.Fatalf("depth 3 rounded to %d, want 4", d)
				}
			}
		})
	}
}

func TestLatestCoalesces(t *testing.T) {
	l := NewLatest()
	first := types.Descriptor{Start: 0, Count: 1000}
	second := types.Descriptor{Start: 1000, Count: 1000}

	l.Post(first)
	l.Post(second)

	d, err := l.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d != second {
		t.Fatalf("got %+v, want the second descriptor", d)
	}
	if _, ok := l.TryWait(); ok {
		t.Fatal("two posts must yield exactly one delivery")
	}
	st := l.Stats()
	if st.Posted != 2 || st.Delivered != 1 || st.Coalesced != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLatestStaleSignalDoesNotRedeliver(t *testing.T) {
	l := NewLatest()
	l.Post(types.Descriptor{Count: 1})
	if _, ok := l.TryWait(); !ok {
		t.Fatal("TryWait should take the descriptor")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline", err)
	}
}

func TestLatestWakesBlockedConsumer(t *testing.T) {
	l := NewLatest()
	want := types.Descriptor{Start: 1000, Count: 1042, Clamped: true}

	got := make(chan types.Descriptor, 1)
	go func() {
		d, _ := l.Wait(context.Background())
		got <- d
	}()
	time.Sleep(2 * time.Millisecond)
	l.Post(want)

	select {
	case d := <-got:
		if d != want {
			t.Fatalf("got %+v, want %+v", d, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not woken")
	}
}

func TestQueueDeliversInOrder(t *testing.T) {
	q := NewQueue(4)
	for i := uint32(0); i < 4; i++ {
		q.Post(types.Descriptor{Start: i})
	}
	for i := uint32(0); i < 4; i++ {
		d, err := q.Wait(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if d.Start != i {
			t.Fatalf("got start %d, want %d", d.Start, i)
		}
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(2)
	for i := uint32(0); i < 5; i++ {
		q.Post(types.Descriptor{Start: i})
	}
	st := q.Stats()
	if st.Posted != 5 || st.Dropped != 3 {
		t.Fatalf("stats = %+v", st)
	}
	if d, _ := q.TryWait(); d.Start != 0 {
		t.Fatalf("oldest kept = %d, want 0", d.Start)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	for _, m := range []Mailbox{NewLatest(), NewQueue(0)} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("%T: err = %v", m, err)
		}
	}
}

func TestLatestConcurrentNeverTorn(t *testing.T) {
	l := NewLatest()
	const n = 50_000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(1); i <= n; i++ {
			l.Post(types.Descriptor{Start: i, Count: i * 2})
		}
	}()

	var last uint32
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for last < n {
		d, err := l.Wait(ctx)
		if err != nil {
			t.Fatalf("stalled at %d: %v", last, err)
		}
		if d.Count != d.Start*2 {
			t.Fatalf("torn descriptor %+v", d)
		}
		if d.Start <= last {
			t.Fatalf("went backwards: %d after %d", d.Start, last)
		}
		last = d.Start
	}
	wg.Wait()
}

func BenchmarkLatestPost(b *testing.B) {
	l := NewLatest()
	d := types.Descriptor{Start: 1000, Count: 1000}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Post(d)
		l.TryWait()
	}
}
