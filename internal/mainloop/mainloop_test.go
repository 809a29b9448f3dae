package mainloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/xpbridge/internal/testutil/testlog"
)

func TestDrainRunsInOrder(t *testing.T) {
	testlog.Start(t)
	q := NewQueue()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(func() { got = append(got, i) })
	}
	q.Enqueue(nil)
	if n := q.Drain(); n != 5 {
		t.Fatalf("drained %d actions, want 5", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after drain")
	}
}

func TestActionsEnqueuedDuringDrainWaitForNextDrain(t *testing.T) {
	testlog.Start(t)
	q := NewQueue()
	ran := 0
	q.Enqueue(func() {
		q.Enqueue(func() { ran++ })
	})
	q.Drain()
	if ran != 0 || q.Len() != 1 {
		t.Fatalf("nested action ran early: ran=%d len=%d", ran, q.Len())
	}
	q.Drain()
	if ran != 1 {
		t.Fatalf("nested action did not run")
	}
}

func TestPanickingActionDoesNotStopDrain(t *testing.T) {
	testlog.Start(t)
	q := NewQueue()
	ran := false
	q.Enqueue(func() { panic("boom") })
	q.Enqueue(func() { ran = true })
	q.Drain()
	if !ran {
		t.Fatalf("action after panic did not run")
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	testlog.Start(t)
	q := NewQueue()
	var count atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(func() { count.Add(1) })
			}
		}()
	}
	wg.Wait()
	q.Drain()
	if count.Load() != 800 {
		t.Fatalf("ran %d actions, want 800", count.Load())
	}
}

func TestLoopRunsHooksAndStops(t *testing.T) {
	testlog.Start(t)
	var hookCalls atomic.Int64
	loop := NewLoop(nil, time.Millisecond, func(time.Time) { hookCalls.Add(1) })

	done := make(chan struct{})
	loop.Queue().Enqueue(func() { close(done) })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("queued action never ran")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run returned %v", err)
	}
	if hookCalls.Load() == 0 {
		t.Fatalf("hooks never ran")
	}
}

func TestLoopRejectsZeroTick(t *testing.T) {
	testlog.Start(t)
	err := NewLoop(nil, 0).Run(context.Background())
	if !errors.Is(err, ErrInvalidTick) {
		t.Fatalf("expected ErrInvalidTick, got %v", err)
	}
}
