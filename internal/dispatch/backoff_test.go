package dispatch

import (
	"testing"
	"time"
)

func TestNextBackoffGrowsAndCaps(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 3; attempt++ {
		d := nextBackoff(attempt)
		floor := backoffInitial * time.Duration(1<<uint(attempt-1))
		if d < floor {
			t.Fatalf("nextBackoff(%d) = %v, want >= %v", attempt, d, floor)
		}
		ceil := floor + time.Duration(float64(floor)*backoffJitterFrac) + time.Millisecond
		if d > ceil {
			t.Fatalf("nextBackoff(%d) = %v, want <= %v", attempt, d, ceil)
		}
		if d <= prev && attempt > 1 {
			t.Fatalf("nextBackoff(%d) = %v did not grow past attempt %d's %v", attempt, d, attempt-1, prev)
		}
		prev = d
	}

	// Large attempt counts must respect the cap (plus jitter headroom).
	d := nextBackoff(100)
	maxAllowed := backoffCap + time.Duration(float64(backoffCap)*backoffJitterFrac) + time.Millisecond
	if d > maxAllowed {
		t.Fatalf("nextBackoff(100) = %v, want <= cap+jitter (%v)", d, maxAllowed)
	}
}

func TestFifoQueuePreservesOrder(t *testing.T) {
	q := newFIFOQueue()
	q.push(entry{seq: 1, payload: "a"})
	q.push(entry{seq: 2, payload: "b"})
	q.push(entry{seq: 3, payload: "c"})

	for _, want := range []int64{1, 2, 3} {
		got, ok := q.pop()
		if !ok || got.seq != want {
			t.Fatalf("pop() = (%v, %v), want seq %d", got, ok, want)
		}
	}
}

func TestFifoQueuePopBlocksUntilPush(t *testing.T) {
	q := newFIFOQueue()
	done := make(chan entry, 1)
	go func() {
		e, ok := q.pop()
		if ok {
			done <- e
		}
	}()

	select {
	case <-done:
		t.Fatal("pop() returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(entry{seq: 42, payload: "x"})

	select {
	case e := <-done:
		if e.seq != 42 {
			t.Fatalf("pop() seq = %d, want 42", e.seq)
		}
	case <-time.After(time.Second):
		t.Fatal("pop() never returned after push")
	}
}

func TestFifoQueueCloseUnblocksPop(t *testing.T) {
	q := newFIFOQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()

	q.close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("pop() returned ok=true on a closed, empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("pop() never unblocked after close")
	}
}
