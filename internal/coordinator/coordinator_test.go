package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"replicated-log/internal/apierr"
	"replicated-log/internal/dispatch"
	"replicated-log/internal/ledger"
)

// replicateOK returns an httptest server that always acks immediately
// (optionally after a fixed delay), mirroring a replica's /replicate.
func replicateOK(delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "duplicate": false})
	}))
}

func addrOf(s *httptest.Server) string {
	return s.Listener.Addr().String()
}

func newCoordinator(t *testing.T, addrs []string) (*Coordinator, func()) {
	t.Helper()
	ackBus := dispatch.NewAckBus()
	d := dispatch.New(addrs, ackBus, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	c := New(ledger.New(), d, ackBus, nil, len(addrs), nil, nil)
	return c, cancel
}

func TestAppendWriteOneReturnsWithoutWaitingForReplicas(t *testing.T) {
	slow := replicateOK(2 * time.Second)
	defer slow.Close()

	c, cancel := newCoordinator(t, []string{addrOf(slow)})
	defer cancel()

	start := time.Now()
	res, err := c.Append(context.Background(), "b", 1)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("Append(w=1) took %v, want < 200ms", elapsed)
	}
	if res.Seq != 1 || res.W != 1 {
		t.Fatalf("Append() result = %+v", res)
	}
	if len(res.Acks) != 0 {
		t.Fatalf("Append(w=1) acks = %v, want empty (returns before any replica acks)", res.Acks)
	}
}

func TestAppendWriteNPlus1WaitsForAllAcks(t *testing.T) {
	r1 := replicateOK(0)
	defer r1.Close()
	r2 := replicateOK(0)
	defer r2.Close()

	c, cancel := newCoordinator(t, []string{addrOf(r1), addrOf(r2)})
	defer cancel()

	res, err := c.Append(context.Background(), "a", 3)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(res.Acks) != 2 {
		t.Fatalf("Append(w=3) acks = %v, want 2", res.Acks)
	}
	if len(res.Messages) != 1 || res.Messages[0] != "a" {
		t.Fatalf("Append() messages = %v", res.Messages)
	}
}

func TestHighWriteConcernDoesNotBlockLowWriteConcern(t *testing.T) {
	slow := replicateOK(1500 * time.Millisecond)
	defer slow.Close()

	c, cancel := newCoordinator(t, []string{addrOf(slow)})
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	var blockingDuration, fastDuration time.Duration

	go func() {
		defer wg.Done()
		start := time.Now()
		c.Append(context.Background(), "c", 2) // w=N+1, must wait for the slow replica
		blockingDuration = time.Since(start)
	}()

	time.Sleep(20 * time.Millisecond) // let the blocking append register first
	go func() {
		defer wg.Done()
		start := time.Now()
		c.Append(context.Background(), "d", 1) // w=1, must return immediately
		fastDuration = time.Since(start)
	}()

	wg.Wait()

	if fastDuration > 200*time.Millisecond {
		t.Fatalf("w=1 append took %v while a w=N+1 append was in flight, want < 200ms", fastDuration)
	}
	if blockingDuration < 1500*time.Millisecond {
		t.Fatalf("w=N+1 append returned in %v, want >= replica delay of 1.5s", blockingDuration)
	}
}

func TestInvalidWriteConcernRejected(t *testing.T) {
	c, cancel := newCoordinator(t, nil)
	defer cancel()

	if _, err := c.Append(context.Background(), "x", 0); err != apierr.ErrInvalidWriteConcern {
		t.Fatalf("Append(w=0) error = %v, want ErrInvalidWriteConcern", err)
	}
	if _, err := c.Append(context.Background(), "x", c.ReplicaCount()+2); err != apierr.ErrInvalidWriteConcern {
		t.Fatalf("Append(w=N+2) error = %v, want ErrInvalidWriteConcern", err)
	}
}

func TestContextCancellationAbandonsWaitButCommitsEntry(t *testing.T) {
	slow := replicateOK(2 * time.Second)
	defer slow.Close()

	c, cancel := newCoordinator(t, []string{addrOf(slow)})
	defer cancel()

	ctx, cancelReq := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancelReq()

	res, err := c.Append(ctx, "e", 2)
	if err != nil {
		t.Fatalf("Append() error = %v, want the entry to commit despite wait cancellation", err)
	}
	if res.Seq != 1 {
		t.Fatalf("Append() seq = %d, want 1 (entry still committed)", res.Seq)
	}
	if got := c.Size(); got != 1 {
		t.Fatalf("ledger size = %d, want 1 even though the wait was abandoned", got)
	}
}
