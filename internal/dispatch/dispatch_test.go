package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(replicateResponse{Status: "ok", Duplicate: false})
	}))
	defer srv.Close()

	addr := srv.Listener.Addr().String()
	ackBus := NewAckBus()
	d := New([]string{addr}, ackBus, nil, nil)

	pa := NewPendingAppend(1, 2)
	ackBus.Register(pa)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue(addr, 1, "hello")

	acks := pa.WaitForAcks(ctx)
	if len(acks) != 1 || acks[0] != addr {
		t.Fatalf("WaitForAcks() = %v, want [%s]", acks, addr)
	}
	if got := atomic.LoadInt32(&attempts); got < 3 {
		t.Fatalf("server saw %d attempts, want >= 3 (two failures then success)", got)
	}
}

func TestDispatcherDuplicateCountsAsAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(replicateResponse{Status: "ok", Duplicate: true})
	}))
	defer srv.Close()

	addr := srv.Listener.Addr().String()
	ackBus := NewAckBus()
	d := New([]string{addr}, ackBus, nil, nil)

	pa := NewPendingAppend(7, 2)
	ackBus.Register(pa)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	d.Enqueue(addr, 7, "x")

	acks := pa.WaitForAcks(ctx)
	if len(acks) != 1 {
		t.Fatalf("WaitForAcks() = %v, want one ack even though duplicate=true", acks)
	}
}

func TestDispatcherPreservesFIFOPerReplica(t *testing.T) {
	seen := make(chan int64, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req replicateRequest
		json.NewDecoder(r.Body).Decode(&req)
		seen <- req.Seq
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(replicateResponse{Status: "ok"})
	}))
	defer srv.Close()

	addr := srv.Listener.Addr().String()
	ackBus := NewAckBus()
	d := New([]string{addr}, ackBus, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for seq := int64(1); seq <= 5; seq++ {
		d.Enqueue(addr, seq, "m")
	}

	for want := int64(1); want <= 5; want++ {
		select {
		case got := <-seen:
			if got != want {
				t.Fatalf("replica saw seq %d out of order, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for seq %d", want)
		}
	}
}
