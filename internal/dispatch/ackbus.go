// The ack bus and PendingAppend avoid cyclic references between the
// dispatcher workers and whatever is waiting on an append: workers publish
// (seq, addr) tuples into a registry keyed by seq, and whichever
// PendingAppend is waiting on that seq wakes up. No object owns another.
package dispatch

import (
	"context"
	"sync"
)

// PendingAppend tracks the distinct replica addresses that have
// acknowledged one in-flight client append. Each append gets its own
// instance and its own condition variable, so that waiters for different
// requests (and different write concerns) never block one another.
type PendingAppend struct {
	Seq int64
	W   int

	mu   sync.Mutex
	cond *sync.Cond
	acks map[string]bool
}

// NewPendingAppend creates a PendingAppend for seq requiring write concern w.
func NewPendingAppend(seq int64, w int) *PendingAppend {
	pa := &PendingAppend{
		Seq:  seq,
		W:    w,
		acks: make(map[string]bool),
	}
	pa.cond = sync.NewCond(&pa.mu)
	return pa
}

// ack records addr as having acknowledged and wakes any waiter. Duplicate
// acks from the same address do not inflate the count, since acks is a set.
func (pa *PendingAppend) ack(addr string) {
	pa.mu.Lock()
	pa.acks[addr] = true
	pa.mu.Unlock()
	pa.cond.Broadcast()
}

// WaitForAcks blocks until W-1 distinct replica addresses have acked (the
// primary itself counts as the remaining one toward W), or until ctx is
// cancelled. On cancellation it returns whatever acks have arrived so far —
// the append has already committed and replication continues regardless.
func (pa *PendingAppend) WaitForAcks(ctx context.Context) []string {
	stopWaking := make(chan struct{})
	defer close(stopWaking)
	go func() {
		select {
		case <-ctx.Done():
			pa.mu.Lock()
			pa.cond.Broadcast()
			pa.mu.Unlock()
		case <-stopWaking:
		}
	}()

	pa.mu.Lock()
	defer pa.mu.Unlock()
	for len(pa.acks) < pa.W-1 {
		select {
		case <-ctx.Done():
			return ackSliceLocked(pa.acks)
		default:
		}
		pa.cond.Wait()
	}
	return ackSliceLocked(pa.acks)
}

func ackSliceLocked(acks map[string]bool) []string {
	out := make([]string, 0, len(acks))
	for addr := range acks {
		out = append(out, addr)
	}
	return out
}

// AckBus routes worker ACKs to the PendingAppend waiting on that seq, if
// any is still registered. Once a coordinator stops waiting it unregisters,
// and later ACKs for that seq (from slower replicas catching up) are
// simply dropped — nothing depends on them anymore, but replication itself
// is unaffected since it happens independently in the dispatcher.
type AckBus struct {
	mu      sync.Mutex
	pending map[int64]*PendingAppend
}

// NewAckBus returns an empty AckBus.
func NewAckBus() *AckBus {
	return &AckBus{pending: make(map[int64]*PendingAppend)}
}

// Register makes pa reachable by Publish under pa.Seq.
func (b *AckBus) Register(pa *PendingAppend) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[pa.Seq] = pa
}

// Unregister removes the PendingAppend for seq.
func (b *AckBus) Unregister(seq int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, seq)
}

// Publish records that addr acknowledged seq, if anything is waiting on it.
func (b *AckBus) Publish(seq int64, addr string) {
	b.mu.Lock()
	pa := b.pending[seq]
	b.mu.Unlock()
	if pa != nil {
		pa.ack(addr)
	}
}
