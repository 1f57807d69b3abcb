// Package coordinator implements the primary's client-facing append path:
// validating the write concern, checking quorum, assigning a seq, fanning
// out to every replica, and waiting for the requested number of ACKs.
//
// Collection of acks uses a PendingAppend condition variable per request so
// that concurrent requests with different write concerns never block one
// another beyond the shared Ledger.Assign serialization.
package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"replicated-log/internal/apierr"
	"replicated-log/internal/dispatch"
	"replicated-log/internal/health"
	"replicated-log/internal/ledger"
	"replicated-log/internal/metrics"
)

// Result is returned by a successful Append.
type Result struct {
	Seq        int64
	W          int
	Acks       []string
	DurationMs int64
	Messages   []string
}

// Coordinator is the primary's write entrypoint.
type Coordinator struct {
	ledger     *ledger.Ledger
	dispatcher *dispatch.Dispatcher
	ackBus     *dispatch.AckBus
	prober     *health.Prober
	n          int

	logger  *zap.Logger
	metrics *metrics.Primary
}

// New builds a Coordinator. n is the configured replica count (N in the
// write-concern arithmetic: 1 <= w <= N+1).
func New(l *ledger.Ledger, d *dispatch.Dispatcher, ackBus *dispatch.AckBus, prober *health.Prober, n int, logger *zap.Logger, m *metrics.Primary) *Coordinator {
	return &Coordinator{
		ledger:     l,
		dispatcher: d,
		ackBus:     ackBus,
		prober:     prober,
		n:          n,
		logger:     logger,
		metrics:    m,
	}
}

// Append validates w, checks quorum, assigns payload a seq, fans it out to
// every replica, and blocks until w-1 distinct replicas have acked (the
// primary counts as the remaining one) or ctx is cancelled.
//
// A cancelled ctx only abandons this wait — the entry has already been
// assigned a seq and committed to the ledger, and the dispatcher keeps
// retrying delivery regardless of whether anyone is still waiting on it.
func (c *Coordinator) Append(ctx context.Context, payload string, w int) (Result, error) {
	if w < 1 || w > c.n+1 {
		return Result{}, apierr.ErrInvalidWriteConcern
	}

	if c.prober != nil && !c.prober.QuorumOK() {
		if c.metrics != nil {
			c.metrics.NoQuorumTotal.Inc()
		}
		return Result{}, apierr.ErrNoQuorum
	}

	start := time.Now()
	entry := c.ledger.Assign(payload)

	pa := dispatch.NewPendingAppend(entry.Seq, w)
	c.ackBus.Register(pa)
	defer c.ackBus.Unregister(entry.Seq)

	for _, addr := range c.dispatcher.Replicas() {
		c.dispatcher.Enqueue(addr, entry.Seq, entry.Payload)
	}

	acks := pa.WaitForAcks(ctx)
	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.AppendLatency.Observe(duration.Seconds())
	}
	if c.logger != nil {
		c.logger.Info("append committed",
			zap.Int64("seq", entry.Seq),
			zap.Int("w", w),
			zap.Int("acks", len(acks)),
			zap.Duration("duration", duration))
	}

	return Result{
		Seq:        entry.Seq,
		W:          w,
		Acks:       acks,
		DurationMs: duration.Milliseconds(),
		Messages:   c.ledger.Snapshot(),
	}, nil
}

// DefaultWriteConcern returns N+1, the write concern used when a client
// request omits w.
func (c *Coordinator) DefaultWriteConcern() int {
	return c.n + 1
}

// ReplicaCount returns N, the configured number of replicas.
func (c *Coordinator) ReplicaCount() int {
	return c.n
}

// Snapshot returns the current log, for GET /messages.
func (c *Coordinator) Snapshot() []string {
	return c.ledger.Snapshot()
}

// Size returns the current log length, for GET /health.
func (c *Coordinator) Size() int {
	return c.ledger.Size()
}
