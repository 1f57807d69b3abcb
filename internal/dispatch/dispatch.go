// Package dispatch owns the primary's per-replica delivery queues and the
// workers that drain them: FIFO delivery, unbounded retry with exponential
// back-off, and ACK publication.
//
// Each replica gets a long-lived worker goroutine consuming a persistent
// FIFO queue, retrying the entry at its head indefinitely — a single stuck
// replica blocks only its own queue, never the others.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"replicated-log/internal/metrics"
)

// replicateRequest is the wire body POSTed to a replica's /replicate.
type replicateRequest struct {
	Msg string `json:"msg"`
	Seq int64  `json:"seq"`
}

type replicateResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Dispatcher owns one worker + queue per replica address.
type Dispatcher struct {
	workers map[string]*replicaWorker
	addrs   []string
}

// New builds a Dispatcher for addrs. Workers are not started until Start is
// called.
func New(addrs []string, ackBus *AckBus, logger *zap.Logger, m *metrics.Primary) *Dispatcher {
	d := &Dispatcher{
		workers: make(map[string]*replicaWorker, len(addrs)),
		addrs:   addrs,
	}
	for _, addr := range addrs {
		d.workers[addr] = &replicaWorker{
			addr:    addr,
			queue:   newFIFOQueue(),
			client:  &http.Client{Timeout: 3 * time.Second},
			ackBus:  ackBus,
			logger:  logger,
			metrics: m,
		}
	}
	return d
}

// Replicas returns the configured replica addresses.
func (d *Dispatcher) Replicas() []string {
	return d.addrs
}

// Start launches one goroutine per replica worker. Workers run until ctx is
// cancelled; cancellation also closes every queue, so a worker waiting on
// an empty queue exits.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, w := range d.workers {
		go w.run(ctx)
		go func(q *fifoQueue) {
			<-ctx.Done()
			q.close()
		}(w.queue)
	}
}

// Enqueue appends (seq, payload) to addr's queue. It never blocks the
// caller and never drops the entry. An addr that is not one of the
// configured replicas has no queue, and the call is ignored.
func (d *Dispatcher) Enqueue(addr string, seq int64, payload string) {
	w, ok := d.workers[addr]
	if !ok {
		return
	}
	w.queue.push(entry{seq: seq, payload: payload})
	if w.metrics != nil {
		w.metrics.QueueDepth.WithLabelValues(addr).Set(float64(w.queue.depth()))
	}
}

// QueueDepth reports how many entries are queued for addr, for diagnostics.
func (d *Dispatcher) QueueDepth(addr string) int {
	w, ok := d.workers[addr]
	if !ok {
		return 0
	}
	return w.queue.depth()
}

// replicaWorker consumes one replica's queue in FIFO order, retrying each
// entry with unbounded exponential back-off until it succeeds.
type replicaWorker struct {
	addr    string
	queue   *fifoQueue
	client  *http.Client
	ackBus  *AckBus
	logger  *zap.Logger
	metrics *metrics.Primary
}

func (w *replicaWorker) run(ctx context.Context) {
	for {
		e, ok := w.queue.pop()
		if !ok {
			return
		}
		w.deliver(ctx, e)
		if w.metrics != nil {
			w.metrics.QueueDepth.WithLabelValues(w.addr).Set(float64(w.queue.depth()))
		}
	}
}

// deliver retries e against this replica until the RPC succeeds (2xx,
// including duplicate=true) or ctx is cancelled for shutdown. FIFO within a
// replica is preserved because this worker never advances to the next
// queue item until the current one acks.
func (w *replicaWorker) deliver(ctx context.Context, e entry) {
	attempt := 0
	for {
		err := w.sendOnce(ctx, e)
		if err == nil {
			w.ackBus.Publish(e.seq, w.addr)
			if w.metrics != nil {
				w.metrics.AckTotal.WithLabelValues(w.addr).Inc()
			}
			return
		}

		attempt++
		if w.logger != nil {
			w.logger.Warn("replicate failed, retrying",
				zap.String("replica", w.addr),
				zap.Int64("seq", e.seq),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if w.metrics != nil {
			w.metrics.RetryTotal.WithLabelValues(w.addr).Inc()
		}

		delay := nextBackoff(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// sendOnce performs a single replicate RPC attempt. A non-nil error means
// the caller should retry; duplicate=true from the replica still counts as
// success.
func (w *replicaWorker) sendOnce(ctx context.Context, e entry) error {
	body, err := json.Marshal(replicateRequest{Msg: e.payload, Seq: e.seq})
	if err != nil {
		return fmt.Errorf("marshal replicate request: %w", err)
	}

	url := fmt.Sprintf("http://%s/replicate", w.addr)
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build replicate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("replicate to %s: %w", w.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("replicate to %s: HTTP %d", w.addr, resp.StatusCode)
	}

	var decoded replicateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode replicate response from %s: %w", w.addr, err)
	}
	return nil
}
