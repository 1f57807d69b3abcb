// Package metrics wires Prometheus instrumentation into the replication
// engine, grounded on the worker/ingester instrumentation patterns seen
// across the retrieval pack (event-hub's job worker, Tempo's ingester): a
// handful of counters and histograms around the hot path, exposed on
// /metrics via promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Primary holds the primary node's metrics.
type Primary struct {
	registry *prometheus.Registry

	AppendLatency  prometheus.Histogram
	QueueDepth     *prometheus.GaugeVec
	RetryTotal     *prometheus.CounterVec
	AckTotal       *prometheus.CounterVec
	ReplicaHealthy *prometheus.GaugeVec
	NoQuorumTotal  prometheus.Counter
}

// NewPrimary builds a fresh registry and the primary's metric set.
func NewPrimary() *Primary {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Primary{
		registry: reg,
		AppendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "replicatedlog_append_duration_seconds",
			Help:    "Time spent waiting for the configured write concern to be satisfied.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "replicatedlog_dispatcher_queue_depth",
			Help: "Number of entries queued for delivery to a replica.",
		}, []string{"replica"}),
		RetryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replicatedlog_dispatcher_retries_total",
			Help: "Number of replicate RPC retries performed by a dispatcher worker.",
		}, []string{"replica"}),
		AckTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replicatedlog_dispatcher_acks_total",
			Help: "Number of successful (including duplicate) replicate RPCs.",
		}, []string{"replica"}),
		ReplicaHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "replicatedlog_replica_healthy",
			Help: "1 if the replica's last health probe succeeded within the grace window, else 0.",
		}, []string{"replica"}),
		NoQuorumTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "replicatedlog_no_quorum_total",
			Help: "Number of appends rejected because quorum was not satisfied.",
		}),
	}
}

// Handler exposes the registry on /metrics.
func (p *Primary) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Replica holds the secondary node's metrics.
type Replica struct {
	registry *prometheus.Registry

	AppliedLength   prometheus.Gauge
	DuplicateTotal  prometheus.Counter
	PendingGapsSize prometheus.Gauge
}

// NewReplica builds a fresh registry and the replica's metric set.
func NewReplica() *Replica {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Replica{
		registry: reg,
		AppliedLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replicatedlog_replica_applied_length",
			Help: "Length of the contiguous applied prefix.",
		}),
		DuplicateTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "replicatedlog_replica_duplicate_total",
			Help: "Number of replicate deliveries recognized as duplicates.",
		}),
		PendingGapsSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replicatedlog_replica_pending_size",
			Help: "Number of out-of-order entries currently buffered.",
		}),
	}
}

// Handler exposes the registry on /metrics.
func (r *Replica) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
