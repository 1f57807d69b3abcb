// Package health implements the primary's periodic liveness probe of each
// replica and the quorum predicate that gates new writes, probing every
// replica concurrently on each tick and tracking a healthy/last-seen view
// per replica.
package health

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"replicated-log/internal/metrics"
)

// Status is the health snapshot for a single replica.
type Status struct {
	Address    string
	Healthy    bool
	LastSeenMs int64
}

type replicaHealth struct {
	lastSeen time.Time
	probed   bool
}

// Prober periodically pings every replica's /health endpoint and exposes a
// liveness view used by the quorum predicate.
type Prober struct {
	mu       sync.RWMutex
	replicas map[string]*replicaHealth

	addrs    []string
	interval time.Duration
	grace    time.Duration
	client   *http.Client

	logger  *zap.Logger
	metrics *metrics.Primary
}

// New builds a Prober for addrs. grace is the window within which the most
// recent successful probe must fall for a replica to count as healthy —
// the default is 3x interval.
func New(addrs []string, interval, grace time.Duration, logger *zap.Logger, m *metrics.Primary) *Prober {
	replicas := make(map[string]*replicaHealth, len(addrs))
	for _, a := range addrs {
		replicas[a] = &replicaHealth{}
	}
	return &Prober{
		replicas: replicas,
		addrs:    addrs,
		interval: interval,
		grace:    grace,
		client:   &http.Client{Timeout: interval},
		logger:   logger,
		metrics:  m,
	}
}

// Start launches the probe loop. It returns once ctx is cancelled.
func (p *Prober) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

func (p *Prober) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, addr := range p.addrs {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			p.probeOne(ctx, addr)
		}(addr)
	}
	wg.Wait()
}

func (p *Prober) probeOne(ctx context.Context, addr string) {
	reqCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", addr)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	ok := false
	if err == nil {
		resp, doErr := p.client.Do(req)
		if doErr == nil {
			resp.Body.Close()
			ok = resp.StatusCode >= 200 && resp.StatusCode < 300
		}
	}

	p.mu.Lock()
	rh := p.replicas[addr]
	if ok {
		rh.lastSeen = time.Now()
		rh.probed = true
	}
	p.mu.Unlock()

	healthy := p.isHealthy(addr)
	if p.logger != nil && !healthy {
		p.logger.Warn("replica unhealthy", zap.String("replica", addr))
	}
	if p.metrics != nil {
		v := 0.0
		if healthy {
			v = 1.0
		}
		p.metrics.ReplicaHealthy.WithLabelValues(addr).Set(v)
	}
}

// isHealthy reports whether addr's most recent successful probe falls
// within the grace window.
func (p *Prober) isHealthy(addr string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rh, ok := p.replicas[addr]
	if !ok || !rh.probed {
		return false
	}
	return time.Since(rh.lastSeen) <= p.grace
}

// Statuses returns the per-replica health view for the primary's
// GET /health response.
func (p *Prober) Statuses() []Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Status, 0, len(p.addrs))
	for _, addr := range p.addrs {
		rh := p.replicas[addr]
		st := Status{Address: addr}
		if rh.probed {
			st.Healthy = time.Since(rh.lastSeen) <= p.grace
			st.LastSeenMs = time.Since(rh.lastSeen).Milliseconds()
		}
		out = append(out, st)
	}
	return out
}

// QuorumOK reports whether (healthy replicas + 1) >= ceil((N+1)/2), where N
// is the number of configured replicas. Quorum does not depend on any
// particular request's write concern — it is a liveness gate for admitting
// any new write.
func (p *Prober) QuorumOK() bool {
	n := len(p.addrs)
	healthy := 0
	for _, addr := range p.addrs {
		if p.isHealthy(addr) {
			healthy++
		}
	}
	required := int(math.Ceil(float64(n+1) / 2))
	return healthy+1 >= required
}
