package usecases

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
	"github.com/aibtcdev/x402-api/pkg/logger"
)

// recentRingSize is how many requests /health can look back on.
const recentRingSize = 50

// usageWriteTimeout bounds the detached per-payer usage write.
const usageWriteTimeout = 10 * time.Second

// ShardSource opens the per-payer shard for usage writes.
type ShardSource interface {
	Shard(ctx context.Context, payer string) (*storage.Shard, error)
}

// UsageRecorder keeps the process-global request counters, the Prometheus
// metrics and a small ring of recent requests, and writes settled usage into
// the payer's shard off the request path.
type UsageRecorder struct {
	shards ShardSource

	requestsTotal *prometheus.CounterVec
	revenueTotal  *prometheus.CounterVec

	totalRequests atomic.Int64

	mu      sync.Mutex
	ring    []entities.RequestRecord
	byToken map[string]int64

	writes sync.WaitGroup
}

// NewUsageRecorder builds the recorder and registers its metrics. A nil
// registerer skips registration, which tests use.
func NewUsageRecorder(shards ShardSource, reg prometheus.Registerer) *UsageRecorder {
	r := &UsageRecorder{
		shards:  shards,
		byToken: map[string]int64{},
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_requests_total",
			Help: "Requests served, by category, method and status class.",
		}, []string{"category", "method", "status"}),
		revenueTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_revenue_atomic_total",
			Help: "Settled revenue in atomic token units, by token and tier.",
		}, []string{"token", "tier"}),
	}
	if reg != nil {
		reg.MustRegister(r.requestsTotal, r.revenueTotal)
	}
	return r
}

// ObserveRequest records one served request, priced or free.
func (r *UsageRecorder) ObserveRequest(rec entities.RequestRecord) {
	r.totalRequests.Add(1)
	r.requestsTotal.WithLabelValues(rec.Category, rec.Method, statusClass(rec.Status)).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring = append(r.ring, rec)
	if len(r.ring) > recentRingSize {
		r.ring = r.ring[len(r.ring)-recentRingSize:]
	}
}

// RecordSettled accounts one settled payment and persists it into the
// payer's shard asynchronously. The response does not wait on the write.
func (r *UsageRecorder) RecordSettled(ctx context.Context, event *entities.UsageEvent) {
	if event == nil {
		return
	}
	r.revenueTotal.WithLabelValues(string(event.Token), string(event.Tier)).Add(amountFloat(event.Amount))

	r.mu.Lock()
	r.byToken[string(event.Token)]++
	r.mu.Unlock()

	if r.shards == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	r.writes.Add(1)
	go func() {
		defer r.writes.Done()
		writeCtx, cancel := context.WithTimeout(detached, usageWriteTimeout)
		defer cancel()

		shard, err := r.shards.Shard(writeCtx, event.Payer)
		if err != nil {
			logger.Warn(writeCtx, "usage write skipped", zap.String("payer", event.Payer), zap.Error(err))
			return
		}
		if err := shard.RecordUsage(writeCtx, event); err != nil {
			logger.Warn(writeCtx, "usage write failed", zap.String("payer", event.Payer), zap.Error(err))
		}
	}()
}

// Totals snapshots the process counters.
func (r *UsageRecorder) Totals() entities.UsageTotals {
	r.mu.Lock()
	defer r.mu.Unlock()
	byToken := make(map[string]int64, len(r.byToken))
	for k, v := range r.byToken {
		byToken[k] = v
	}
	return entities.UsageTotals{Requests: r.totalRequests.Load(), ByToken: byToken}
}

// Recent returns the recent-request ring, newest last.
func (r *UsageRecorder) Recent() []entities.RequestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.RequestRecord, len(r.ring))
	copy(out, r.ring)
	return out
}

// Flush waits for in-flight shard writes. Called on shutdown and in tests.
func (r *UsageRecorder) Flush() {
	r.writes.Wait()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func amountFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}
