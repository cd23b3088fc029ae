package usecases

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	"github.com/aibtcdev/x402-api/pkg/logger"
)

// timeNow is swapped in tests.
var timeNow = time.Now

const (
	catalogDefaultTTL = time.Hour

	// catalogFailureBackoff suppresses refresh attempts after a failure so a
	// down upstream is not hammered on every request.
	catalogFailureBackoff = 30 * time.Second

	// catalogRefreshTimeout bounds one refresh; requests never wait longer
	// than this on the catalog.
	catalogRefreshTimeout = 3 * time.Second
)

// CatalogProvider fetches the upstream model list.
type CatalogProvider interface {
	ListModels(ctx context.Context) ([]entities.CatalogModel, error)
}

type catalogSnapshot struct {
	models    map[string]entities.ModelPricing
	list      []entities.CatalogModel
	fetchedAt time.Time
}

// ModelCatalog caches the upstream model catalog. Reads are lock-free off an
// atomic snapshot; refreshes collapse through singleflight so a cold or stale
// cache costs one upstream call no matter how many requests arrive.
type ModelCatalog struct {
	provider CatalogProvider
	ttl      time.Duration

	group       singleflight.Group
	snapshot    atomic.Pointer[catalogSnapshot]
	lastFailure atomic.Int64 // unix nanos, 0 = none
}

// NewModelCatalog builds the cache. ttl <= 0 selects the default.
func NewModelCatalog(provider CatalogProvider, ttl time.Duration) *ModelCatalog {
	if ttl <= 0 {
		ttl = catalogDefaultTTL
	}
	return &ModelCatalog{provider: provider, ttl: ttl}
}

// Lookup resolves pricing for one model. A populated catalog that does not
// contain the model yields Valid=false; an empty or unreachable catalog
// yields Valid=true with no pricing, which callers treat as "use compiled-in
// pricing". The catalog never rejects a request just because the upstream is
// down.
func (c *ModelCatalog) Lookup(ctx context.Context, model string) CatalogLookup {
	c.maybeRefresh(ctx)

	snap := c.snapshot.Load()
	if snap == nil || len(snap.models) == 0 {
		return CatalogLookup{Valid: true}
	}
	if pricing, ok := snap.models[model]; ok {
		return CatalogLookup{Valid: true, Pricing: &pricing}
	}
	return CatalogLookup{Valid: false, Reason: "not in the model catalog"}
}

// Models returns the cached model list, refreshing opportunistically.
func (c *ModelCatalog) Models(ctx context.Context) []entities.CatalogModel {
	c.maybeRefresh(ctx)

	snap := c.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := make([]entities.CatalogModel, len(snap.list))
	copy(out, snap.list)
	return out
}

// FetchedAt reports when the current snapshot was taken, zero when none.
func (c *ModelCatalog) FetchedAt() time.Time {
	if snap := c.snapshot.Load(); snap != nil {
		return snap.fetchedAt
	}
	return time.Time{}
}

// maybeRefresh refreshes the snapshot when stale. Concurrent callers share
// one flight; failures arm the backoff and leave the last snapshot serving.
func (c *ModelCatalog) maybeRefresh(ctx context.Context) {
	if c.provider == nil || c.fresh() || c.backingOff() {
		return
	}

	c.group.Do("refresh", func() (any, error) {
		// Re-check: queued callers land here after the winning flight
		// already refreshed.
		if c.fresh() || c.backingOff() {
			return nil, nil
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogRefreshTimeout)
		defer cancel()

		models, err := c.provider.ListModels(refreshCtx)
		if err != nil {
			c.lastFailure.Store(timeNow().UnixNano())
			logger.Warn(ctx, "model catalog refresh failed", zap.Error(err))
			return nil, nil
		}

		snap := &catalogSnapshot{
			models:    make(map[string]entities.ModelPricing, len(models)),
			list:      make([]entities.CatalogModel, 0, len(models)),
			fetchedAt: timeNow(),
		}
		for _, m := range models {
			if m.ID == "" || !finitePrice(m.Pricing.PromptPerK) || !finitePrice(m.Pricing.CompletionPerK) {
				continue
			}
			snap.models[m.ID] = m.Pricing
			snap.list = append(snap.list, m)
		}
		c.snapshot.Store(snap)
		c.lastFailure.Store(0)
		return nil, nil
	})
}

func (c *ModelCatalog) fresh() bool {
	snap := c.snapshot.Load()
	return snap != nil && timeNow().Sub(snap.fetchedAt) <= c.ttl
}

func (c *ModelCatalog) backingOff() bool {
	last := c.lastFailure.Load()
	return last > 0 && timeNow().Sub(time.Unix(0, last)) < catalogFailureBackoff
}

func finitePrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}
