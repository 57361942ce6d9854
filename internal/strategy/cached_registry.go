package strategy

import (
	"time"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/internal/service/cache"
)

// CachedRegistry memoizes registry lookups through a TTL cache. The in-memory
// registry is cheap, but executor hot paths resolve thresholds once per
// timeframe per run; the cache keeps that constant when the backing registry
// is swapped for a remote one.
type CachedRegistry struct {
	inner domrepo.ConfigRegistry
	ttl   time.Duration
	c     *cache.TTLCache
}

// NewCachedRegistry wraps a registry with TTL memoization.
func NewCachedRegistry(inner domrepo.ConfigRegistry, ttl time.Duration) *CachedRegistry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedRegistry{inner: inner, ttl: ttl, c: cache.NewTTLCache()}
}

func (r *CachedRegistry) ResolvePolicy(id string) (*models.StrategyPolicy, error) {
	key := "policy:" + id
	if v, ok := r.c.Get(key); ok {
		return v.(*models.StrategyPolicy), nil
	}
	p, err := r.inner.ResolvePolicy(id)
	if err != nil {
		return nil, err
	}
	r.c.Set(key, p, r.ttl)
	return p, nil
}

func (r *CachedRegistry) ResolveThresholds(symbol string, tf domrepo.Timeframe) (*models.ThresholdSet, bool) {
	key := "thr:" + symbol + "|" + string(tf)
	if v, ok := r.c.Get(key); ok {
		ts, present := v.(*models.ThresholdSet)
		return ts, present && ts != nil
	}
	ts, ok := r.inner.ResolveThresholds(symbol, tf)
	if !ok {
		// cache the miss too; absent thresholds are a steady state
		r.c.Set(key, (*models.ThresholdSet)(nil), r.ttl)
		return nil, false
	}
	r.c.Set(key, ts, r.ttl)
	return ts, true
}

func (r *CachedRegistry) Instruments() []models.Instrument {
	return r.inner.Instruments()
}

var _ domrepo.ConfigRegistry = (*CachedRegistry)(nil)
