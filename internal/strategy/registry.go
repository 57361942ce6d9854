package strategy

import (
	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
)

// Registry is the immutable policy/threshold store resolved once at process
// start. Lookups never mutate; building a new policy set means building a new
// registry.
type Registry struct {
	policies    map[string]*models.StrategyPolicy
	thresholds  map[string]*models.ThresholdSet // "symbol|tf"
	instruments []models.Instrument
}

// NewRegistry validates every spec up front and fails on the first invalid
// entry. A registry is never constructed from partially-valid configuration.
func NewRegistry(policies []PolicySpec, thresholds []ThresholdSpec, instruments []models.Instrument) (*Registry, error) {
	r := &Registry{
		policies:   make(map[string]*models.StrategyPolicy, len(policies)),
		thresholds: make(map[string]*models.ThresholdSet, len(thresholds)),
	}
	for _, spec := range policies {
		p, err := NewPolicy(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := r.policies[p.ID]; dup {
			return nil, models.ConfigErrorf("policy.id", "duplicate policy %q", p.ID)
		}
		r.policies[p.ID] = p
	}
	for _, spec := range thresholds {
		ts, err := NewThresholdSet(spec)
		if err != nil {
			return nil, err
		}
		r.thresholds[thresholdKey(ts.Symbol, ts.TF)] = ts
	}
	for _, ins := range instruments {
		if ins.Ticker == "" || ins.Venue == "" {
			return nil, models.ConfigErrorf("instrument", "ticker and venue are required")
		}
		r.instruments = append(r.instruments, ins)
	}
	return r, nil
}

// ResolvePolicy looks up a policy by id.
func (r *Registry) ResolvePolicy(id string) (*models.StrategyPolicy, error) {
	p, ok := r.policies[id]
	if !ok {
		return nil, models.ConfigErrorf("policy.id", "unknown policy %q", id)
	}
	return p, nil
}

// ResolveThresholds returns the threshold set for a symbol/timeframe pair, or
// (nil, false) when none is configured.
func (r *Registry) ResolveThresholds(symbol string, tf domrepo.Timeframe) (*models.ThresholdSet, bool) {
	ts, ok := r.thresholds[thresholdKey(symbol, string(tf))]
	return ts, ok
}

// Instruments returns the configured instrument universe.
func (r *Registry) Instruments() []models.Instrument {
	out := make([]models.Instrument, len(r.instruments))
	copy(out, r.instruments)
	return out
}

// PolicyIDs lists all registered policy ids.
func (r *Registry) PolicyIDs() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	return ids
}

func thresholdKey(symbol, tf string) string { return symbol + "|" + tf }

var _ domrepo.ConfigRegistry = (*Registry)(nil)
