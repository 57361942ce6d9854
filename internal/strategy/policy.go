package strategy

import (
	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
)

// PolicySpec is the raw, unvalidated shape of a policy as loaded from config.
type PolicySpec struct {
	ID             string             `yaml:"id"`
	Components     []string           `yaml:"components"`
	Weights        map[string]float64 `yaml:"weights"`
	ConsensusMin   int                `yaml:"consensus_min"`
	RequireSync    bool               `yaml:"require_sync"`
	SyncTimeframes []string           `yaml:"sync_timeframes"`
	Params         map[string]float64 `yaml:"params"`
}

// NewPolicy validates spec and returns an immutable policy. No partially-valid
// policy is ever returned: any violated invariant yields a ConfigurationError.
func NewPolicy(spec PolicySpec) (*models.StrategyPolicy, error) {
	if spec.ID == "" {
		return nil, models.ConfigErrorf("policy.id", "must not be empty")
	}
	if len(spec.Components) == 0 {
		return nil, models.ConfigErrorf("policy.components", "policy %q enables no components", spec.ID)
	}
	if len(spec.Weights) == 0 {
		return nil, models.ConfigErrorf("policy.weights", "policy %q has no timeframe weights", spec.ID)
	}
	for tf, w := range spec.Weights {
		if !domrepo.IsValidTimeframe(domrepo.Timeframe(tf)) {
			return nil, models.ConfigErrorf("policy.weights", "policy %q references unknown timeframe %q", spec.ID, tf)
		}
		if w < 0 {
			return nil, models.ConfigErrorf("policy.weights", "policy %q has negative weight for %q", spec.ID, tf)
		}
	}
	if spec.ConsensusMin < 0 {
		return nil, models.ConfigErrorf("policy.consensus_min", "policy %q: must be >= 0", spec.ID)
	}
	// Consensus is counted over per-timeframe classifications, so the weight
	// map bounds how many timeframes can ever agree.
	if spec.ConsensusMin > len(spec.Weights) {
		return nil, models.ConfigErrorf("policy.consensus_min",
			"policy %q: %d exceeds the %d weighted timeframes", spec.ID, spec.ConsensusMin, len(spec.Weights))
	}
	for _, tf := range spec.SyncTimeframes {
		if !domrepo.IsValidTimeframe(domrepo.Timeframe(tf)) {
			return nil, models.ConfigErrorf("policy.sync_timeframes", "policy %q references unknown timeframe %q", spec.ID, tf)
		}
	}
	if spec.RequireSync && len(spec.SyncTimeframes) == 0 {
		return nil, models.ConfigErrorf("policy.sync_timeframes", "policy %q requires sync but lists no timeframes", spec.ID)
	}

	p := &models.StrategyPolicy{
		ID:                spec.ID,
		EnabledComponents: append([]string(nil), spec.Components...),
		Weights:           make(map[string]float64, len(spec.Weights)),
		ConsensusMinimum:  spec.ConsensusMin,
		RequireSync:       spec.RequireSync,
		SyncTimeframes:    append([]string(nil), spec.SyncTimeframes...),
		Params:            make(map[string]float64, len(spec.Params)),
	}
	for tf, w := range spec.Weights {
		p.Weights[tf] = w
	}
	for k, v := range spec.Params {
		p.Params[k] = v
	}
	return p, nil
}

// ThresholdSpec is the raw shape of one symbol/timeframe threshold entry.
type ThresholdSpec struct {
	Symbol     string  `yaml:"symbol"`
	TF         string  `yaml:"tf"`
	FastLine   float64 `yaml:"fast_line"`
	SignalLine float64 `yaml:"signal_line"`
}

// NewThresholdSet validates spec. Thresholds must be strictly positive: a zero
// or negative bound would widen the bull/bear bands to the whole axis.
func NewThresholdSet(spec ThresholdSpec) (*models.ThresholdSet, error) {
	if spec.Symbol == "" {
		return nil, models.ConfigErrorf("threshold.symbol", "must not be empty")
	}
	if !domrepo.IsValidTimeframe(domrepo.Timeframe(spec.TF)) {
		return nil, models.ConfigErrorf("threshold.tf", "unknown timeframe %q for %s", spec.TF, spec.Symbol)
	}
	if spec.FastLine <= 0 || spec.SignalLine <= 0 {
		return nil, models.ConfigErrorf("threshold", "%s/%s: thresholds must be > 0", spec.Symbol, spec.TF)
	}
	return &models.ThresholdSet{
		Symbol:     spec.Symbol,
		TF:         spec.TF,
		FastLine:   spec.FastLine,
		SignalLine: spec.SignalLine,
	}, nil
}
