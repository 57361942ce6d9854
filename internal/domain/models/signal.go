package models

import "time"

// Zone is the per-timeframe bull/bear classification.
type Zone string

const (
	ZoneBull    Zone = "BULL"
	ZoneBear    Zone = "BEAR"
	ZoneNeutral Zone = "NEUTRAL"
)

// SignalType is the final trade decision for an instrument.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// IndicatorResult is one timeframe's computed oscillator state.
type IndicatorResult struct {
	Fast       float64
	Signal     float64
	FastThr    float64
	SignalThr  float64
	Zone       Zone
	Confidence float64
}

// Contribution records how one timeframe entered the aggregate decision.
type Contribution struct {
	TF         string  `json:"tf"`
	Zone       Zone    `json:"zone"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
}

// AggregatedSignal is the consensus decision across timeframes.
type AggregatedSignal struct {
	ID            string         `json:"id"`
	Symbol        string         `json:"symbol"`
	PolicyID      string         `json:"policy_id"`
	Type          SignalType     `json:"type"`
	Confidence    float64        `json:"confidence"`
	BullScore     float64        `json:"bull_score"`
	BearScore     float64        `json:"bear_score"`
	BullCount     int            `json:"bull_count"`
	BearCount     int            `json:"bear_count"`
	Contributions []Contribution `json:"contributions"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// StrategyPolicy is an immutable, named aggregation policy. Construct through
// strategy.NewPolicy; a resolved instance is never mutated in place.
type StrategyPolicy struct {
	ID                string
	EnabledComponents []string
	Weights           map[string]float64 // timeframe label -> weight
	ConsensusMinimum  int
	RequireSync       bool
	SyncTimeframes    []string
	Params            map[string]float64
}
