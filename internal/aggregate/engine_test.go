package aggregate

import (
	"math"
	"testing"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
)

func testPolicy() *models.StrategyPolicy {
	return &models.StrategyPolicy{
		ID:                "mtf-default",
		EnabledComponents: []string{"wt_oscillator"},
		Weights:           map[string]float64{"2m": 2, "5m": 3, "15m": 1},
		ConsensusMinimum:  2,
	}
}

func res(zone models.Zone) models.IndicatorResult {
	return models.IndicatorResult{Zone: zone, Confidence: 0.5}
}

func TestAggregateEmptyResultsHolds(t *testing.T) {
	sig := Aggregate(testPolicy(), nil)
	if sig.Type != models.SignalHold || sig.Confidence != 0 {
		t.Fatalf("empty results: got %s/%v, want HOLD/0", sig.Type, sig.Confidence)
	}
	if sig.BullCount != 0 || sig.BearCount != 0 {
		t.Fatalf("empty results must not count directions: %+v", sig)
	}
}

func TestAggregateBuyConsensus(t *testing.T) {
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m:  res(models.ZoneBull),
		domrepo.TF5m:  res(models.ZoneBull),
		domrepo.TF15m: res(models.ZoneBear),
	}
	sig := Aggregate(testPolicy(), results)

	if sig.BullScore != 5 || sig.BearScore != 1 {
		t.Fatalf("scores = %v/%v, want 5/1", sig.BullScore, sig.BearScore)
	}
	if sig.Type != models.SignalBuy {
		t.Fatalf("type = %s, want BUY", sig.Type)
	}
	if math.Abs(sig.Confidence-5.0/6.0) > 1e-9 {
		t.Fatalf("confidence = %v, want 5/6", sig.Confidence)
	}
	if len(sig.Contributions) != 3 || sig.Contributions[0].TF != "2m" || sig.Contributions[2].TF != "15m" {
		t.Fatalf("contribution breakdown not ordered by width: %+v", sig.Contributions)
	}
}

func TestAggregateSellMirrors(t *testing.T) {
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m:  res(models.ZoneBear),
		domrepo.TF5m:  res(models.ZoneBear),
		domrepo.TF15m: res(models.ZoneBull),
	}
	sig := Aggregate(testPolicy(), results)
	if sig.Type != models.SignalSell {
		t.Fatalf("type = %s, want SELL", sig.Type)
	}
	if math.Abs(sig.Confidence-5.0/6.0) > 1e-9 {
		t.Fatalf("confidence = %v, want 5/6", sig.Confidence)
	}
}

func TestAggregateAllNeutralHolds(t *testing.T) {
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m:  res(models.ZoneNeutral),
		domrepo.TF5m:  res(models.ZoneNeutral),
		domrepo.TF15m: res(models.ZoneNeutral),
	}
	sig := Aggregate(testPolicy(), results)
	if sig.Type != models.SignalHold || sig.Confidence != 0 {
		t.Fatalf("got %s/%v, want HOLD/0", sig.Type, sig.Confidence)
	}
	if sig.BullCount != 0 || sig.BearCount != 0 {
		t.Fatalf("neutral timeframes must not count: %+v", sig)
	}
}

func TestAggregateTieHolds(t *testing.T) {
	p := testPolicy()
	p.Weights = map[string]float64{"2m": 2, "5m": 2}
	p.ConsensusMinimum = 1
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m: res(models.ZoneBull),
		domrepo.TF5m: res(models.ZoneBear),
	}
	sig := Aggregate(p, results)
	if sig.Type != models.SignalHold {
		t.Fatalf("tie must hold, got %s", sig.Type)
	}
}

func TestAggregateConsensusMinimumBlocks(t *testing.T) {
	p := testPolicy()
	p.ConsensusMinimum = 3
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m: res(models.ZoneBull),
		domrepo.TF5m: res(models.ZoneBull),
	}
	sig := Aggregate(p, results)
	if sig.Type != models.SignalHold {
		t.Fatalf("below consensus minimum must hold, got %s", sig.Type)
	}
}

func TestAggregateSyncVeto(t *testing.T) {
	p := testPolicy()
	p.RequireSync = true
	p.SyncTimeframes = []string{"2m", "5m"}
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m:  res(models.ZoneBull),
		domrepo.TF5m:  res(models.ZoneBear),
		domrepo.TF15m: res(models.ZoneBull),
	}
	sig := Aggregate(p, results)
	if sig.Type != models.SignalHold || sig.Confidence != 0 {
		t.Fatalf("sync disagreement must veto: got %s/%v", sig.Type, sig.Confidence)
	}

	// agreement lifts the veto
	results[domrepo.TF5m] = res(models.ZoneBull)
	sig = Aggregate(p, results)
	if sig.Type != models.SignalBuy {
		t.Fatalf("sync agreement should allow BUY, got %s", sig.Type)
	}
}

func TestAggregateSyncNeutralVetoes(t *testing.T) {
	p := testPolicy()
	p.RequireSync = true
	p.SyncTimeframes = []string{"2m", "5m"}
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m: res(models.ZoneBull),
		domrepo.TF5m: res(models.ZoneNeutral),
	}
	sig := Aggregate(p, results)
	if sig.Type != models.SignalHold || sig.Confidence != 0 {
		t.Fatalf("neutral designated timeframe must veto: got %s/%v", sig.Type, sig.Confidence)
	}
}

func TestAggregateIgnoresUnweightedTimeframes(t *testing.T) {
	results := map[domrepo.Timeframe]models.IndicatorResult{
		domrepo.TF2m: res(models.ZoneBull),
		domrepo.TF5m: res(models.ZoneBull),
		domrepo.TF1h: res(models.ZoneBear), // not in the weight map
	}
	sig := Aggregate(testPolicy(), results)
	if sig.BearScore != 0 || sig.BearCount != 0 {
		t.Fatalf("unweighted timeframe leaked into scores: %+v", sig)
	}
	if sig.Type != models.SignalBuy {
		t.Fatalf("type = %s, want BUY", sig.Type)
	}
}
