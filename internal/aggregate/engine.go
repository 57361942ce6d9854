package aggregate

import (
	"sort"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
)

// Aggregate combines per-timeframe classifications into one weighted consensus
// decision. Pure: identity fields (id, symbol, timestamp) are stamped by the
// caller. An empty results map yields HOLD with confidence 0 — absence of data
// is not a failure.
func Aggregate(policy *models.StrategyPolicy, results map[domrepo.Timeframe]models.IndicatorResult) *models.AggregatedSignal {
	sig := &models.AggregatedSignal{
		PolicyID: policy.ID,
		Type:     models.SignalHold,
	}

	var bullScore, bearScore, totalWeight float64
	for tf, res := range results {
		weight, ok := policy.Weights[string(tf)]
		if !ok {
			continue
		}
		totalWeight += weight
		switch res.Zone {
		case models.ZoneBull:
			bullScore += weight
			sig.BullCount++
		case models.ZoneBear:
			bearScore += weight
			sig.BearCount++
		}
		sig.Contributions = append(sig.Contributions, models.Contribution{
			TF:         string(tf),
			Zone:       res.Zone,
			Weight:     weight,
			Confidence: res.Confidence,
		})
	}
	sort.Slice(sig.Contributions, func(i, j int) bool {
		return domrepo.CompareTimeframes(
			domrepo.Timeframe(sig.Contributions[i].TF),
			domrepo.Timeframe(sig.Contributions[j].TF)) < 0
	})

	sig.BullScore = bullScore
	sig.BearScore = bearScore

	if policy.RequireSync && syncDisagrees(policy, results) {
		// synchronization veto overrides scores entirely
		sig.Type = models.SignalHold
		sig.Confidence = 0
		return sig
	}

	switch {
	case bullScore > bearScore && sig.BullCount >= policy.ConsensusMinimum:
		sig.Type = models.SignalBuy
	case bearScore > bullScore && sig.BearCount >= policy.ConsensusMinimum:
		sig.Type = models.SignalSell
	default:
		sig.Type = models.SignalHold
	}

	if totalWeight > 0 {
		conf := bullScore / totalWeight
		if bearScore > bullScore {
			conf = bearScore / totalWeight
		}
		if conf > 1 {
			conf = 1
		}
		sig.Confidence = conf
	}
	return sig
}

// syncDisagrees reports whether the designated timeframes fail to agree on one
// non-neutral direction. Timeframes without a result are skipped; a neutral
// classification on a designated timeframe counts as disagreement.
func syncDisagrees(policy *models.StrategyPolicy, results map[domrepo.Timeframe]models.IndicatorResult) bool {
	var dir models.Zone
	for _, tf := range policy.SyncTimeframes {
		res, ok := results[domrepo.Timeframe(tf)]
		if !ok {
			continue
		}
		if res.Zone == models.ZoneNeutral {
			return true
		}
		if dir == "" {
			dir = res.Zone
			continue
		}
		if res.Zone != dir {
			return true
		}
	}
	return false
}
