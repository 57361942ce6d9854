package zone

import "QuantPulse/internal/domain/models"

// Classify maps one timeframe's oscillator pair onto a bull/bear zone using a
// single threshold for both lines. Pure and total: degenerate thresholds only
// widen the bands and are rejected upstream by threshold validation.
func Classify(fast, signal, threshold float64) models.Zone {
	return ClassifyBands(fast, signal, threshold, threshold)
}

// ClassifyBands is the two-threshold form used when a symbol configures
// distinct fast-line and signal-line bounds.
func ClassifyBands(fast, signal, fastThr, signalThr float64) models.Zone {
	if (fast >= fastThr || signal >= signalThr) && fast > 0 && signal > 0 {
		return models.ZoneBull
	}
	if (fast <= -fastThr || signal <= -signalThr) && fast < 0 && signal < 0 {
		return models.ZoneBear
	}
	return models.ZoneNeutral
}
