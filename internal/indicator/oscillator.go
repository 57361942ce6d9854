package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"QuantPulse/internal/domain/models"
)

// OscillatorParams tunes the channel oscillator. Values come from policy
// custom parameters with validated defaults.
type OscillatorParams struct {
	ChannelLen int
	AvgLen     int
	SmoothLen  int
}

// DefaultParams returns the conventional WT channel lengths.
func DefaultParams() OscillatorParams {
	return OscillatorParams{ChannelLen: 10, AvgLen: 21, SmoothLen: 4}
}

// ParamsFromPolicy resolves oscillator lengths from policy params, falling
// back to defaults for absent keys. Non-positive overrides are rejected.
func ParamsFromPolicy(params map[string]float64) (OscillatorParams, error) {
	p := DefaultParams()
	set := func(key string, dst *int) error {
		v, ok := params[key]
		if !ok {
			return nil
		}
		if v < 1 || v != math.Trunc(v) {
			return models.ConfigErrorf("policy.params", "%s must be a positive integer, got %v", key, v)
		}
		*dst = int(v)
		return nil
	}
	if err := set("channel_len", &p.ChannelLen); err != nil {
		return p, err
	}
	if err := set("avg_len", &p.AvgLen); err != nil {
		return p, err
	}
	if err := set("smooth_len", &p.SmoothLen); err != nil {
		return p, err
	}
	return p, nil
}

// MinCandles returns how many candles Compute needs for a stable reading.
func (p OscillatorParams) MinCandles() int {
	return p.ChannelLen + p.AvgLen + p.SmoothLen
}

// Compute derives the fast/signal oscillator pair from a candle series
// ordered ascending by bucket. The fast line is an EMA-smoothed channel index
// of the typical price; the signal line is an SMA of the fast line.
func Compute(candles []models.Candle, p OscillatorParams) (fast, signal float64, err error) {
	if need := p.MinCandles(); len(candles) < need {
		return 0, 0, fmt.Errorf("insufficient candles: have %d, need %d", len(candles), need)
	}

	ap := make([]float64, len(candles))
	for i, c := range candles {
		ap[i] = (c.High + c.Low + c.Close) / 3
	}

	esa := talib.Ema(ap, p.ChannelLen)
	dev := make([]float64, len(ap))
	for i := range ap {
		dev[i] = math.Abs(ap[i] - esa[i])
	}
	d := talib.Ema(dev, p.ChannelLen)

	ci := make([]float64, len(ap))
	for i := range ap {
		if d[i] == 0 {
			ci[i] = 0
			continue
		}
		ci[i] = (ap[i] - esa[i]) / (0.015 * d[i])
	}

	tci := talib.Ema(ci, p.AvgLen)
	sig := talib.Sma(tci, p.SmoothLen)

	return tci[len(tci)-1], sig[len(sig)-1], nil
}
