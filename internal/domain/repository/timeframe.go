package repository

// Timeframe represents a fixed candle sampling interval.
type Timeframe string

const (
	TF2m  Timeframe = "2m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var tfSeconds = map[Timeframe]int64{
	TF2m:  120,
	TF5m:  300,
	TF15m: 900,
	TF30m: 1800,
	TF1h:  3600,
	TF4h:  14400,
	TF1d:  86400,
}

// Known returns the supported timeframes in ascending width order.
func Known() []Timeframe {
	return []Timeframe{TF2m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d}
}

// Seconds returns the bucket width in seconds, or 0 for an unknown timeframe.
func (tf Timeframe) Seconds() int64 { return tfSeconds[tf] }

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := tfSeconds[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF5m }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// CompareTimeframes orders timeframes by bucket width.
func CompareTimeframes(a, b Timeframe) int {
	switch {
	case a.Seconds() < b.Seconds():
		return -1
	case a.Seconds() > b.Seconds():
		return 1
	default:
		return 0
	}
}
