package models

import "time"

// Instrument is a tradable symbol on a venue.
type Instrument struct {
	Ticker string
	Venue  string
	Active bool
}

// Key returns the unique ticker@venue identifier.
func (i Instrument) Key() string { return i.Ticker + "@" + i.Venue }

// Tick is one top-of-book update from a market feed.
type Tick struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Bid       float64
	Ask       float64
	Volume    float64
}

// Mid returns the bid/ask midpoint.
func (t *Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// Candle represents one OHLCV bucket for a symbol/timeframe.
type Candle struct {
	Bucket time.Time
	Symbol string
	TF     string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// ThresholdSet holds the classification bounds for one symbol/timeframe.
type ThresholdSet struct {
	Symbol     string
	TF         string
	FastLine   float64
	SignalLine float64
}
