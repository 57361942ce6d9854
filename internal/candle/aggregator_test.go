package candle

import (
	"testing"

	"QuantPulse/internal/domain/models"
)

func tick(ts int64, bid, ask, vol float64) *models.Tick {
	return &models.Tick{Symbol: "BTC@BINANCE", Timestamp: ts, Bid: bid, Ask: ask, Volume: vol}
}

func TestAddTickOpensAndCloses(t *testing.T) {
	a := NewAggregator("BTC@BINANCE", "1m", 60)

	base := int64(1767312000) // aligned to 60s

	if c := a.AddTick(tick(base, 99, 101, 1)); c != nil {
		t.Fatalf("first tick must not close a candle")
	}
	if c := a.AddTick(tick(base+1, 103, 105, 2)); c != nil {
		t.Fatalf("tick within bucket must not close a candle")
	}

	closed := a.AddTick(tick(base+61, 110, 112, 3))
	if closed == nil {
		t.Fatalf("bucket advance must close prior candle")
	}
	if closed.Open != 100 || closed.High != 104 || closed.Low != 100 || closed.Close != 104 {
		t.Fatalf("unexpected OHLC %+v", closed)
	}
	if closed.Volume != 3 {
		t.Fatalf("volume = %v, want 3", closed.Volume)
	}
	if closed.Bucket.Unix() != base {
		t.Fatalf("bucket = %d, want %d", closed.Bucket.Unix(), base)
	}

	cur := a.Current()
	if cur == nil || cur.Open != 111 || cur.Bucket.Unix() != base+60 {
		t.Fatalf("new candle not seeded from tick mid: %+v", cur)
	}
}

func TestAddTickDropsLate(t *testing.T) {
	a := NewAggregator("BTC@BINANCE", "1m", 60)
	base := int64(1767312000)

	a.AddTick(tick(base, 100, 100, 1))
	closed := a.AddTick(tick(base+61, 200, 200, 1))
	if closed == nil {
		t.Fatalf("expected a closed candle")
	}

	before := *a.Current()
	if c := a.AddTick(tick(base-5, 1, 1, 50)); c != nil {
		t.Fatalf("late tick must not close anything")
	}
	after := *a.Current()
	if before != after {
		t.Fatalf("late tick mutated current candle: %+v vs %+v", before, after)
	}
	if a.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", a.Dropped())
	}
}

func TestHighLowUpdates(t *testing.T) {
	a := NewAggregator("ETH@BINANCE", "2m", 120)
	base := int64(1767312000)

	a.AddTick(tick(base, 100, 100, 1))
	a.AddTick(tick(base+10, 90, 90, 1))
	a.AddTick(tick(base+20, 120, 120, 1))
	a.AddTick(tick(base+30, 110, 110, 1))

	cur := a.Current()
	if cur.High < cur.Open || cur.High < cur.Close {
		t.Fatalf("high invariant broken: %+v", cur)
	}
	if cur.Low > cur.Open || cur.Low > cur.Close {
		t.Fatalf("low invariant broken: %+v", cur)
	}
	if cur.High != 120 || cur.Low != 90 || cur.Close != 110 || cur.Volume != 4 {
		t.Fatalf("unexpected candle %+v", cur)
	}
}
