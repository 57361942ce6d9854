package candle

import (
	"time"

	"QuantPulse/internal/domain/models"
	"QuantPulse/pkg/util"
)

// Aggregator folds a stream of ticks into fixed-width OHLCV candles for one
// symbol/timeframe pair. It is owned by a single ingestion loop and is not
// safe for concurrent use.
type Aggregator struct {
	symbol   string
	tf       string
	widthSec int64
	cur      *models.Candle
	dropped  int64
}

func NewAggregator(symbol, tf string, widthSec int64) *Aggregator {
	return &Aggregator{symbol: symbol, tf: tf, widthSec: widthSec}
}

// AddTick folds one tick into the candle for the bucket containing its
// timestamp. When the tick opens a later bucket, the prior candle is closed
// and returned for emission. Ticks older than the current bucket are dropped;
// buffering or reordering late data would corrupt closed candles.
func (a *Aggregator) AddTick(t *models.Tick) *models.Candle {
	bucket := util.BucketStart(time.Unix(t.Timestamp, 0), a.widthSec).Unix()
	mid := t.Mid()

	if a.cur == nil {
		a.cur = a.open(bucket, mid, t.Volume)
		return nil
	}

	curBucket := a.cur.Bucket.Unix()
	switch {
	case bucket < curBucket:
		a.dropped++
		return nil
	case bucket > curBucket:
		closed := a.cur
		a.cur = a.open(bucket, mid, t.Volume)
		return closed
	default:
		if mid > a.cur.High {
			a.cur.High = mid
		}
		if mid < a.cur.Low {
			a.cur.Low = mid
		}
		a.cur.Close = mid
		a.cur.Volume += t.Volume
		return nil
	}
}

// Current returns a copy of the in-progress candle, or nil when no tick has
// arrived yet.
func (a *Aggregator) Current() *models.Candle {
	if a.cur == nil {
		return nil
	}
	c := *a.cur
	return &c
}

// Dropped returns the count of late ticks discarded so far.
func (a *Aggregator) Dropped() int64 { return a.dropped }

func (a *Aggregator) open(bucketSec int64, mid, vol float64) *models.Candle {
	return &models.Candle{
		Bucket: time.Unix(bucketSec, 0).UTC(),
		Symbol: a.symbol,
		TF:     a.tf,
		Open:   mid,
		High:   mid,
		Low:    mid,
		Close:  mid,
		Volume: vol,
	}
}
