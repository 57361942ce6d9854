package usecase

import (
	"context"
	"sync"

	"QuantPulse/internal/candle"
	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/pkg/logger"
)

// TickIngestor folds validated ticks into per-symbol, per-timeframe candles
// and persists each candle as it closes. Aggregators are created lazily on
// the first tick for a symbol and owned exclusively by this ingestor.
type TickIngestor struct {
	logger     *logger.Logger
	writer     domrepo.CandleWriter
	metrics    domrepo.Metrics
	timeframes []domrepo.Timeframe

	mu   sync.Mutex
	aggs map[string]map[domrepo.Timeframe]*candle.Aggregator // symbol -> tf -> aggregator
}

// NewTickIngestor creates an ingestor aggregating over the given timeframes.
func NewTickIngestor(lgr *logger.Logger, writer domrepo.CandleWriter, metrics domrepo.Metrics, timeframes []domrepo.Timeframe) *TickIngestor {
	return &TickIngestor{
		logger:     lgr.With("ingestor"),
		writer:     writer,
		metrics:    metrics,
		timeframes: timeframes,
		aggs:       make(map[string]map[domrepo.Timeframe]*candle.Aggregator),
	}
}

// Process folds one tick into every configured timeframe, writing out candles
// that close on bucket advance.
func (i *TickIngestor) Process(ctx context.Context, t *models.Tick) error {
	i.mu.Lock()
	byTF, ok := i.aggs[t.Symbol]
	if !ok {
		byTF = make(map[domrepo.Timeframe]*candle.Aggregator, len(i.timeframes))
		for _, tf := range i.timeframes {
			byTF[tf] = candle.NewAggregator(t.Symbol, string(tf), tf.Seconds())
		}
		i.aggs[t.Symbol] = byTF
	}

	var closed []*models.Candle
	for tf, agg := range byTF {
		if c := agg.AddTick(t); c != nil {
			closed = append(closed, c)
			i.metrics.RecordCandleClosed(t.Symbol, string(tf))
		}
	}
	i.mu.Unlock()

	i.metrics.RecordLastClose(t.Symbol, t.Mid())

	if len(closed) == 0 {
		return nil
	}
	if err := i.writer.WriteBatch(ctx, closed); err != nil {
		i.metrics.RecordError("candle_write")
		i.logger.Error("candle write failed",
			logger.String("symbol", t.Symbol),
			logger.Int("candles", len(closed)),
			logger.Error(err))
		return err
	}
	return nil
}

// Current returns a copy of the in-progress candle for a pair, or nil.
func (i *TickIngestor) Current(symbol string, tf domrepo.Timeframe) *models.Candle {
	i.mu.Lock()
	defer i.mu.Unlock()
	byTF, ok := i.aggs[symbol]
	if !ok {
		return nil
	}
	agg, ok := byTF[tf]
	if !ok {
		return nil
	}
	return agg.Current()
}

// Dropped reports the late-tick drop count for a pair.
func (i *TickIngestor) Dropped(symbol string, tf domrepo.Timeframe) int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if byTF, ok := i.aggs[symbol]; ok {
		if agg, ok := byTF[tf]; ok {
			return agg.Dropped()
		}
	}
	return 0
}
