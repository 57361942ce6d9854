package repository

import (
	"context"
	"time"

	"QuantPulse/internal/domain/models"
)

// MarketDataSource provides candles for pipeline runs.
type MarketDataSource interface {
	// FetchCandles returns candles ordered ascending by bucket for [from, to].
	FetchCandles(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]models.Candle, error)
	// LatestCandle returns the most recent candle, or nil when none exists.
	LatestCandle(ctx context.Context, symbol string, tf Timeframe) (*models.Candle, error)
}

// CandleWriter persists closed candles produced by tick aggregation.
type CandleWriter interface {
	WriteCandle(ctx context.Context, c *models.Candle) error
	WriteBatch(ctx context.Context, cs []*models.Candle) error
}

// ConfigRegistry resolves immutable policies and thresholds loaded at startup.
type ConfigRegistry interface {
	ResolvePolicy(id string) (*models.StrategyPolicy, error)
	// ResolveThresholds returns (nil, false) when no entry exists for the pair;
	// callers exclude that timeframe rather than failing the run.
	ResolveThresholds(symbol string, tf Timeframe) (*models.ThresholdSet, bool)
	Instruments() []models.Instrument
}

// SignalSink receives aggregated signals. Fan-out to storage or notification
// channels is the sink's responsibility, not the core's.
type SignalSink interface {
	Emit(ctx context.Context, sig *models.AggregatedSignal) error
}

// LeaseStore arbitrates exclusivity between competing worker classes.
// Acquire-if-absent and release-if-owner must be atomic; an expired lease is
// reclaimable by the next acquire attempt.
type LeaseStore interface {
	TryAcquire(ctx context.Context, workflowClass string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, workflowClass string) error
	IsHeld(ctx context.Context, workflowClass string) (bool, error)
}

// JobQueue admits pipeline jobs and exposes their lifecycle.
type JobQueue interface {
	// Dispatch enqueues the job. When the dedupe key already admitted an
	// equivalent job within its window it returns admitted=false and
	// models.ErrDuplicateJob; callers treat that as a skip, not a failure.
	Dispatch(ctx context.Context, job *models.PipelineJob) (admitted bool, err error)
	Status(ctx context.Context, jobID string) (models.JobStatus, error)
	Result(ctx context.Context, jobID string) (*models.RunSummary, error)
}

// Metrics records operational counters for the pipeline and scheduler.
type Metrics interface {
	RecordSignal(symbol, signalType string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLastClose(symbol string, price float64)
	RecordCandleClosed(symbol, tf string)
	SetWorkerPaused(class string, paused bool)
	RecordJob(status string)
}
