package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"QuantPulse/internal/aggregate"
	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/internal/indicator"
	"QuantPulse/internal/service/ratelimit"
	"QuantPulse/internal/zone"
	"QuantPulse/pkg/logger"
)

// RunState names the stages of one pipeline run. FAILED is reachable from any
// stage; a run that computes nothing and fails nothing ends SKIPPED.
type RunState string

const (
	StateFetching    RunState = "FETCHING"
	StateComputing   RunState = "COMPUTING"
	StateClassifying RunState = "CLASSIFYING"
	StateAggregating RunState = "AGGREGATING"
	StateEmitting    RunState = "EMITTING"
	StateDone        RunState = "DONE"
	StateFailed      RunState = "FAILED"
)

// runFailed stamps a run error with the stage it failed in, so callers and
// run summaries can tell FETCHING failures from COMPUTING ones.
func runFailed(state RunState, err error) error {
	return fmt.Errorf("%s/%s: %w", StateFailed, state, err)
}

// ExecutorConfig contains the configuration for pipeline runs.
type ExecutorConfig struct {
	BackfillWindow time.Duration // historical window pulled per timeframe in backfill mode
	FetchRPS       float64       // market-data fetch pacing, requests per second
	LeaseTTL       time.Duration // exclusivity lease for a batch run
	BatchClass     string        // workflow class the batch lease is taken under
}

// PipelineExecutor drives one instrument through fetch, compute, classify,
// aggregate and emit. Collaborators are injected; the executor owns no
// long-lived state beyond its pacing buckets.
type PipelineExecutor struct {
	logger   *logger.Logger
	source   domrepo.MarketDataSource
	registry domrepo.ConfigRegistry
	sink     domrepo.SignalSink
	leases   domrepo.LeaseStore
	metrics  domrepo.Metrics
	limiter  *ratelimit.Limiter
	config   *ExecutorConfig
	now      func() time.Time
}

// NewPipelineExecutor creates a pipeline executor.
func NewPipelineExecutor(
	lgr *logger.Logger,
	source domrepo.MarketDataSource,
	registry domrepo.ConfigRegistry,
	sink domrepo.SignalSink,
	leases domrepo.LeaseStore,
	metrics domrepo.Metrics,
	config *ExecutorConfig,
) *PipelineExecutor {
	if config.BackfillWindow <= 0 {
		config.BackfillWindow = 365 * 24 * time.Hour
	}
	if config.FetchRPS <= 0 {
		config.FetchRPS = 5
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = 10 * time.Minute
	}
	return &PipelineExecutor{
		logger:   lgr.With("executor"),
		source:   source,
		registry: registry,
		sink:     sink,
		leases:   leases,
		metrics:  metrics,
		limiter:  ratelimit.New(),
		config:   config,
		now:      time.Now,
	}
}

// Run executes the pipeline for one instrument under one policy. It returns
// the emitted signal, or (nil, nil) when every timeframe was excluded and
// there was nothing to decide on.
func (e *PipelineExecutor) Run(ctx context.Context, symbol, policyID string, mode models.RunMode) (*models.AggregatedSignal, error) {
	start := e.now()
	state := StateFetching

	policy, err := e.registry.ResolvePolicy(policyID)
	if err != nil {
		return nil, runFailed(state, err)
	}
	params, err := indicator.ParamsFromPolicy(policy.Params)
	if err != nil {
		return nil, runFailed(state, err)
	}

	results := make(map[domrepo.Timeframe]models.IndicatorResult, len(policy.Weights))

	for tfLabel := range policy.Weights {
		tf := domrepo.Timeframe(tfLabel)

		thresholds, ok := e.registry.ResolveThresholds(symbol, tf)
		if !ok {
			// no thresholds configured for this pair: exclude the timeframe,
			// do not fail the run
			e.logger.Debug("no thresholds, excluding timeframe",
				logger.String("symbol", symbol),
				logger.String("tf", tfLabel))
			continue
		}

		state = StateFetching
		candles, err := e.fetch(ctx, symbol, tf, mode, params)
		if err != nil {
			e.metrics.RecordError("data_unavailable")
			return nil, runFailed(state, &models.DataUnavailableError{Symbol: symbol, TF: tfLabel, Err: err})
		}
		if len(candles) < params.MinCandles() {
			e.logger.Debug("insufficient history, excluding timeframe",
				logger.String("symbol", symbol),
				logger.String("tf", tfLabel),
				logger.Int("candles", len(candles)))
			continue
		}

		state = StateComputing
		fast, signal, err := indicator.Compute(candles, params)
		if err != nil {
			return nil, runFailed(state, &models.DataUnavailableError{Symbol: symbol, TF: tfLabel, Err: err})
		}

		state = StateClassifying
		z := zone.ClassifyBands(fast, signal, thresholds.FastLine, thresholds.SignalLine)
		results[tf] = models.IndicatorResult{
			Fast:       fast,
			Signal:     signal,
			FastThr:    thresholds.FastLine,
			SignalThr:  thresholds.SignalLine,
			Zone:       z,
			Confidence: timeframeConfidence(z, fast, signal, thresholds.FastLine, thresholds.SignalLine),
		}
	}

	if len(results) == 0 {
		e.logger.Warn("all timeframes excluded, skipping instrument",
			logger.String("symbol", symbol),
			logger.String("policy", policyID))
		return nil, nil
	}

	state = StateAggregating
	sig := aggregate.Aggregate(policy, results)
	sig.ID = uuid.NewString()
	sig.Symbol = symbol
	sig.GeneratedAt = e.now()

	state = StateEmitting
	if err := e.sink.Emit(ctx, sig); err != nil {
		// the computed signal stays valid; emission is logged, not retried here
		e.metrics.RecordError("emission")
		e.logger.Error("signal emission failed",
			logger.String("symbol", symbol),
			logger.String("signal_id", sig.ID),
			logger.Error(&models.EmissionError{Symbol: symbol, Err: err}))
	}

	state = StateDone
	e.metrics.RecordSignal(symbol, string(sig.Type))
	e.metrics.RecordLatency("pipeline_run", e.now().Sub(start).Seconds())
	e.logger.Info("pipeline run complete",
		logger.String("symbol", symbol),
		logger.String("state", string(state)),
		logger.String("signal", string(sig.Type)),
		logger.Float64("confidence", sig.Confidence),
		logger.Duration("elapsed_ms", e.now().Sub(start)))
	return sig, nil
}

// RunBatch runs the pipeline over a job's instrument group with per-instrument
// failure isolation. For high-priority jobs it holds the batch workflow lease
// for the duration of the run.
func (e *PipelineExecutor) RunBatch(ctx context.Context, job *models.PipelineJob) (*models.RunSummary, error) {
	summary := models.NewRunSummary(e.now())

	if job.HighPrio {
		ok, err := e.leases.TryAcquire(ctx, e.config.BatchClass, e.leaseTTL(job))
		if err != nil {
			return nil, err
		}
		if !ok {
			e.logger.Warn("batch lease busy, job deferred",
				logger.String("job_id", job.ID),
				logger.String("class", e.config.BatchClass))
			summary.Errors["*"] = "batch lease held by another run"
			summary.Duration = e.now().Sub(summary.StartedAt)
			return summary, nil
		}
		defer func() {
			if err := e.leases.Release(context.WithoutCancel(ctx), e.config.BatchClass); err != nil {
				e.logger.Warn("batch lease release failed", logger.Error(err))
			}
		}()
	}

	for _, symbol := range job.Instruments {
		if err := ctx.Err(); err != nil {
			summary.Errors[symbol] = err.Error()
			continue
		}

		sig, err := e.Run(ctx, symbol, job.PolicyID, job.Mode)
		switch {
		case err != nil:
			summary.Errors[symbol] = err.Error()
			e.logger.Error("instrument run failed",
				logger.String("job_id", job.ID),
				logger.String("symbol", symbol),
				logger.Error(err))
		case sig == nil:
			summary.Skipped++
		default:
			summary.Processed++
			if sig.Type != models.SignalHold {
				summary.Signals++
			}
		}
	}

	summary.Duration = e.now().Sub(summary.StartedAt)
	e.logger.Info("batch complete",
		logger.String("job_id", job.ID),
		logger.Int("processed", summary.Processed),
		logger.Int("signals", summary.Signals),
		logger.Int("skipped", summary.Skipped),
		logger.Int("errors", len(summary.Errors)),
		logger.Duration("elapsed_ms", summary.Duration))
	return summary, nil
}

// fetch pulls the candle series for one timeframe. Backfill mode pulls the
// full historical window; realtime mode pulls just enough recent history for
// one indicator reading, after confirming fresh data exists.
func (e *PipelineExecutor) fetch(ctx context.Context, symbol string, tf domrepo.Timeframe, mode models.RunMode, params indicator.OscillatorParams) ([]models.Candle, error) {
	if err := e.limiter.Wait(ctx, "source:"+symbol, e.config.FetchRPS, e.config.FetchRPS); err != nil {
		return nil, err
	}

	to := e.now()
	var from time.Time
	switch mode {
	case models.ModeBackfill:
		from = to.Add(-e.config.BackfillWindow)
	case models.ModeRealtime:
		latest, err := e.source.LatestCandle(ctx, symbol, tf)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, nil
		}
		// pull twice the minimum so gaps in the series still leave enough bars
		span := time.Duration(2*int64(params.MinCandles())*tf.Seconds()) * time.Second
		from = to.Add(-span)
	default:
		return nil, models.ConfigErrorf("job.mode", "unknown run mode %q", mode)
	}

	return e.source.FetchCandles(ctx, symbol, tf, from, to)
}

func (e *PipelineExecutor) leaseTTL(job *models.PipelineJob) time.Duration {
	if job.Timeout > 0 {
		return job.Timeout
	}
	return e.config.LeaseTTL
}

// timeframeConfidence scores how far past its band a classification landed.
// Neutral is always 0; a reading exactly on the threshold is 0.5 and the score
// saturates at 1 when either line doubles its threshold.
func timeframeConfidence(z models.Zone, fast, signal, fastThr, signalThr float64) float64 {
	if z == models.ZoneNeutral {
		return 0
	}
	ratio := math.Max(math.Abs(fast)/fastThr, math.Abs(signal)/signalThr)
	conf := ratio / 2
	if conf > 1 {
		conf = 1
	}
	return conf
}
