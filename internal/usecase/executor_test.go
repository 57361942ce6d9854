package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/internal/strategy"
	"QuantPulse/pkg/lease"
	"QuantPulse/pkg/logger"
)

const testSymbol = "BTC@BINANCE"

type fakeSource struct {
	mu      sync.Mutex
	candles map[string][]models.Candle // "symbol|tf"
	errs    map[string]error
	fetches int
}

func (s *fakeSource) key(symbol string, tf domrepo.Timeframe) string {
	return symbol + "|" + string(tf)
}

func (s *fakeSource) FetchCandles(_ context.Context, symbol string, tf domrepo.Timeframe, _, _ time.Time) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if err := s.errs[s.key(symbol, tf)]; err != nil {
		return nil, err
	}
	return s.candles[s.key(symbol, tf)], nil
}

func (s *fakeSource) LatestCandle(_ context.Context, symbol string, tf domrepo.Timeframe) (*models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.candles[s.key(symbol, tf)]
	if len(cs) == 0 {
		return nil, nil
	}
	c := cs[len(cs)-1]
	return &c, nil
}

type fakeSink struct {
	mu      sync.Mutex
	signals []*models.AggregatedSignal
	err     error
}

func (s *fakeSink) Emit(_ context.Context, sig *models.AggregatedSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.signals = append(s.signals, sig)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)   {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordLastClose(string, float64) {
}
func (nopMetrics) RecordCandleClosed(string, string) {}
func (nopMetrics) SetWorkerPaused(string, bool)      {}
func (nopMetrics) RecordJob(string)                  {}

func trend(n int, price func(i int) float64) []models.Candle {
	out := make([]models.Candle, n)
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		p := price(i)
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Minute),
			Symbol: testSymbol,
			Open:   p, High: p * 1.001, Low: p * 0.999, Close: p,
			Volume: 1,
		}
	}
	return out
}

func uptrend(n int) []models.Candle   { return trend(n, func(i int) float64 { return 100 + float64(i) }) }
func downtrend(n int) []models.Candle { return trend(n, func(i int) float64 { return 300 - float64(i) }) }

func testRegistry(t *testing.T, thresholds []strategy.ThresholdSpec) *strategy.Registry {
	t.Helper()
	reg, err := strategy.NewRegistry(
		[]strategy.PolicySpec{{
			ID:           "mtf",
			Components:   []string{"wt_oscillator"},
			Weights:      map[string]float64{"2m": 2, "5m": 3},
			ConsensusMin: 1,
		}},
		thresholds,
		[]models.Instrument{{Ticker: "BTC", Venue: "BINANCE", Active: true}},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func allThresholds() []strategy.ThresholdSpec {
	return []strategy.ThresholdSpec{
		{Symbol: testSymbol, TF: "2m", FastLine: 1, SignalLine: 1},
		{Symbol: testSymbol, TF: "5m", FastLine: 1, SignalLine: 1},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

func newExecutor(t *testing.T, source *fakeSource, reg *strategy.Registry, sink *fakeSink, leases domrepo.LeaseStore) *PipelineExecutor {
	t.Helper()
	return NewPipelineExecutor(testLogger(t), source, reg, sink, leases, nopMetrics{}, &ExecutorConfig{
		BackfillWindow: 24 * time.Hour,
		FetchRPS:       1000, // tests must not pace
		LeaseTTL:       time.Minute,
		BatchClass:     "mtf-batch",
	})
}

func TestRunEmitsBuyOnUptrend(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		testSymbol + "|2m": uptrend(120),
		testSymbol + "|5m": uptrend(120),
	}}
	sink := &fakeSink{}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), sink, lease.NewMemoryStore("test"))

	sig, err := e.Run(context.Background(), testSymbol, "mtf", models.ModeBackfill)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Type != models.SignalBuy {
		t.Fatalf("uptrend on all timeframes should be BUY, got %s", sig.Type)
	}
	if sig.ID == "" || sig.Symbol != testSymbol || sig.GeneratedAt.IsZero() {
		t.Fatalf("identity fields not stamped: %+v", sig)
	}
	if len(sig.Contributions) != 2 {
		t.Fatalf("expected 2 contributions, got %d", len(sig.Contributions))
	}
	if len(sink.signals) != 1 || sink.signals[0] != sig {
		t.Fatal("signal should reach the sink")
	}
}

func TestRunSellOnDowntrend(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		testSymbol + "|2m": downtrend(120),
		testSymbol + "|5m": downtrend(120),
	}}
	sink := &fakeSink{}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), sink, lease.NewMemoryStore("test"))

	sig, err := e.Run(context.Background(), testSymbol, "mtf", models.ModeBackfill)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sig.Type != models.SignalSell {
		t.Fatalf("downtrend on all timeframes should be SELL, got %s", sig.Type)
	}
}

func TestRunExcludesTimeframeWithoutThresholds(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		testSymbol + "|2m": uptrend(120),
		testSymbol + "|5m": uptrend(120),
	}}
	sink := &fakeSink{}
	only5m := []strategy.ThresholdSpec{{Symbol: testSymbol, TF: "5m", FastLine: 1, SignalLine: 1}}
	e := newExecutor(t, source, testRegistry(t, only5m), sink, lease.NewMemoryStore("test"))

	sig, err := e.Run(context.Background(), testSymbol, "mtf", models.ModeBackfill)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sig.Contributions) != 1 || sig.Contributions[0].TF != "5m" {
		t.Fatalf("only 5m should contribute, got %+v", sig.Contributions)
	}
}

func TestRunSkipsWhenEveryTimeframeExcluded(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{}}
	sink := &fakeSink{}
	e := newExecutor(t, source, testRegistry(t, nil), sink, lease.NewMemoryStore("test"))

	sig, err := e.Run(context.Background(), testSymbol, "mtf", models.ModeBackfill)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected skip, got %+v", sig)
	}
	if len(sink.signals) != 0 {
		t.Fatal("nothing should reach the sink on skip")
	}
}

func TestRunFetchFailureIsDataUnavailable(t *testing.T) {
	source := &fakeSource{
		candles: map[string][]models.Candle{testSymbol + "|5m": uptrend(120)},
		errs:    map[string]error{testSymbol + "|2m": fmt.Errorf("backend down")},
	}
	sink := &fakeSink{}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), sink, lease.NewMemoryStore("test"))

	_, err := e.Run(context.Background(), testSymbol, "mtf", models.ModeBackfill)
	var dataErr *models.DataUnavailableError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataUnavailableError, got %v", err)
	}
	if dataErr.Symbol != testSymbol {
		t.Fatalf("error should carry the symbol, got %+v", dataErr)
	}
	if !strings.Contains(err.Error(), string(StateFetching)) {
		t.Fatalf("error should name the failing stage, got %v", err)
	}
}

func TestRunEmissionFailureKeepsSignal(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		testSymbol + "|2m": uptrend(120),
		testSymbol + "|5m": uptrend(120),
	}}
	sink := &fakeSink{err: fmt.Errorf("broker unreachable")}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), sink, lease.NewMemoryStore("test"))

	sig, err := e.Run(context.Background(), testSymbol, "mtf", models.ModeBackfill)
	if err != nil {
		t.Fatalf("emission failure must not fail the run: %v", err)
	}
	if sig == nil || sig.Type != models.SignalBuy {
		t.Fatalf("computed signal must survive emission failure, got %+v", sig)
	}
}

func TestRunRealtimeWithoutFreshDataSkips(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{}}
	sink := &fakeSink{}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), sink, lease.NewMemoryStore("test"))

	sig, err := e.Run(context.Background(), testSymbol, "mtf", models.ModeRealtime)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sig != nil {
		t.Fatalf("no fresh candles should mean skip, got %+v", sig)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	other := "ETH@BINANCE"
	source := &fakeSource{
		candles: map[string][]models.Candle{
			testSymbol + "|2m": uptrend(120),
			testSymbol + "|5m": uptrend(120),
		},
		errs: map[string]error{
			other + "|2m": fmt.Errorf("backend down"),
			other + "|5m": fmt.Errorf("backend down"),
		},
	}
	sink := &fakeSink{}
	reg := testRegistry(t, append(allThresholds(),
		strategy.ThresholdSpec{Symbol: other, TF: "2m", FastLine: 1, SignalLine: 1},
		strategy.ThresholdSpec{Symbol: other, TF: "5m", FastLine: 1, SignalLine: 1},
	))
	e := newExecutor(t, source, reg, sink, lease.NewMemoryStore("test"))

	summary, err := e.RunBatch(context.Background(), &models.PipelineJob{
		ID:          "job-1",
		PolicyID:    "mtf",
		Instruments: []string{other, testSymbol},
		Mode:        models.ModeBackfill,
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("healthy sibling must still process, got %d", summary.Processed)
	}
	if summary.Signals != 1 {
		t.Fatalf("expected one non-HOLD signal, got %d", summary.Signals)
	}
	if _, ok := summary.Errors[other]; !ok {
		t.Fatalf("failed instrument must be reported, errors=%v", summary.Errors)
	}
	if summary.Duration < 0 {
		t.Fatal("duration must be stamped")
	}
}

func TestRunBatchHighPriorityTakesAndReleasesLease(t *testing.T) {
	ctx := context.Background()
	leases := lease.NewMemoryStore("test")
	source := &fakeSource{candles: map[string][]models.Candle{
		testSymbol + "|2m": uptrend(120),
		testSymbol + "|5m": uptrend(120),
	}}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), &fakeSink{}, leases)

	summary, err := e.RunBatch(ctx, &models.PipelineJob{
		ID:          "job-1",
		PolicyID:    "mtf",
		Instruments: []string{testSymbol},
		Mode:        models.ModeBackfill,
		HighPrio:    true,
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("processed = %d", summary.Processed)
	}
	held, _ := leases.IsHeld(ctx, "mtf-batch")
	if held {
		t.Fatal("lease must be released after the batch")
	}
}

func TestRunBatchDefersWhenLeaseBusy(t *testing.T) {
	ctx := context.Background()
	leases := lease.NewMemoryStore("other-owner")
	if _, err := leases.TryAcquire(ctx, "mtf-batch", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	e := newExecutor(t, &fakeSource{}, testRegistry(t, allThresholds()), &fakeSink{}, leases)

	summary, err := e.RunBatch(ctx, &models.PipelineJob{
		ID:          "job-2",
		PolicyID:    "mtf",
		Instruments: []string{testSymbol},
		Mode:        models.ModeBackfill,
		HighPrio:    true,
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatal("deferred batch must process nothing")
	}
	if _, ok := summary.Errors["*"]; !ok {
		t.Fatalf("deferral must be reported, errors=%v", summary.Errors)
	}
}
