package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"QuantPulse/internal/domain/models"
	"QuantPulse/pkg/lease"
)

func testJobPayload(t *testing.T, job *models.PipelineJob) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return payload
}

func TestHandleReturnsSummary(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		testSymbol + "|2m": uptrend(120),
		testSymbol + "|5m": uptrend(120),
	}}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), &fakeSink{}, lease.NewMemoryStore("test"))
	h := NewPipelineJobHandler(testLogger(t), e, nopMetrics{}, "pipeline.run")

	res, err := h.Handle(context.Background(), testJobPayload(t, &models.PipelineJob{
		ID:          "job-1",
		PolicyID:    "mtf",
		Instruments: []string{testSymbol},
		Mode:        models.ModeBackfill,
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	summary, ok := res.(*models.RunSummary)
	if !ok {
		t.Fatalf("expected *RunSummary result, got %T", res)
	}
	if summary.Processed != 1 || summary.Signals != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestHandleDeadlineExceededIsJobTimeout(t *testing.T) {
	source := &fakeSource{candles: map[string][]models.Candle{
		testSymbol + "|2m": uptrend(120),
		testSymbol + "|5m": uptrend(120),
	}}
	e := newExecutor(t, source, testRegistry(t, allThresholds()), &fakeSink{}, lease.NewMemoryStore("test"))
	h := NewPipelineJobHandler(testLogger(t), e, nopMetrics{}, "pipeline.run")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	res, err := h.Handle(ctx, testJobPayload(t, &models.PipelineJob{
		ID:          "job-2",
		PolicyID:    "mtf",
		Instruments: []string{testSymbol},
		Mode:        models.ModeBackfill,
	}))
	if !errors.Is(err, models.ErrJobTimeout) {
		t.Fatalf("expected ErrJobTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("timeout should still unwrap to DeadlineExceeded, got %v", err)
	}
	summary, ok := res.(*models.RunSummary)
	if !ok || summary == nil {
		t.Fatalf("partial summary should accompany the timeout, got %T", res)
	}
	if summary.Errors[testSymbol] == "" {
		t.Fatalf("instrument cut off by the deadline should be recorded: %+v", summary)
	}
}

func TestHandleRejectsUnknownMode(t *testing.T) {
	e := newExecutor(t, &fakeSource{}, testRegistry(t, allThresholds()), &fakeSink{}, lease.NewMemoryStore("test"))
	h := NewPipelineJobHandler(testLogger(t), e, nopMetrics{}, "pipeline.run")

	_, err := h.Handle(context.Background(), testJobPayload(t, &models.PipelineJob{
		ID:       "job-3",
		PolicyID: "mtf",
		Mode:     "streaming",
	}))
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
