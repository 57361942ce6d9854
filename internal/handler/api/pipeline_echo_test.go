package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"QuantPulse/internal/domain/models"
	"QuantPulse/internal/strategy"
	"QuantPulse/pkg/logger"
)

// fakeDispatcher honors the dedupe-key contract: one admission per key,
// duplicates reported as ErrDuplicateJob.
type fakeDispatcher struct {
	admitted map[string]bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job *models.PipelineJob) (bool, error) {
	if job.DedupeKey != "" && f.admitted[job.DedupeKey] {
		return false, models.ErrDuplicateJob
	}
	if f.admitted == nil {
		f.admitted = make(map[string]bool)
	}
	f.admitted[job.DedupeKey] = true
	return true, nil
}

func (f *fakeDispatcher) Status(context.Context, string) (models.JobStatus, error) {
	return models.JobQueued, nil
}

func (f *fakeDispatcher) Result(context.Context, string) (*models.RunSummary, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (*PipelineEchoHandler, *echo.Echo) {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	reg, err := strategy.NewRegistry(
		[]strategy.PolicySpec{{
			ID:           "mtf",
			Components:   []string{"wt_oscillator"},
			Weights:      map[string]float64{"5m": 1},
			ConsensusMin: 1,
		}},
		nil,
		[]models.Instrument{{Ticker: "BTC", Venue: "BINANCE", Active: true}},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h := NewPipelineEchoHandler(lgr, &fakeDispatcher{}, reg, nil, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func postRun(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRunPipelineDuplicateDispatchIsSkipped(t *testing.T) {
	_, e := newTestHandler(t)
	body := `{"policy_id":"mtf","instruments":["BTC@BINANCE"],"mode":"realtime","dedupe_key":"realtime:BTC@BINANCE"}`

	rec := postRun(e, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first dispatch should be created, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"admitted":true`) {
		t.Fatalf("first dispatch should be admitted: %s", rec.Body.String())
	}

	rec = postRun(e, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate dispatch should not be a failure, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "skip: duplicate") {
		t.Fatalf("duplicate dispatch should report the skip reason: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"admitted":false`) {
		t.Fatalf("duplicate dispatch should not be admitted: %s", rec.Body.String())
	}
}

func TestRunPipelineUnknownPolicyIsNotFound(t *testing.T) {
	_, e := newTestHandler(t)

	rec := postRun(e, `{"policy_id":"nope","instruments":["BTC@BINANCE"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown policy should be 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRunPipelineRejectsEmptyInstruments(t *testing.T) {
	_, e := newTestHandler(t)

	rec := postRun(e, `{"policy_id":"mtf","instruments":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty instrument list should be 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
