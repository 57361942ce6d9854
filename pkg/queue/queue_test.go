package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"QuantPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

type stubHandler struct {
	name string
	typ  string
}

func (h *stubHandler) Name() string { return h.name }
func (h *stubHandler) Type() string { return h.typ }
func (h *stubHandler) Handle(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	return nil, nil
}

func TestRegisterHandlerFirstWins(t *testing.T) {
	q := NewRedisQueue(testLogger(t), &Config{}, nil)
	first := &stubHandler{name: "first", typ: "pipeline.run"}
	second := &stubHandler{name: "second", typ: "pipeline.run"}

	q.RegisterHandler(first)
	q.RegisterHandler(second)

	q.mu.RLock()
	got := q.handlers["pipeline.run"]
	q.mu.RUnlock()
	if got != first {
		t.Fatalf("expected first registered handler to win, got %q", got.Name())
	}
}

func TestLowLanePauseToggle(t *testing.T) {
	q := NewRedisQueue(testLogger(t), &Config{}, nil)
	if q.LowPaused() {
		t.Fatal("new queue should not start paused")
	}
	q.PauseLow()
	if !q.LowPaused() {
		t.Fatal("expected low lane paused")
	}
	q.ResumeLow()
	if q.LowPaused() {
		t.Fatal("expected low lane resumed")
	}
}

func TestLaneKeys(t *testing.T) {
	q := NewRedisQueue(testLogger(t), &Config{}, nil, WithKeyPrefix("qp:test"))
	if got := q.laneKey(PriorityHigh); got != "qp:test:high" {
		t.Fatalf("high lane key = %q", got)
	}
	if got := q.laneKey(PriorityLow); got != "qp:test:low" {
		t.Fatalf("low lane key = %q", got)
	}
	if got := q.jobKey("abc"); got != "qp:test:job:abc" {
		t.Fatalf("job key = %q", got)
	}
	if got := q.dedupeKey("mtf|2026-01-02"); got != "qp:test:dedupe:mtf|2026-01-02" {
		t.Fatalf("dedupe key = %q", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	q := NewRedisQueue(testLogger(t), &Config{}, nil)
	if q.config.Workers != 1 {
		t.Fatalf("workers default = %d", q.config.Workers)
	}
	if q.config.RetryDelay != 10*time.Second {
		t.Fatalf("retry delay default = %v", q.config.RetryDelay)
	}
	if q.config.DedupeTTL != 5*time.Minute {
		t.Fatalf("dedupe ttl default = %v", q.config.DedupeTTL)
	}
}
