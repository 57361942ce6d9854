package arbiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/pkg/lease"
	"QuantPulse/pkg/logger"
)

type fakeGate struct {
	mu     sync.Mutex
	paused bool
}

func (g *fakeGate) PauseLow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = true
}

func (g *fakeGate) ResumeLow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = false
}

func (g *fakeGate) LowPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

type fakeMetrics struct {
	mu      sync.Mutex
	pausedC map[string]bool
}

func (m *fakeMetrics) RecordSignal(symbol, signalType string)   {}
func (m *fakeMetrics) RecordError(kind string)                  {}
func (m *fakeMetrics) RecordLatency(op string, seconds float64) {}
func (m *fakeMetrics) RecordLastClose(symbol string, p float64) {}
func (m *fakeMetrics) RecordCandleClosed(symbol, tf string)     {}
func (m *fakeMetrics) RecordJob(status string)                  {}

func (m *fakeMetrics) SetWorkerPaused(class string, paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pausedC == nil {
		m.pausedC = make(map[string]bool)
	}
	m.pausedC[class] = paused
}

type failingLeases struct{}

func (failingLeases) TryAcquire(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("unreachable")
}
func (failingLeases) Release(context.Context, string) error { return nil }
func (failingLeases) IsHeld(context.Context, string) (bool, error) {
	return false, errors.New("unreachable")
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

func newArbiter(t *testing.T, leases domrepo.LeaseStore, gate *fakeGate, metrics *fakeMetrics) *Arbiter {
	t.Helper()
	return New(testLogger(t), leases, gate, metrics, &Config{
		BatchClass:    "mtf-batch",
		RealtimeClass: "tick-workers",
		Cadence:       time.Minute,
	})
}

func TestTickPausesWhileLeaseHeld(t *testing.T) {
	ctx := context.Background()
	leases := lease.NewMemoryStore("batch-owner")
	gate := &fakeGate{}
	metrics := &fakeMetrics{}
	a := newArbiter(t, leases, gate, metrics)

	if _, err := leases.TryAcquire(ctx, "mtf-batch", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := a.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !gate.LowPaused() {
		t.Fatal("low lane should be paused while batch lease is held")
	}
	if !metrics.pausedC["tick-workers"] {
		t.Fatal("paused gauge should be set for tick-workers")
	}

	// repeated ticks with no state change are idempotent
	if err := a.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !gate.LowPaused() {
		t.Fatal("low lane should stay paused")
	}
}

func TestTickResumesAfterRelease(t *testing.T) {
	ctx := context.Background()
	leases := lease.NewMemoryStore("batch-owner")
	gate := &fakeGate{}
	metrics := &fakeMetrics{}
	a := newArbiter(t, leases, gate, metrics)

	if _, err := leases.TryAcquire(ctx, "mtf-batch", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_ = a.Tick(ctx)
	if !gate.LowPaused() {
		t.Fatal("precondition: paused")
	}

	if err := leases.Release(ctx, "mtf-batch"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := a.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if gate.LowPaused() {
		t.Fatal("low lane should resume once the lease is released")
	}
	if metrics.pausedC["tick-workers"] {
		t.Fatal("paused gauge should be cleared")
	}
}

func TestTickKeepsStateOnLeaseError(t *testing.T) {
	ctx := context.Background()
	gate := &fakeGate{}
	gate.PauseLow()
	metrics := &fakeMetrics{}
	a := newArbiter(t, failingLeases{}, gate, metrics)

	if err := a.Tick(ctx); err == nil {
		t.Fatal("expected lease check error")
	}
	if !gate.LowPaused() {
		t.Fatal("lane state must not flap on a lease-store error")
	}
}

func TestRunResumesOnShutdown(t *testing.T) {
	leases := lease.NewMemoryStore("batch-owner")
	gate := &fakeGate{}
	metrics := &fakeMetrics{}
	a := newArbiter(t, leases, gate, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := leases.TryAcquire(ctx, "mtf-batch", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	// wait for the immediate first pass to pause the lane
	deadline := time.After(2 * time.Second)
	for !gate.LowPaused() {
		select {
		case <-deadline:
			t.Fatal("arbiter never paused the lane")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("arbiter did not stop")
	}
	if gate.LowPaused() {
		t.Fatal("shutdown must leave the lane resumed")
	}
}
