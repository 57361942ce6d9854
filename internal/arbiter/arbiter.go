// Package arbiter coordinates exclusivity between the batch pipeline and the
// realtime tick workers. While the batch workflow class holds its lease, the
// low-priority lane of the job queue is suspended; it resumes as soon as the
// lease is released or expires.
package arbiter

import (
	"context"
	"time"

	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/pkg/logger"
)

// LaneGate is the part of the job queue the arbiter drives.
type LaneGate interface {
	PauseLow()
	ResumeLow()
	LowPaused() bool
}

// Arbiter polls the lease store on a fixed cadence and toggles the queue's
// low-priority lane accordingly.
type Arbiter struct {
	logger        *logger.Logger
	leases        domrepo.LeaseStore
	gate          LaneGate
	metrics       domrepo.Metrics
	batchClass    string
	realtimeClass string
	cadence       time.Duration
}

// Config contains the configuration for the arbiter.
type Config struct {
	BatchClass    string
	RealtimeClass string
	Cadence       time.Duration
}

// New creates an arbiter. Cadence defaults to 60 seconds.
func New(lgr *logger.Logger, leases domrepo.LeaseStore, gate LaneGate, metrics domrepo.Metrics, cfg *Config) *Arbiter {
	cadence := cfg.Cadence
	if cadence <= 0 {
		cadence = 60 * time.Second
	}
	return &Arbiter{
		logger:        lgr.With("arbiter"),
		leases:        leases,
		gate:          gate,
		metrics:       metrics,
		batchClass:    cfg.BatchClass,
		realtimeClass: cfg.RealtimeClass,
		cadence:       cadence,
	}
}

// Tick performs one arbitration pass. On a lease-store error the current lane
// state is left untouched; a transient Redis blip must not flap the workers.
func (a *Arbiter) Tick(ctx context.Context) error {
	held, err := a.leases.IsHeld(ctx, a.batchClass)
	if err != nil {
		a.logger.Warn("lease check failed, keeping lane state",
			logger.String("class", a.batchClass),
			logger.Error(err))
		return err
	}

	paused := a.gate.LowPaused()
	switch {
	case held && !paused:
		a.gate.PauseLow()
		a.metrics.SetWorkerPaused(a.realtimeClass, true)
		a.logger.Info("batch lease held, pausing low-priority workers",
			logger.String("batch_class", a.batchClass),
			logger.String("paused_class", a.realtimeClass))
	case !held && paused:
		a.gate.ResumeLow()
		a.metrics.SetWorkerPaused(a.realtimeClass, false)
		a.logger.Info("batch lease released, resuming low-priority workers",
			logger.String("batch_class", a.batchClass),
			logger.String("resumed_class", a.realtimeClass))
	}
	return nil
}

// Run arbitrates on the configured cadence until ctx is cancelled. The first
// pass runs immediately so a restart converges without waiting a full period.
func (a *Arbiter) Run(ctx context.Context) {
	a.logger.Info("arbiter started",
		logger.Duration("cadence_ms", a.cadence),
		logger.String("batch_class", a.batchClass))

	_ = a.Tick(ctx)

	ticker := time.NewTicker(a.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// leave the lane resumed so workers are not stranded paused
			if a.gate.LowPaused() {
				a.gate.ResumeLow()
				a.metrics.SetWorkerPaused(a.realtimeClass, false)
			}
			a.logger.Info("arbiter stopped")
			return
		case <-ticker.C:
			_ = a.Tick(ctx)
		}
	}
}
