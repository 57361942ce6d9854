package models

import "time"

// RunMode selects how a pipeline run acquires its candles.
type RunMode string

const (
	ModeBackfill RunMode = "backfill"
	ModeRealtime RunMode = "realtime"
)

// Valid reports whether m is a known run mode.
func (m RunMode) Valid() bool { return m == ModeBackfill || m == ModeRealtime }

// JobStatus is the queue-visible lifecycle of a dispatched job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// PipelineJob is one schedulable unit of pipeline work.
type PipelineJob struct {
	ID          string        `json:"id"`
	PolicyID    string        `json:"policy_id"`
	Instruments []string      `json:"instruments"`
	Mode        RunMode       `json:"mode"`
	DedupeKey   string        `json:"dedupe_key"`
	Timeout     time.Duration `json:"timeout"`
	HighPrio    bool          `json:"high_prio"`
	EnqueuedAt  time.Time     `json:"enqueued_at"`
}

// RunSummary reports the outcome of a batch run over N instruments.
// Partial failure is explicit: errors never abort sibling instruments.
type RunSummary struct {
	Processed int               `json:"processed"`
	Signals   int               `json:"signals"` // non-HOLD decisions
	Skipped   int               `json:"skipped"`
	Errors    map[string]string `json:"errors,omitempty"` // symbol -> reason
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
}

// NewRunSummary returns an empty summary stamped with the start time.
func NewRunSummary(now time.Time) *RunSummary {
	return &RunSummary{Errors: make(map[string]string), StartedAt: now}
}
