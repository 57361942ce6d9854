package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Priority selects which queue lane a job lands on. High-priority jobs are
// always drained before low-priority ones.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

// Job is one unit of schedulable work as it travels through Redis.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	DedupeKey  string          `json:"dedupe_key,omitempty"`
	Priority   Priority        `json:"priority"`
	Timeout    time.Duration   `json:"timeout"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Handler processes jobs of one type. The returned result is persisted as the
// job's queryable outcome.
type Handler interface {
	// Name returns the unique identifier of the handler.
	Name() string

	// Type returns the job type the handler consumes.
	Type() string

	// Handle processes the job payload and returns a JSON-serializable result.
	Handle(ctx context.Context, payload json.RawMessage) (interface{}, error)
}

// Status is the queue-visible lifecycle of a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)
