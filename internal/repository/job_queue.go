package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/pkg/queue"
)

// PipelineJobType is the queue job type pipeline runs are dispatched under.
const PipelineJobType = "pipeline.run"

// Enqueuer is the slice of the job queue the dispatcher depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
	Status(ctx context.Context, jobID string) (queue.Status, error)
	Result(ctx context.Context, jobID string) (json.RawMessage, error)
}

// QueueDispatcher adapts the job queue to the domain JobQueue contract.
// Duplicate dispatches within the dedupe window are reported as not admitted
// with ErrDuplicateJob; callers resolve them as a skip, never a failure.
type QueueDispatcher struct {
	q Enqueuer
}

// NewQueueDispatcher creates the adapter.
func NewQueueDispatcher(q Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{q: q}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job *models.PipelineJob) (bool, error) {
	if !job.Mode.Valid() {
		return false, models.ConfigErrorf("job.mode", "unknown run mode %q", job.Mode)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal pipeline job: %w", err)
	}

	prio := queue.PriorityLow
	if job.HighPrio {
		prio = queue.PriorityHigh
	}

	err = d.q.Enqueue(ctx, &queue.Job{
		ID:        job.ID,
		Type:      PipelineJobType,
		DedupeKey: job.DedupeKey,
		Priority:  prio,
		Timeout:   job.Timeout,
		Payload:   payload,
	})
	if errors.Is(err, queue.ErrDuplicate) {
		return false, models.ErrDuplicateJob
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *QueueDispatcher) Status(ctx context.Context, jobID string) (models.JobStatus, error) {
	s, err := d.q.Status(ctx, jobID)
	if err != nil {
		return "", err
	}
	switch s {
	case queue.StatusQueued:
		return models.JobQueued, nil
	case queue.StatusRunning:
		return models.JobRunning, nil
	case queue.StatusDone:
		return models.JobDone, nil
	case queue.StatusFailed:
		return models.JobFailed, nil
	default:
		return "", fmt.Errorf("unknown queue status %q", s)
	}
}

func (d *QueueDispatcher) Result(ctx context.Context, jobID string) (*models.RunSummary, error) {
	raw, err := d.q.Result(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var summary models.RunSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	return &summary, nil
}

var _ domrepo.JobQueue = (*QueueDispatcher)(nil)
