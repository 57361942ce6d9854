package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/pkg/logger"
)

// PipelineJobHandler consumes pipeline jobs off the queue and runs them
// through the executor. The run summary becomes the stored job result.
type PipelineJobHandler struct {
	logger   *logger.Logger
	executor *PipelineExecutor
	metrics  domrepo.Metrics
	jobType  string
}

// NewPipelineJobHandler creates the handler for a queue job type.
func NewPipelineJobHandler(lgr *logger.Logger, executor *PipelineExecutor, metrics domrepo.Metrics, jobType string) *PipelineJobHandler {
	return &PipelineJobHandler{
		logger:   lgr.With("pipeline_handler"),
		executor: executor,
		metrics:  metrics,
		jobType:  jobType,
	}
}

func (h *PipelineJobHandler) Name() string { return "pipeline-runner" }
func (h *PipelineJobHandler) Type() string { return h.jobType }

func (h *PipelineJobHandler) Handle(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var job models.PipelineJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decode pipeline job: %w", err)
	}
	if !job.Mode.Valid() {
		return nil, models.ConfigErrorf("job.mode", "unknown run mode %q", job.Mode)
	}

	h.logger.Info("pipeline job started",
		logger.String("job_id", job.ID),
		logger.String("policy", job.PolicyID),
		logger.String("mode", string(job.Mode)),
		logger.Int("instruments", len(job.Instruments)))

	summary, err := h.executor.RunBatch(ctx, &job)
	if err != nil {
		h.metrics.RecordJob("failed")
		return nil, err
	}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		// the batch ran out of its allotted time; surface the partial summary
		// alongside the timeout so the queue fails the job with it attached
		h.metrics.RecordJob("failed")
		return summary, fmt.Errorf("%w: %w", models.ErrJobTimeout, ctxErr)
	}

	h.metrics.RecordJob("done")
	return summary, nil
}
