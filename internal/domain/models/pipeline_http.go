package models

// HTTP request DTOs for the operational API.

type RunPipelineRequest struct {
	PolicyID       string   `json:"policy_id" validate:"required"`
	Instruments    []string `json:"instruments" validate:"required,min=1,dive,required"`
	Mode           string   `json:"mode" default:"realtime" validate:"oneof=backfill realtime"`
	DedupeKey      string   `json:"dedupe_key"`
	TimeoutSeconds int      `json:"timeout_seconds" default:"300" validate:"gte=1,lte=3600"`
	HighPriority   bool     `json:"high_priority"`
}

type JobStatusRequest struct {
	ID string `param:"id" validate:"required"`
}

type LatestSignalRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type PolicyRequest struct {
	ID string `param:"id" validate:"required"`
}

// RunPipelineResponse reports the dispatch outcome. A duplicate dispatch is
// not an error: admitted=false with a skip reason.
type RunPipelineResponse struct {
	JobID    string `json:"job_id"`
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
}

// JobStatusResponse carries queue status plus the run summary once done.
type JobStatusResponse struct {
	ID      string      `json:"id"`
	Status  JobStatus   `json:"status"`
	Summary *RunSummary `json:"summary,omitempty"`
}
