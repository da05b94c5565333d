// internal/scheduler/job.go
package scheduler

import (
	"context"
	"time"
)

// Job types used by the execution history.
const (
	JobTypePipeline  = "pipeline"
	JobTypeComposite = "composite"
)

// Well-known job names.
const (
	JobNameFeatures = "feature_build"
	JobNameRisk     = "risk_scoring"
	JobNameActions  = "action_generation"
	JobNameNightly  = "nightly_pipeline"
)

// JobParams are the inputs of one logical job run.
type JobParams struct {
	SnapshotDate time.Time `json:"snapshot_date"`
	Incremental  bool      `json:"incremental"`
}

// JobResult is what a job function reports back to the scheduler. A job that
// legitimately had nothing to do returns Success=true with a SkippedReason.
type JobResult struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message,omitempty"`
	SkippedReason string         `json:"skipped_reason,omitempty"`
	RetryCount    int            `json:"retry_count"`
	Details       map[string]any `json:"details,omitempty"`
}

// Job is a runnable unit the scheduler knows how to execute, retry and track.
type Job interface {
	Name() string
	Type() string

	// Execute runs the job once. A returned error means the attempt failed
	// and may be retried; a JobResult with Success=false is equivalent.
	Execute(ctx context.Context, params JobParams) (*JobResult, error)
}
