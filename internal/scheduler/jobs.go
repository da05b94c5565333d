// internal/scheduler/jobs.go
package scheduler

import (
	"context"
	"fmt"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/pipeline/actions"
	"github.com/andresuchdata/freshrisk/internal/pipeline/changedetect"
	"github.com/andresuchdata/freshrisk/internal/pipeline/features"
	"github.com/andresuchdata/freshrisk/internal/pipeline/risk"
)

// FeatureBuildJob recomputes the rolling velocity features for a snapshot
// date.
type FeatureBuildJob struct {
	builder  *features.Builder
	detector *changedetect.Detector
}

func NewFeatureBuildJob(builder *features.Builder, detector *changedetect.Detector) *FeatureBuildJob {
	return &FeatureBuildJob{builder: builder, detector: detector}
}

func (j *FeatureBuildJob) Name() string { return JobNameFeatures }
func (j *FeatureBuildJob) Type() string { return JobTypePipeline }

func (j *FeatureBuildJob) Execute(ctx context.Context, params JobParams) (*JobResult, error) {
	detection := j.detector.DetectChanges(ctx, params.SnapshotDate, domain.ProcessingFeatures)
	if !detection.HasChanges {
		return &JobResult{Success: true, SkippedReason: "no upstream changes"}, nil
	}

	var keys []domain.StoreSKU
	if params.Incremental {
		var err error
		keys, err = j.detector.ChangedFeatureKeys(ctx, params.SnapshotDate)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve changed feature keys: %w", err)
		}
		if len(keys) == 0 {
			return &JobResult{Success: true, SkippedReason: "no changed keys"}, nil
		}
	}

	result, err := j.builder.Build(ctx, params.SnapshotDate, params.Incremental, keys)
	if err != nil {
		return nil, err
	}

	if err := j.detector.MarkProcessed(ctx, domain.ProcessingFeatures, params.SnapshotDate,
		detection.DataHash, result.RecordsWritten, detection.ChangeSummary); err != nil {
		return nil, fmt.Errorf("failed to record change tracking: %w", err)
	}

	return &JobResult{
		Success: true,
		Message: fmt.Sprintf("built features for %d keys", result.KeysProcessed),
		Details: map[string]any{
			"keys_processed":  result.KeysProcessed,
			"records_written": result.RecordsWritten,
		},
	}, nil
}

// RiskScoringJob scores every inventory batch of a snapshot date.
type RiskScoringJob struct {
	runner   *risk.Runner
	detector *changedetect.Detector
}

func NewRiskScoringJob(runner *risk.Runner, detector *changedetect.Detector) *RiskScoringJob {
	return &RiskScoringJob{runner: runner, detector: detector}
}

func (j *RiskScoringJob) Name() string { return JobNameRisk }
func (j *RiskScoringJob) Type() string { return JobTypePipeline }

func (j *RiskScoringJob) Execute(ctx context.Context, params JobParams) (*JobResult, error) {
	detection := j.detector.DetectChanges(ctx, params.SnapshotDate, domain.ProcessingRiskScoring)
	if !detection.HasChanges {
		return &JobResult{Success: true, SkippedReason: "no upstream changes"}, nil
	}

	result, err := j.runner.ComputeBatchRisk(ctx, params.SnapshotDate)
	if err != nil {
		return nil, err
	}
	if result.Status != risk.StatusCompleted {
		// Missing inputs are a skip, not a failure: retrying will not make
		// features or inventory appear.
		return &JobResult{Success: true, SkippedReason: result.Status}, nil
	}

	if err := j.detector.MarkProcessed(ctx, domain.ProcessingRiskScoring, params.SnapshotDate,
		detection.DataHash, result.BatchesProcessed, detection.ChangeSummary); err != nil {
		return nil, fmt.Errorf("failed to record change tracking: %w", err)
	}

	return &JobResult{
		Success: true,
		Message: fmt.Sprintf("scored %d batches (%d errors)", result.BatchesProcessed, result.Errors),
		Details: map[string]any{
			"batches_processed": result.BatchesProcessed,
			"errors":            result.Errors,
		},
	}, nil
}

// ActionGenerationJob turns scored risks into persisted PROPOSED actions.
type ActionGenerationJob struct {
	engine   *actions.Engine
	detector *changedetect.Detector
}

func NewActionGenerationJob(engine *actions.Engine, detector *changedetect.Detector) *ActionGenerationJob {
	return &ActionGenerationJob{engine: engine, detector: detector}
}

func (j *ActionGenerationJob) Name() string { return JobNameActions }
func (j *ActionGenerationJob) Type() string { return JobTypePipeline }

func (j *ActionGenerationJob) Execute(ctx context.Context, params JobParams) (*JobResult, error) {
	detection := j.detector.DetectChanges(ctx, params.SnapshotDate, domain.ProcessingActionGeneration)
	if !detection.HasChanges {
		return &JobResult{Success: true, SkippedReason: "no upstream changes"}, nil
	}

	var changedBatches []domain.BatchKey
	if params.Incremental {
		var err error
		changedBatches, err = j.detector.ChangedBatchKeys(ctx, params.SnapshotDate)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve changed batches: %w", err)
		}
		if len(changedBatches) == 0 {
			return &JobResult{Success: true, SkippedReason: "no changed batches"}, nil
		}
	}

	recs, err := j.engine.GenerateAllRecommendations(ctx, params.SnapshotDate, params.Incremental, changedBatches)
	if err != nil {
		return nil, err
	}

	ids, err := j.engine.SaveRecommendations(ctx, recs)
	if err != nil {
		return nil, err
	}

	if err := j.detector.MarkProcessed(ctx, domain.ProcessingActionGeneration, params.SnapshotDate,
		detection.DataHash, len(ids), detection.ChangeSummary); err != nil {
		return nil, fmt.Errorf("failed to record change tracking: %w", err)
	}

	return &JobResult{
		Success: true,
		Message: fmt.Sprintf("saved %d recommendations", len(ids)),
		Details: map[string]any{"actions_saved": len(ids)},
	}, nil
}

// NightlyJob runs the three pipeline stages in strict sequence. Each stage
// depends on the previous stage's output being committed, so the composite
// aborts on the first stage that does not succeed.
type NightlyJob struct {
	stages []Job
}

func NewNightlyJob(features *FeatureBuildJob, risks *RiskScoringJob, actions *ActionGenerationJob) *NightlyJob {
	return &NightlyJob{stages: []Job{features, risks, actions}}
}

func (j *NightlyJob) Name() string { return JobNameNightly }
func (j *NightlyJob) Type() string { return JobTypeComposite }

func (j *NightlyJob) Execute(ctx context.Context, params JobParams) (*JobResult, error) {
	details := make(map[string]any, len(j.stages))

	for _, stage := range j.stages {
		result, err := stage.Execute(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}
		if !result.Success {
			return &JobResult{
				Success: false,
				Message: fmt.Sprintf("stage %s failed: %s", stage.Name(), result.Message),
				Details: details,
			}, nil
		}

		if result.SkippedReason != "" {
			details[stage.Name()] = "skipped: " + result.SkippedReason
		} else {
			details[stage.Name()] = result.Message
		}
	}

	return &JobResult{Success: true, Message: "nightly pipeline completed", Details: details}, nil
}
