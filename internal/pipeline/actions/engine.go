// internal/pipeline/actions/engine.go
package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/freshrisk/internal/config"
	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/pipeline/pricing"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

// Value-level errors of the approval workflow. The caller must fix the
// request; the scheduler never retries these.
var (
	ErrActionNotFound    = errors.New("action not found")
	ErrInvalidTransition = errors.New("invalid action status transition")
	ErrActionNotApproved = errors.New("action must be approved before an outcome can be recorded")
)

// Engine turns scored batch risks into ranked mitigation recommendations and
// owns the approval workflow of persisted actions.
//
// Unlike the risk scorer, generation is all-or-nothing: any failure aborts
// the stage and propagates to the scheduler for retry.
type Engine struct {
	risks       repository.RiskRepository
	features    repository.FeatureRepository
	actions     repository.ActionRepository
	master      repository.MasterRepository
	costs       repository.CostRepository
	cfg         config.ActionConfig
	defaultCost float64
}

func NewEngine(
	risks repository.RiskRepository,
	features repository.FeatureRepository,
	actions repository.ActionRepository,
	master repository.MasterRepository,
	costs repository.CostRepository,
	cfg config.ActionConfig,
	defaultCost float64,
) *Engine {
	return &Engine{
		risks:       risks,
		features:    features,
		actions:     actions,
		master:      master,
		costs:       costs,
		cfg:         cfg,
		defaultCost: defaultCost,
	}
}

// GenerateAllRecommendations runs the three generators over the candidate
// batches of a snapshot date and returns the merged list ordered by expected
// savings descending, feasibility breaking ties.
//
// Incremental mode restricts candidates to changedBatches; an empty changed
// set yields no recommendations without touching storage.
func (e *Engine) GenerateAllRecommendations(
	ctx context.Context,
	snapshotDate time.Time,
	incremental bool,
	changedBatches []domain.BatchKey,
) ([]Recommendation, error) {
	if incremental && len(changedBatches) == 0 {
		return nil, nil
	}

	candidates, err := e.loadCandidates(ctx, snapshotDate, incremental, changedBatches)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Info().Time("snapshot_date", snapshotDate).Msg("action generation: no candidate batches")
		return nil, nil
	}

	features, err := e.features.GetFeatures(ctx, snapshotDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}
	velocity := make(map[domain.StoreSKU]domain.FeatureRecord, len(features))
	for _, f := range features {
		velocity[domain.StoreSKU{StoreID: f.StoreID, SKUID: f.SKUID}] = f
	}

	skus, err := e.master.GetSKUs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sku master data: %w", err)
	}
	stores, err := e.master.GetStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load store master data: %w", err)
	}

	resolver, err := pricing.NewResolver(ctx, e.costs, e.defaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost data: %w", err)
	}

	recs := e.generateTransfers(candidates, velocity, stores, resolver)
	recs = append(recs, e.generateMarkdowns(candidates, velocity, resolver)...)
	recs = append(recs, e.generateLiquidations(candidates, skus, resolver)...)

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].ExpectedSavings != recs[j].ExpectedSavings {
			return recs[i].ExpectedSavings > recs[j].ExpectedSavings
		}
		return recs[i].FeasibilityScore > recs[j].FeasibilityScore
	})

	log.Info().
		Time("snapshot_date", snapshotDate).
		Int("candidates", len(candidates)).
		Int("recommendations", len(recs)).
		Msg("action generation completed")

	return recs, nil
}

func (e *Engine) loadCandidates(
	ctx context.Context,
	snapshotDate time.Time,
	incremental bool,
	changedBatches []domain.BatchKey,
) ([]domain.BatchRisk, error) {
	if incremental {
		risks, err := e.risks.GetBatchRisksByKeys(ctx, snapshotDate, changedBatches)
		if err != nil {
			return nil, fmt.Errorf("failed to load changed batch risks: %w", err)
		}
		return risks, nil
	}

	// The lowest generator gate bounds the candidate scan; each generator
	// filters further.
	risks, err := e.risks.GetHighRiskBatches(ctx, snapshotDate, e.candidateMinScore())
	if err != nil {
		return nil, fmt.Errorf("failed to load high-risk batches: %w", err)
	}
	return risks, nil
}

// candidateMinScore returns the lowest of the three generator thresholds. The
// gates are independently configurable, so none of them can be assumed to be
// the floor.
func (e *Engine) candidateMinScore() float64 {
	min := e.cfg.TransferMinScore
	if e.cfg.MarkdownMinScore < min {
		min = e.cfg.MarkdownMinScore
	}
	if e.cfg.LiquidationMinScore < min {
		min = e.cfg.LiquidationMinScore
	}
	return min
}

// SaveRecommendations persists recommendations as PROPOSED actions and
// returns the assigned action IDs in input order.
func (e *Engine) SaveRecommendations(ctx context.Context, recs []Recommendation) ([]int64, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	actions := make([]*domain.Action, len(recs))
	for i, rec := range recs {
		actions[i] = rec.ToAction()
	}

	ids, err := e.actions.InsertActions(ctx, actions)
	if err != nil {
		return nil, fmt.Errorf("failed to save recommendations: %w", err)
	}
	return ids, nil
}

// ApproveAction moves a PROPOSED action to APPROVED.
func (e *Engine) ApproveAction(ctx context.Context, id int64) error {
	return e.transition(ctx, id, domain.ActionApproved)
}

// RejectAction moves a PROPOSED action to REJECTED.
func (e *Engine) RejectAction(ctx context.Context, id int64) error {
	return e.transition(ctx, id, domain.ActionRejected)
}

// MarkActionDone moves an APPROVED action to DONE.
func (e *Engine) MarkActionDone(ctx context.Context, id int64) error {
	return e.transition(ctx, id, domain.ActionDone)
}

func (e *Engine) transition(ctx context.Context, id int64, to domain.ActionStatus) error {
	action, err := e.actions.GetAction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get action %d: %w", id, err)
	}
	if action == nil {
		return fmt.Errorf("action %d: %w", id, ErrActionNotFound)
	}
	if !action.Status.CanTransition(to) {
		return fmt.Errorf("action %d: %s -> %s: %w", id, action.Status, to, ErrInvalidTransition)
	}

	return e.actions.UpdateActionStatus(ctx, id, to)
}

// RecordOutcome stores the measured result of an action. The action must be
// APPROVED or DONE; re-recording overwrites the previous outcome.
func (e *Engine) RecordOutcome(ctx context.Context, outcome *domain.ActionOutcome) error {
	action, err := e.actions.GetAction(ctx, outcome.ActionID)
	if err != nil {
		return fmt.Errorf("failed to get action %d: %w", outcome.ActionID, err)
	}
	if action == nil {
		return fmt.Errorf("action %d: %w", outcome.ActionID, ErrActionNotFound)
	}
	if action.Status != domain.ActionApproved && action.Status != domain.ActionDone {
		return fmt.Errorf("action %d has status %s: %w", outcome.ActionID, action.Status, ErrActionNotApproved)
	}

	if outcome.MeasuredAt.IsZero() {
		outcome.MeasuredAt = time.Now().UTC()
	}

	return e.actions.UpsertOutcome(ctx, outcome)
}
