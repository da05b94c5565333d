// internal/pipeline/risk/runner.go
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/pipeline/pricing"
	"github.com/andresuchdata/freshrisk/internal/repository"
	"github.com/rs/zerolog/log"
)

// Result statuses reported by ComputeBatchRisk.
const (
	StatusCompleted   = "completed"
	StatusNoFeatures  = "no_features"
	StatusNoInventory = "no_inventory"
)

// Result summarizes one risk scoring run.
type Result struct {
	Status           string `json:"status"`
	BatchesProcessed int    `json:"batches_processed"`
	Errors           int    `json:"errors"`
}

// Runner scores every inventory batch of a snapshot date.
//
// Batches are scored independently: a bad batch is counted and skipped, it
// never aborts the snapshot. Only infrastructure failures (loading inputs,
// persisting results) abort the run.
type Runner struct {
	inventory   repository.InventoryRepository
	features    repository.FeatureRepository
	risks       repository.RiskRepository
	costs       repository.CostRepository
	defaultCost float64
}

func NewRunner(
	inventory repository.InventoryRepository,
	features repository.FeatureRepository,
	risks repository.RiskRepository,
	costs repository.CostRepository,
	defaultCost float64,
) *Runner {
	return &Runner{
		inventory:   inventory,
		features:    features,
		risks:       risks,
		costs:       costs,
		defaultCost: defaultCost,
	}
}

// ComputeBatchRisk scores all batches for the snapshot date and upserts the
// results. Returns early with a no-op status when either inputs are absent.
func (r *Runner) ComputeBatchRisk(ctx context.Context, snapshotDate time.Time) (*Result, error) {
	features, err := r.features.GetFeatures(ctx, snapshotDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}
	if len(features) == 0 {
		log.Warn().Time("snapshot_date", snapshotDate).Msg("risk scoring: no feature records for date")
		return &Result{Status: StatusNoFeatures}, nil
	}

	batches, err := r.inventory.GetBatches(ctx, snapshotDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory batches: %w", err)
	}
	if len(batches) == 0 {
		log.Warn().Time("snapshot_date", snapshotDate).Msg("risk scoring: no inventory batches for date")
		return &Result{Status: StatusNoInventory}, nil
	}

	resolver, err := pricing.NewResolver(ctx, r.costs, r.defaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost data: %w", err)
	}

	velocityByKey := make(map[domain.StoreSKU]domain.FeatureRecord, len(features))
	for _, f := range features {
		velocityByKey[domain.StoreSKU{StoreID: f.StoreID, SKUID: f.SKUID}] = f
	}

	result := &Result{Status: StatusCompleted}
	risks := make([]domain.BatchRisk, 0, len(batches))
	for _, batch := range batches {
		scored, err := r.scoreBatch(snapshotDate, batch, velocityByKey, resolver)
		if err != nil {
			result.Errors++
			log.Error().Err(err).
				Int64("store_id", batch.StoreID).
				Str("sku_id", batch.SKUID).
				Str("batch_id", batch.BatchID).
				Msg("risk scoring: batch failed, continuing")
			continue
		}
		risks = append(risks, *scored)
		result.BatchesProcessed++
	}

	if err := r.risks.UpsertBatchRisks(ctx, risks); err != nil {
		return nil, fmt.Errorf("failed to upsert batch risks: %w", err)
	}

	log.Info().
		Time("snapshot_date", snapshotDate).
		Int("processed", result.BatchesProcessed).
		Int("errors", result.Errors).
		Msg("risk scoring completed")

	return result, nil
}

func (r *Runner) scoreBatch(
	snapshotDate time.Time,
	batch domain.InventoryBatch,
	velocityByKey map[domain.StoreSKU]domain.FeatureRecord,
	resolver *pricing.Resolver,
) (*domain.BatchRisk, error) {
	if batch.OnHandQty < 0 {
		return nil, fmt.Errorf("negative on-hand quantity %v", batch.OnHandQty)
	}
	if batch.ExpiryDate.IsZero() {
		return nil, fmt.Errorf("missing expiry date")
	}

	// Batches without a feature row score with zero velocity: everything on
	// hand is at risk.
	v14 := velocityByKey[domain.StoreSKU{StoreID: batch.StoreID, SKUID: batch.SKUID}].V14

	unitCost := resolver.Resolve(batch.StoreID, batch.SKUID)

	score := ScoreBatch(Input{
		OnHandQty:    batch.OnHandQty,
		ExpiryDate:   batch.ExpiryDate,
		SnapshotDate: snapshotDate,
		V14:          v14,
		UnitCost:     unitCost.Cost,
	})

	return &domain.BatchRisk{
		SnapshotDate:          snapshotDate,
		StoreID:               batch.StoreID,
		SKUID:                 batch.SKUID,
		BatchID:               batch.BatchID,
		DaysToExpiry:          score.DaysToExpiry,
		ExpectedSalesToExpiry: score.ExpectedSales,
		AtRiskUnits:           score.AtRiskUnits,
		AtRiskValue:           score.AtRiskValue,
		RiskScore:             score.RiskScore,
		CostSource:            string(unitCost.Source),
	}, nil
}
