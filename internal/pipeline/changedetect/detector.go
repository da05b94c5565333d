// internal/pipeline/changedetect/detector.go
package changedetect

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

const (
	// salesWindowDays is the lookback the feature stage hashes over.
	salesWindowDays = 30

	// stalenessWindow forces a refresh even on an unchanged hash. A stage
	// never goes longer than this without reprocessing.
	stalenessWindow = 24 * time.Hour
)

// Result is the answer to "does this stage need to run for this date".
type Result struct {
	HasChanges    bool   `json:"has_changes"`
	DataHash      string `json:"data_hash"`
	ChangeSummary string `json:"change_summary"`
}

// Detector decides whether a pipeline stage can be skipped for a snapshot
// date by hashing the stage's upstream data and comparing it against the
// hash recorded after the last successful run.
//
// Any internal failure reports has_changes=true: the detector fails open to
// reprocessing, never to silently skipping work.
type Detector struct {
	sales     repository.SalesRepository
	inventory repository.InventoryRepository
	features  repository.FeatureRepository
	risks     repository.RiskRepository
	tracking  repository.ChangeTrackingRepository

	changedScoreDelta    float64
	alwaysReprocessScore float64
}

func NewDetector(
	sales repository.SalesRepository,
	inventory repository.InventoryRepository,
	features repository.FeatureRepository,
	risks repository.RiskRepository,
	tracking repository.ChangeTrackingRepository,
	changedScoreDelta float64,
	alwaysReprocessScore float64,
) *Detector {
	return &Detector{
		sales:                sales,
		inventory:            inventory,
		features:             features,
		risks:                risks,
		tracking:             tracking,
		changedScoreDelta:    changedScoreDelta,
		alwaysReprocessScore: alwaysReprocessScore,
	}
}

// DetectChanges hashes the upstream data of the given stage and compares it
// to the most recent tracking record at or before the snapshot date.
func (d *Detector) DetectChanges(ctx context.Context, snapshotDate time.Time, processingType domain.ProcessingType) *Result {
	hash, err := d.computeHash(ctx, snapshotDate, processingType)
	if err != nil {
		log.Warn().Err(err).
			Str("processing_type", string(processingType)).
			Time("snapshot_date", snapshotDate).
			Msg("change detection failed, assuming changed")
		return &Result{HasChanges: true, ChangeSummary: fmt.Sprintf("detection error, reprocessing: %v", err)}
	}

	prior, err := d.tracking.GetLatest(ctx, processingType, snapshotDate)
	if err != nil {
		log.Warn().Err(err).
			Str("processing_type", string(processingType)).
			Time("snapshot_date", snapshotDate).
			Msg("change tracking lookup failed, assuming changed")
		return &Result{HasChanges: true, DataHash: hash, ChangeSummary: fmt.Sprintf("tracking lookup error, reprocessing: %v", err)}
	}

	if prior == nil {
		return &Result{HasChanges: true, DataHash: hash, ChangeSummary: "no prior run"}
	}

	if age := time.Since(prior.LastProcessedAt); age >= stalenessWindow {
		return &Result{
			HasChanges:    true,
			DataHash:      hash,
			ChangeSummary: fmt.Sprintf("stale: last processed %s ago", age.Round(time.Minute)),
		}
	}

	if prior.DataHash != hash {
		return &Result{HasChanges: true, DataHash: hash, ChangeSummary: "upstream data changed"}
	}

	return &Result{HasChanges: false, DataHash: hash, ChangeSummary: "unchanged"}
}

// MarkProcessed records that a stage successfully processed a snapshot date,
// so the next detection can compare against it.
func (d *Detector) MarkProcessed(
	ctx context.Context,
	processingType domain.ProcessingType,
	snapshotDate time.Time,
	dataHash string,
	recordsProcessed int,
	changeSummary string,
) error {
	return d.tracking.Upsert(ctx, &domain.ChangeTrackingRecord{
		ProcessingType:   processingType,
		SnapshotDate:     snapshotDate,
		DataHash:         dataHash,
		LastProcessedAt:  time.Now().UTC(),
		RecordsProcessed: recordsProcessed,
		ChangeSummary:    changeSummary,
	})
}

func (d *Detector) computeHash(ctx context.Context, snapshotDate time.Time, processingType domain.ProcessingType) (string, error) {
	switch processingType {
	case domain.ProcessingFeatures:
		from := snapshotDate.AddDate(0, 0, -(salesWindowDays - 1))
		sales, err := d.sales.GetSalesWindow(ctx, from, snapshotDate, nil)
		if err != nil {
			return "", fmt.Errorf("failed to load sales window: %w", err)
		}
		parts := make([]string, 0, len(sales))
		for _, s := range sales {
			parts = append(parts, fmt.Sprintf("%s|%d|%s|%g|%g",
				s.Date.Format("2006-01-02"), s.StoreID, s.SKUID, s.UnitsSold, s.SellingPrice))
		}
		return hashParts(parts), nil

	case domain.ProcessingRiskScoring:
		batches, err := d.inventory.GetBatches(ctx, snapshotDate)
		if err != nil {
			return "", fmt.Errorf("failed to load inventory batches: %w", err)
		}
		features, err := d.features.GetFeatures(ctx, snapshotDate)
		if err != nil {
			return "", fmt.Errorf("failed to load features: %w", err)
		}
		parts := make([]string, 0, len(batches)+len(features))
		for _, b := range batches {
			parts = append(parts, fmt.Sprintf("batch|%d|%s|%s|%s|%g",
				b.StoreID, b.SKUID, b.BatchID, b.ExpiryDate.Format("2006-01-02"), b.OnHandQty))
		}
		for _, f := range features {
			parts = append(parts, fmt.Sprintf("feature|%d|%s|%g|%g|%g|%g",
				f.StoreID, f.SKUID, f.V7, f.V14, f.V30, f.Volatility))
		}
		return hashParts(parts), nil

	case domain.ProcessingActionGeneration:
		risks, err := d.risks.GetBatchRisks(ctx, snapshotDate)
		if err != nil {
			return "", fmt.Errorf("failed to load batch risks: %w", err)
		}
		parts := make([]string, 0, len(risks))
		for _, r := range risks {
			parts = append(parts, fmt.Sprintf("%d|%s|%s|%d|%g|%g",
				r.StoreID, r.SKUID, r.BatchID, r.DaysToExpiry, r.AtRiskUnits, r.RiskScore))
		}
		return hashParts(parts), nil

	default:
		return "", fmt.Errorf("unknown processing type %q", processingType)
	}
}

// hashParts hashes a set of field tuples independent of their original row
// order: the parts are sorted before hashing.
func hashParts(parts []string) string {
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

// ChangedFeatureKeys returns the store-SKU pairs whose feature windows moved
// since the previous snapshot: any pair with sales on the snapshot date, plus
// any pair behind a changed batch.
func (d *Detector) ChangedFeatureKeys(ctx context.Context, snapshotDate time.Time) ([]domain.StoreSKU, error) {
	sales, err := d.sales.GetSalesWindow(ctx, snapshotDate, snapshotDate, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales for date: %w", err)
	}

	seen := make(map[domain.StoreSKU]struct{})
	keys := make([]domain.StoreSKU, 0, len(sales))
	add := func(k domain.StoreSKU) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, s := range sales {
		add(domain.StoreSKU{StoreID: s.StoreID, SKUID: s.SKUID})
	}

	changedBatches, err := d.ChangedBatchKeys(ctx, snapshotDate)
	if err != nil {
		return nil, err
	}
	for _, b := range changedBatches {
		add(domain.StoreSKU{StoreID: b.StoreID, SKUID: b.SKUID})
	}

	return keys, nil
}

// ChangedBatchKeys returns the batches that need rescoring relative to the
// previous snapshot: new batches, batches whose risk score moved at least
// changedScoreDelta, and batches already at or above alwaysReprocessScore.
func (d *Detector) ChangedBatchKeys(ctx context.Context, snapshotDate time.Time) ([]domain.BatchKey, error) {
	current, err := d.risks.GetBatchRisks(ctx, snapshotDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load current batch risks: %w", err)
	}

	previous, err := d.risks.GetBatchRisks(ctx, snapshotDate.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to load previous batch risks: %w", err)
	}
	prevByKey := make(map[domain.BatchKey]domain.BatchRisk, len(previous))
	for _, r := range previous {
		prevByKey[domain.BatchKey{StoreID: r.StoreID, SKUID: r.SKUID, BatchID: r.BatchID}] = r
	}

	var keys []domain.BatchKey
	for _, r := range current {
		key := domain.BatchKey{StoreID: r.StoreID, SKUID: r.SKUID, BatchID: r.BatchID}

		prev, existed := prevByKey[key]
		switch {
		case !existed:
			keys = append(keys, key)
		case abs(r.RiskScore-prev.RiskScore) >= d.changedScoreDelta:
			keys = append(keys, key)
		case r.RiskScore >= d.alwaysReprocessScore:
			// High scorers are always rescanned to catch drift the delta
			// threshold would miss.
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
