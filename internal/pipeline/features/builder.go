// internal/pipeline/features/builder.go
package features

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
	"github.com/rs/zerolog/log"
)

// Result summarizes one feature build call.
type Result struct {
	SnapshotDate   time.Time `json:"snapshot_date"`
	KeysProcessed  int       `json:"keys_processed"`
	RecordsWritten int       `json:"records_written"`
}

// Builder computes the rolling velocity features for a snapshot date.
//
// A build is all-or-nothing: feature rows are written in a single
// transaction, and any failure aborts the call with no rows persisted.
// Retry is the caller's concern.
type Builder struct {
	sales    repository.SalesRepository
	features repository.FeatureRepository
	calc     *VelocityCalculator
}

func NewBuilder(sales repository.SalesRepository, features repository.FeatureRepository) *Builder {
	return &Builder{
		sales:    sales,
		features: features,
		calc:     NewVelocityCalculator(),
	}
}

// Build computes and upserts FeatureRecord rows for the snapshot date.
//
// Full mode (incremental=false) processes every store-SKU with any sales in
// the window. Incremental mode processes only changedKeys; an empty changed
// set writes nothing.
func (b *Builder) Build(ctx context.Context, snapshotDate time.Time, incremental bool, changedKeys []domain.StoreSKU) (*Result, error) {
	snapshotDate = Day(snapshotDate)
	result := &Result{SnapshotDate: snapshotDate}

	if incremental && len(changedKeys) == 0 {
		log.Info().Time("snapshot_date", snapshotDate).Msg("feature build: no changed keys, nothing to do")
		return result, nil
	}

	from := snapshotDate.AddDate(0, 0, -(WindowDays - 1))

	var keys []domain.StoreSKU
	if incremental {
		keys = changedKeys
	}

	sales, err := b.sales.GetSalesWindow(ctx, from, snapshotDate, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales window: %w", err)
	}

	// Group the window into per-key daily series.
	grouped := make(map[domain.StoreSKU]map[time.Time]float64)
	for _, rec := range sales {
		key := domain.StoreSKU{StoreID: rec.StoreID, SKUID: rec.SKUID}
		byDay := grouped[key]
		if byDay == nil {
			byDay = make(map[time.Time]float64)
			grouped[key] = byDay
		}
		byDay[Day(rec.Date)] += rec.UnitsSold
	}

	records := make([]domain.FeatureRecord, 0, len(grouped))
	for key, byDay := range grouped {
		v := b.calc.Calculate(snapshotDate, byDay)
		records = append(records, domain.FeatureRecord{
			Date:       snapshotDate,
			StoreID:    key.StoreID,
			SKUID:      key.SKUID,
			V7:         v.V7,
			V14:        v.V14,
			V30:        v.V30,
			Volatility: v.Volatility,
		})
	}

	if err := b.features.UpsertFeatures(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to upsert feature records: %w", err)
	}

	result.KeysProcessed = len(grouped)
	result.RecordsWritten = len(records)

	log.Info().
		Time("snapshot_date", snapshotDate).
		Bool("incremental", incremental).
		Int("keys", result.KeysProcessed).
		Int("records", result.RecordsWritten).
		Msg("feature build completed")

	return result, nil
}
