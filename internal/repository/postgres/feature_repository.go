// internal/repository/postgres/feature_repository.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

// featureUpsertBatchSize bounds memory while writing a snapshot's features.
const featureUpsertBatchSize = 1000

type featureRepository struct {
	db *DB
}

func NewFeatureRepository(db *DB) repository.FeatureRepository {
	return &featureRepository{db: db}
}

func (r *featureRepository) GetFeatures(ctx context.Context, date time.Time) ([]domain.FeatureRecord, error) {
	query := `
		SELECT date, store_id, sku_id, v7, v14, v30, volatility
		FROM feature_records
		WHERE date = $1
		ORDER BY store_id, sku_id
	`

	var records []domain.FeatureRecord
	if err := r.db.SelectContext(ctx, &records, query, date); err != nil {
		return nil, fmt.Errorf("error getting feature records: %w", err)
	}

	return records, nil
}

func (r *featureRepository) GetFeaturesForSKU(ctx context.Context, date time.Time, skuID string) ([]domain.FeatureRecord, error) {
	query := `
		SELECT date, store_id, sku_id, v7, v14, v30, volatility
		FROM feature_records
		WHERE date = $1 AND sku_id = $2
		ORDER BY store_id
	`

	var records []domain.FeatureRecord
	if err := r.db.SelectContext(ctx, &records, query, date, skuID); err != nil {
		return nil, fmt.Errorf("error getting feature records for sku %s: %w", skuID, err)
	}

	return records, nil
}

// UpsertFeatures writes every record inside one transaction so a failed
// snapshot build leaves no partial rows behind.
func (r *featureRepository) UpsertFeatures(ctx context.Context, records []domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO feature_records (date, store_id, sku_id, v7, v14, v30, volatility)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date, store_id, sku_id) DO UPDATE SET
			v7 = EXCLUDED.v7,
			v14 = EXCLUDED.v14,
			v30 = EXCLUDED.v30,
			volatility = EXCLUDED.volatility
	`

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(records); start += featureUpsertBatchSize {
			end := start + featureUpsertBatchSize
			if end > len(records) {
				end = len(records)
			}
			for _, rec := range records[start:end] {
				if _, err := tx.ExecContext(ctx, query,
					rec.Date, rec.StoreID, rec.SKUID,
					rec.V7, rec.V14, rec.V30, rec.Volatility,
				); err != nil {
					return fmt.Errorf("failed to upsert feature record: %w", err)
				}
			}
		}
		return nil
	})
}
