// internal/repository/postgres/risk_repository.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
	"github.com/lib/pq"
)

const riskUpsertBatchSize = 1000

type riskRepository struct {
	db *DB
}

func NewRiskRepository(db *DB) repository.RiskRepository {
	return &riskRepository{db: db}
}

const batchRiskColumns = `
	snapshot_date, store_id, sku_id, batch_id, days_to_expiry,
	expected_sales_to_expiry, at_risk_units, at_risk_value, risk_score, cost_source
`

func (r *riskRepository) GetBatchRisks(ctx context.Context, snapshotDate time.Time) ([]domain.BatchRisk, error) {
	query := `
		SELECT ` + batchRiskColumns + `
		FROM batch_risks
		WHERE snapshot_date = $1
		ORDER BY store_id, sku_id, batch_id
	`

	var risks []domain.BatchRisk
	if err := r.db.SelectContext(ctx, &risks, query, snapshotDate); err != nil {
		return nil, fmt.Errorf("error getting batch risks: %w", err)
	}

	return risks, nil
}

func (r *riskRepository) GetHighRiskBatches(ctx context.Context, snapshotDate time.Time, minScore float64) ([]domain.BatchRisk, error) {
	query := `
		SELECT ` + batchRiskColumns + `
		FROM batch_risks
		WHERE snapshot_date = $1 AND risk_score >= $2
		ORDER BY risk_score DESC, at_risk_value DESC
	`

	var risks []domain.BatchRisk
	if err := r.db.SelectContext(ctx, &risks, query, snapshotDate, minScore); err != nil {
		return nil, fmt.Errorf("error getting high risk batches: %w", err)
	}

	return risks, nil
}

func (r *riskRepository) GetBatchRisksByKeys(ctx context.Context, snapshotDate time.Time, keys []domain.BatchKey) ([]domain.BatchRisk, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	storeIDs := make([]int64, len(keys))
	skuIDs := make([]string, len(keys))
	batchIDs := make([]string, len(keys))
	for i, k := range keys {
		storeIDs[i] = k.StoreID
		skuIDs[i] = k.SKUID
		batchIDs[i] = k.BatchID
	}

	query := `
		SELECT ` + batchRiskColumns + `
		FROM batch_risks
		WHERE snapshot_date = $1
		  AND (store_id, sku_id, batch_id) IN (
			SELECT UNNEST($2::bigint[]), UNNEST($3::text[]), UNNEST($4::text[])
		  )
		ORDER BY risk_score DESC
	`

	var risks []domain.BatchRisk
	if err := r.db.SelectContext(ctx, &risks, query, snapshotDate,
		pq.Array(storeIDs), pq.Array(skuIDs), pq.Array(batchIDs)); err != nil {
		return nil, fmt.Errorf("error getting batch risks by keys: %w", err)
	}

	return risks, nil
}

func (r *riskRepository) UpsertBatchRisks(ctx context.Context, risks []domain.BatchRisk) error {
	if len(risks) == 0 {
		return nil
	}

	query := `
		INSERT INTO batch_risks (` + batchRiskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (snapshot_date, store_id, sku_id, batch_id) DO UPDATE SET
			days_to_expiry = EXCLUDED.days_to_expiry,
			expected_sales_to_expiry = EXCLUDED.expected_sales_to_expiry,
			at_risk_units = EXCLUDED.at_risk_units,
			at_risk_value = EXCLUDED.at_risk_value,
			risk_score = EXCLUDED.risk_score,
			cost_source = EXCLUDED.cost_source
	`

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(risks); start += riskUpsertBatchSize {
			end := start + riskUpsertBatchSize
			if end > len(risks) {
				end = len(risks)
			}
			for _, risk := range risks[start:end] {
				if _, err := tx.ExecContext(ctx, query,
					risk.SnapshotDate, risk.StoreID, risk.SKUID, risk.BatchID,
					risk.DaysToExpiry, risk.ExpectedSalesToExpiry,
					risk.AtRiskUnits, risk.AtRiskValue, risk.RiskScore, risk.CostSource,
				); err != nil {
					return fmt.Errorf("failed to upsert batch risk: %w", err)
				}
			}
		}
		return nil
	})
}
