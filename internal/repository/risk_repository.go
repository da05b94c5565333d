// internal/repository/risk_repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// RiskRepository stores the scored batch risks, one row per batch per
// snapshot date.
type RiskRepository interface {
	GetBatchRisks(ctx context.Context, snapshotDate time.Time) ([]domain.BatchRisk, error)

	// GetHighRiskBatches returns the batches at or above minScore for the
	// snapshot date, ordered by risk_score descending.
	GetHighRiskBatches(ctx context.Context, snapshotDate time.Time, minScore float64) ([]domain.BatchRisk, error)

	// GetBatchRisksByKeys returns the risk rows for the given batch keys only.
	GetBatchRisksByKeys(ctx context.Context, snapshotDate time.Time, keys []domain.BatchKey) ([]domain.BatchRisk, error)

	UpsertBatchRisks(ctx context.Context, risks []domain.BatchRisk) error
}
