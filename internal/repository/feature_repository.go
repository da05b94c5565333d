// internal/repository/feature_repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// FeatureRepository stores the rolling velocity features, one logical row per
// (date, store, sku).
type FeatureRepository interface {
	GetFeatures(ctx context.Context, date time.Time) ([]domain.FeatureRecord, error)

	// GetFeaturesForSKU returns the feature rows of every store carrying the
	// SKU on the given date. Used by the transfer generator to scan candidate
	// destinations.
	GetFeaturesForSKU(ctx context.Context, date time.Time, skuID string) ([]domain.FeatureRecord, error)

	// UpsertFeatures writes all rows transactionally: either every row lands
	// or none do. Implementations batch the inserts to bound memory.
	UpsertFeatures(ctx context.Context, records []domain.FeatureRecord) error
}
