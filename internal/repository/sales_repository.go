// internal/repository/sales_repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// SalesRepository reads the append-only daily sales facts.
type SalesRepository interface {
	// GetSalesWindow returns all sales rows with from <= date <= to. When keys
	// is non-empty the result is restricted to those store-SKU pairs.
	GetSalesWindow(ctx context.Context, from, to time.Time, keys []domain.StoreSKU) ([]domain.SalesRecord, error)
}

// InventoryRepository reads the per-snapshot inventory batches.
type InventoryRepository interface {
	GetBatches(ctx context.Context, snapshotDate time.Time) ([]domain.InventoryBatch, error)
}
