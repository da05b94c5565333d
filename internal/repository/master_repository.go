// internal/repository/master_repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

// CostRepository exposes the unit-cost master data the pricing resolver
// builds its fallback chain from.
type CostRepository interface {
	// GetStoreSKUCosts returns the specific per-store unit costs.
	GetStoreSKUCosts(ctx context.Context) (map[domain.StoreSKU]float64, error)

	// GetSKUAverageCosts returns the SKU-level average costs used when no
	// store-specific cost exists.
	GetSKUAverageCosts(ctx context.Context) (map[string]float64, error)

	// GetSellingPrices returns the current per-store selling prices.
	GetSellingPrices(ctx context.Context) (map[domain.StoreSKU]float64, error)
}

// MasterRepository reads the SKU and store master data.
type MasterRepository interface {
	GetSKUs(ctx context.Context) (map[string]domain.SKUInfo, error)
	GetStores(ctx context.Context) (map[int64]domain.StoreInfo, error)
}
