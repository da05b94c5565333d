// internal/pipeline/pricing/resolver.go
package pricing

import (
	"context"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
)

// Resolver answers unit-cost lookups through the fallback chain:
// store-specific cost, then SKU-average cost, then the configured default.
// Every answer is tagged with its source so the substitution is never silent.
type Resolver struct {
	storeSKU    map[domain.StoreSKU]float64
	skuAverage  map[string]float64
	prices      map[domain.StoreSKU]float64
	defaultCost float64
}

// defaultMarkup prices a SKU with no observed selling price relative to its
// resolved cost.
const defaultMarkup = 1.5

// NewResolver loads the cost master data once so per-batch lookups stay in
// memory during a pipeline run.
func NewResolver(ctx context.Context, repo repository.CostRepository, defaultCost float64) (*Resolver, error) {
	storeSKU, err := repo.GetStoreSKUCosts(ctx)
	if err != nil {
		return nil, err
	}

	skuAverage, err := repo.GetSKUAverageCosts(ctx)
	if err != nil {
		return nil, err
	}

	prices, err := repo.GetSellingPrices(ctx)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		storeSKU:    storeSKU,
		skuAverage:  skuAverage,
		prices:      prices,
		defaultCost: defaultCost,
	}, nil
}

// NewStaticResolver builds a resolver from in-memory maps.
func NewStaticResolver(storeSKU map[domain.StoreSKU]float64, skuAverage map[string]float64, defaultCost float64) *Resolver {
	if storeSKU == nil {
		storeSKU = make(map[domain.StoreSKU]float64)
	}
	if skuAverage == nil {
		skuAverage = make(map[string]float64)
	}
	return &Resolver{
		storeSKU:    storeSKU,
		skuAverage:  skuAverage,
		prices:      make(map[domain.StoreSKU]float64),
		defaultCost: defaultCost,
	}
}

// WithPrices sets the selling-price map on a static resolver.
func (r *Resolver) WithPrices(prices map[domain.StoreSKU]float64) *Resolver {
	if prices != nil {
		r.prices = prices
	}
	return r
}

// Resolve returns the unit cost for a store-SKU pair with its source tag.
func (r *Resolver) Resolve(storeID int64, skuID string) domain.UnitCost {
	if cost, ok := r.storeSKU[domain.StoreSKU{StoreID: storeID, SKUID: skuID}]; ok {
		return domain.UnitCost{Cost: cost, Source: domain.CostSourceStoreSKU}
	}
	if cost, ok := r.skuAverage[skuID]; ok {
		return domain.UnitCost{Cost: cost, Source: domain.CostSourceSKUAverage}
	}
	return domain.UnitCost{Cost: r.defaultCost, Source: domain.CostSourceDefault}
}

// ResolvePrice returns the selling price for a store-SKU pair, falling back
// to a standard markup over the resolved cost when no price was observed.
func (r *Resolver) ResolvePrice(storeID int64, skuID string) float64 {
	if price, ok := r.prices[domain.StoreSKU{StoreID: storeID, SKUID: skuID}]; ok {
		return price
	}
	return r.Resolve(storeID, skuID).Cost * defaultMarkup
}
