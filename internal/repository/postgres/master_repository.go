// internal/repository/postgres/master_repository.go
package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
	"github.com/jmoiron/sqlx"
)

type costRepository struct {
	db *sqlx.DB
}

func NewCostRepository(db *sqlx.DB) repository.CostRepository {
	return &costRepository{db: db}
}

func (r *costRepository) GetStoreSKUCosts(ctx context.Context) (map[domain.StoreSKU]float64, error) {
	query := `
		SELECT store_id, sku_id, unit_cost
		FROM unit_costs
	`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying unit costs: %w", err)
	}
	defer rows.Close()

	costs := make(map[domain.StoreSKU]float64)
	for rows.Next() {
		var storeID int64
		var skuID string
		var cost float64
		if err := rows.Scan(&storeID, &skuID, &cost); err != nil {
			return nil, fmt.Errorf("error scanning unit cost: %w", err)
		}
		costs[domain.StoreSKU{StoreID: storeID, SKUID: skuID}] = cost
	}

	return costs, rows.Err()
}

func (r *costRepository) GetSKUAverageCosts(ctx context.Context) (map[string]float64, error) {
	query := `
		SELECT sku_id, AVG(unit_cost) AS avg_cost
		FROM unit_costs
		GROUP BY sku_id
	`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying sku average costs: %w", err)
	}
	defer rows.Close()

	costs := make(map[string]float64)
	for rows.Next() {
		var skuID string
		var cost float64
		if err := rows.Scan(&skuID, &cost); err != nil {
			return nil, fmt.Errorf("error scanning sku average cost: %w", err)
		}
		costs[skuID] = cost
	}

	return costs, rows.Err()
}

func (r *costRepository) GetSellingPrices(ctx context.Context) (map[domain.StoreSKU]float64, error) {
	// Latest observed selling price per store-SKU from the sales facts.
	query := `
		SELECT DISTINCT ON (store_id, sku_id) store_id, sku_id, selling_price
		FROM sales_records
		ORDER BY store_id, sku_id, date DESC
	`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying selling prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[domain.StoreSKU]float64)
	for rows.Next() {
		var storeID int64
		var skuID string
		var price float64
		if err := rows.Scan(&storeID, &skuID, &price); err != nil {
			return nil, fmt.Errorf("error scanning selling price: %w", err)
		}
		prices[domain.StoreSKU{StoreID: storeID, SKUID: skuID}] = price
	}

	return prices, rows.Err()
}

type masterRepository struct {
	db *sqlx.DB
}

func NewMasterRepository(db *sqlx.DB) repository.MasterRepository {
	return &masterRepository{db: db}
}

func (r *masterRepository) GetSKUs(ctx context.Context) (map[string]domain.SKUInfo, error) {
	query := `
		SELECT sku_id, category, region
		FROM skus
	`

	var infos []domain.SKUInfo
	if err := r.db.SelectContext(ctx, &infos, query); err != nil {
		return nil, fmt.Errorf("error getting skus: %w", err)
	}

	out := make(map[string]domain.SKUInfo, len(infos))
	for _, info := range infos {
		out[info.SKUID] = info
	}

	return out, nil
}

func (r *masterRepository) GetStores(ctx context.Context) (map[int64]domain.StoreInfo, error) {
	query := `
		SELECT id, name, region
		FROM stores
	`

	var stores []domain.StoreInfo
	if err := r.db.SelectContext(ctx, &stores, query); err != nil {
		return nil, fmt.Errorf("error getting stores: %w", err)
	}

	out := make(map[int64]domain.StoreInfo, len(stores))
	for _, s := range stores {
		out[s.ID] = s
	}

	return out, nil
}
