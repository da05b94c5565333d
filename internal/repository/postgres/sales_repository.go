// internal/repository/postgres/sales_repository.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type salesRepository struct {
	db *sqlx.DB
}

func NewSalesRepository(db *sqlx.DB) repository.SalesRepository {
	return &salesRepository{db: db}
}

func (r *salesRepository) GetSalesWindow(ctx context.Context, from, to time.Time, keys []domain.StoreSKU) ([]domain.SalesRecord, error) {
	query := `
		SELECT date, store_id, sku_id, units_sold, selling_price
		FROM sales_records
		WHERE date >= $1 AND date <= $2
	`
	args := []interface{}{from, to}

	if len(keys) > 0 {
		// Composite-key membership via parallel arrays: a row matches when its
		// (store_id, sku_id) pair appears at the same position in both arrays.
		storeIDs := make([]int64, len(keys))
		skuIDs := make([]string, len(keys))
		for i, k := range keys {
			storeIDs[i] = k.StoreID
			skuIDs[i] = k.SKUID
		}
		query += ` AND (store_id, sku_id) IN (
			SELECT UNNEST($3::bigint[]), UNNEST($4::text[])
		)`
		args = append(args, pq.Array(storeIDs), pq.Array(skuIDs))
	}

	query += ` ORDER BY store_id, sku_id, date`

	var records []domain.SalesRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("error getting sales window: %w", err)
	}

	return records, nil
}

type inventoryRepository struct {
	db *sqlx.DB
}

func NewInventoryRepository(db *sqlx.DB) repository.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) GetBatches(ctx context.Context, snapshotDate time.Time) ([]domain.InventoryBatch, error) {
	query := `
		SELECT snapshot_date, store_id, sku_id, batch_id, expiry_date, on_hand_qty
		FROM inventory_batches
		WHERE snapshot_date = $1
		ORDER BY store_id, sku_id, batch_id
	`

	var batches []domain.InventoryBatch
	if err := r.db.SelectContext(ctx, &batches, query, snapshotDate); err != nil {
		return nil, fmt.Errorf("error getting inventory batches: %w", err)
	}

	return batches, nil
}
