// internal/domain/models.go
package domain

import "time"

// SalesRecord is one day of sales for a store-SKU. Append-only daily facts.
type SalesRecord struct {
	Date         time.Time `json:"date" db:"date"`
	StoreID      int64     `json:"store_id" db:"store_id"`
	SKUID        string    `json:"sku_id" db:"sku_id"`
	UnitsSold    float64   `json:"units_sold" db:"units_sold"`
	SellingPrice float64   `json:"selling_price" db:"selling_price"`
}

// InventoryBatch is a physical lot of a SKU at a store with a single expiry
// date, one row per batch per snapshot date.
type InventoryBatch struct {
	SnapshotDate time.Time `json:"snapshot_date" db:"snapshot_date"`
	StoreID      int64     `json:"store_id" db:"store_id"`
	SKUID        string    `json:"sku_id" db:"sku_id"`
	BatchID      string    `json:"batch_id" db:"batch_id"`
	ExpiryDate   time.Time `json:"expiry_date" db:"expiry_date"`
	OnHandQty    float64   `json:"on_hand_qty" db:"on_hand_qty"`
}

// FeatureRecord holds the rolling sales-velocity features for a store-SKU as
// of a snapshot date. Recomputed per snapshot date and replaced on rebuild.
type FeatureRecord struct {
	Date       time.Time `json:"date" db:"date"`
	StoreID    int64     `json:"store_id" db:"store_id"`
	SKUID      string    `json:"sku_id" db:"sku_id"`
	V7         float64   `json:"v7" db:"v7"`
	V14        float64   `json:"v14" db:"v14"`
	V30        float64   `json:"v30" db:"v30"`
	Volatility float64   `json:"volatility" db:"volatility"`
}

// BatchRisk is the scored expiry risk for one inventory batch at a snapshot
// date.
type BatchRisk struct {
	SnapshotDate          time.Time `json:"snapshot_date" db:"snapshot_date"`
	StoreID               int64     `json:"store_id" db:"store_id"`
	SKUID                 string    `json:"sku_id" db:"sku_id"`
	BatchID               string    `json:"batch_id" db:"batch_id"`
	DaysToExpiry          int       `json:"days_to_expiry" db:"days_to_expiry"`
	ExpectedSalesToExpiry float64   `json:"expected_sales_to_expiry" db:"expected_sales_to_expiry"`
	AtRiskUnits           float64   `json:"at_risk_units" db:"at_risk_units"`
	AtRiskValue           float64   `json:"at_risk_value" db:"at_risk_value"`
	RiskScore             float64   `json:"risk_score" db:"risk_score"`
	CostSource            string    `json:"cost_source" db:"cost_source"`
}

// Action is a mitigation recommendation persisted by the action engine.
// Created in PROPOSED state; transitions happen through the approval workflow.
type Action struct {
	ID              int64        `json:"id" db:"id"`
	ActionType      ActionType   `json:"action_type" db:"action_type"`
	FromStore       int64        `json:"from_store" db:"from_store"`
	ToStore         *int64       `json:"to_store,omitempty" db:"to_store"`
	SKUID           string       `json:"sku_id" db:"sku_id"`
	BatchID         string       `json:"batch_id" db:"batch_id"`
	Qty             float64      `json:"qty" db:"qty"`
	DiscountPct     *float64     `json:"discount_pct,omitempty" db:"discount_pct"`
	ExpectedSavings float64      `json:"expected_savings" db:"expected_savings"`
	Status          ActionStatus `json:"status" db:"status"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// ActionOutcome records what a completed action actually recovered. One per
// DONE action; re-recording overwrites (last write wins).
type ActionOutcome struct {
	ActionID       int64     `json:"action_id" db:"action_id"`
	RecoveredValue float64   `json:"recovered_value" db:"recovered_value"`
	ClearedUnits   float64   `json:"cleared_units" db:"cleared_units"`
	MeasuredAt     time.Time `json:"measured_at" db:"measured_at"`
	Notes          string    `json:"notes" db:"notes"`
}

// ChangeTrackingRecord stores the content hash a processing stage last saw for
// a snapshot date.
type ChangeTrackingRecord struct {
	ProcessingType   ProcessingType `json:"processing_type" db:"processing_type"`
	SnapshotDate     time.Time      `json:"snapshot_date" db:"snapshot_date"`
	DataHash         string         `json:"data_hash" db:"data_hash"`
	LastProcessedAt  time.Time      `json:"last_processed_at" db:"last_processed_at"`
	RecordsProcessed int            `json:"records_processed" db:"records_processed"`
	ChangeSummary    string         `json:"change_summary" db:"change_summary"`
}

// JobExecution tracks one logical run of a named job. A single record spans
// all retries of the run; only the terminal state is committed as final.
type JobExecution struct {
	ID            int64      `json:"id" db:"id"`
	JobName       string     `json:"job_name" db:"job_name"`
	JobType       string     `json:"job_type" db:"job_type"`
	Status        JobStatus  `json:"status" db:"status"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage  string     `json:"error_message" db:"error_message"`
	ResultSummary string     `json:"result_summary" db:"result_summary"`
	Parameters    string     `json:"parameters" db:"parameters"`
}

// UnitCost is the resolved cost of one unit of a SKU at a store, tagged with
// where the number came from so downstream savings stay auditable.
type UnitCost struct {
	Cost   float64    `json:"cost" db:"cost"`
	Source CostSource `json:"source" db:"source"`
}

// StoreSKU identifies a store-SKU pair, the grain of the feature table.
type StoreSKU struct {
	StoreID int64  `json:"store_id" db:"store_id"`
	SKUID   string `json:"sku_id" db:"sku_id"`
}

// BatchKey identifies one inventory batch, the grain of the risk table.
type BatchKey struct {
	StoreID int64  `json:"store_id" db:"store_id"`
	SKUID   string `json:"sku_id" db:"sku_id"`
	BatchID string `json:"batch_id" db:"batch_id"`
}

// SKUInfo is the master-data slice the liquidation generator needs: category
// drives the recovery-rate table.
type SKUInfo struct {
	SKUID    string `json:"sku_id" db:"sku_id"`
	Category string `json:"category" db:"category"`
	Region   string `json:"region" db:"region"`
}

// StoreInfo carries the store attributes the transfer generator needs.
type StoreInfo struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Region string `json:"region" db:"region"`
}
