package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

type fakeInventoryRepo struct {
	batches []domain.InventoryBatch
}

func (f *fakeInventoryRepo) GetBatches(ctx context.Context, snapshotDate time.Time) ([]domain.InventoryBatch, error) {
	return f.batches, nil
}

type fakeFeatureRepo struct {
	features []domain.FeatureRecord
}

func (f *fakeFeatureRepo) GetFeatures(ctx context.Context, date time.Time) ([]domain.FeatureRecord, error) {
	return f.features, nil
}

func (f *fakeFeatureRepo) GetFeaturesForSKU(ctx context.Context, date time.Time, skuID string) ([]domain.FeatureRecord, error) {
	return nil, nil
}

func (f *fakeFeatureRepo) UpsertFeatures(ctx context.Context, records []domain.FeatureRecord) error {
	return nil
}

type fakeRiskRepo struct {
	upserted []domain.BatchRisk
	calls    int
}

func (f *fakeRiskRepo) GetBatchRisks(ctx context.Context, snapshotDate time.Time) ([]domain.BatchRisk, error) {
	return nil, nil
}

func (f *fakeRiskRepo) GetHighRiskBatches(ctx context.Context, snapshotDate time.Time, minScore float64) ([]domain.BatchRisk, error) {
	return nil, nil
}

func (f *fakeRiskRepo) GetBatchRisksByKeys(ctx context.Context, snapshotDate time.Time, keys []domain.BatchKey) ([]domain.BatchRisk, error) {
	return nil, nil
}

func (f *fakeRiskRepo) UpsertBatchRisks(ctx context.Context, risks []domain.BatchRisk) error {
	f.calls++
	f.upserted = risks
	return nil
}

type fakeCostRepo struct {
	storeSKU map[domain.StoreSKU]float64
	skuAvg   map[string]float64
	prices   map[domain.StoreSKU]float64
}

func (f *fakeCostRepo) GetStoreSKUCosts(ctx context.Context) (map[domain.StoreSKU]float64, error) {
	return f.storeSKU, nil
}

func (f *fakeCostRepo) GetSKUAverageCosts(ctx context.Context) (map[string]float64, error) {
	return f.skuAvg, nil
}

func (f *fakeCostRepo) GetSellingPrices(ctx context.Context) (map[domain.StoreSKU]float64, error) {
	return f.prices, nil
}

func newTestRunner(inv *fakeInventoryRepo, feat *fakeFeatureRepo, risks *fakeRiskRepo, costs *fakeCostRepo) *Runner {
	if costs == nil {
		costs = &fakeCostRepo{}
	}
	return NewRunner(inv, feat, risks, costs, 1.0)
}

func TestComputeBatchRisk_NoFeaturesReturnsEarly(t *testing.T) {
	risks := &fakeRiskRepo{}
	runner := newTestRunner(
		&fakeInventoryRepo{batches: []domain.InventoryBatch{{StoreID: 1, SKUID: "SKU-A", BatchID: "b1"}}},
		&fakeFeatureRepo{},
		risks, nil)

	result, err := runner.ComputeBatchRisk(context.Background(), snapshot)
	require.NoError(t, err)

	assert.Equal(t, StatusNoFeatures, result.Status)
	assert.Zero(t, result.BatchesProcessed)
	assert.Zero(t, risks.calls)
}

func TestComputeBatchRisk_NoInventoryReturnsEarly(t *testing.T) {
	risks := &fakeRiskRepo{}
	runner := newTestRunner(
		&fakeInventoryRepo{},
		&fakeFeatureRepo{features: []domain.FeatureRecord{{StoreID: 1, SKUID: "SKU-A", V14: 2}}},
		risks, nil)

	result, err := runner.ComputeBatchRisk(context.Background(), snapshot)
	require.NoError(t, err)

	assert.Equal(t, StatusNoInventory, result.Status)
	assert.Zero(t, risks.calls)
}

func TestComputeBatchRisk_BadBatchesAreCountedNotFatal(t *testing.T) {
	risks := &fakeRiskRepo{}
	runner := newTestRunner(
		&fakeInventoryRepo{batches: []domain.InventoryBatch{
			{StoreID: 1, SKUID: "SKU-A", BatchID: "good", ExpiryDate: snapshot.AddDate(0, 0, 3), OnHandQty: 10},
			{StoreID: 1, SKUID: "SKU-A", BatchID: "negative", ExpiryDate: snapshot.AddDate(0, 0, 3), OnHandQty: -4},
			{StoreID: 1, SKUID: "SKU-A", BatchID: "no-expiry", OnHandQty: 5},
		}},
		&fakeFeatureRepo{features: []domain.FeatureRecord{{StoreID: 1, SKUID: "SKU-A", V14: 2}}},
		risks, nil)

	result, err := runner.ComputeBatchRisk(context.Background(), snapshot)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.BatchesProcessed)
	assert.Equal(t, 2, result.Errors)

	require.Len(t, risks.upserted, 1)
	assert.Equal(t, "good", risks.upserted[0].BatchID)
}

func TestComputeBatchRisk_TagsCostSource(t *testing.T) {
	risks := &fakeRiskRepo{}
	costs := &fakeCostRepo{
		storeSKU: map[domain.StoreSKU]float64{{StoreID: 1, SKUID: "SKU-A"}: 4},
		skuAvg:   map[string]float64{"SKU-B": 3},
	}
	expiry := snapshot.AddDate(0, 0, 5)
	runner := newTestRunner(
		&fakeInventoryRepo{batches: []domain.InventoryBatch{
			{StoreID: 1, SKUID: "SKU-A", BatchID: "b1", ExpiryDate: expiry, OnHandQty: 10},
			{StoreID: 1, SKUID: "SKU-B", BatchID: "b2", ExpiryDate: expiry, OnHandQty: 10},
			{StoreID: 1, SKUID: "SKU-C", BatchID: "b3", ExpiryDate: expiry, OnHandQty: 10},
		}},
		&fakeFeatureRepo{features: []domain.FeatureRecord{{StoreID: 1, SKUID: "SKU-A", V14: 2}}},
		risks, costs)

	result, err := runner.ComputeBatchRisk(context.Background(), snapshot)
	require.NoError(t, err)
	require.Equal(t, 3, result.BatchesProcessed)

	sources := make(map[string]string, 3)
	for _, r := range risks.upserted {
		sources[r.SKUID] = r.CostSource
	}
	assert.Equal(t, string(domain.CostSourceStoreSKU), sources["SKU-A"])
	assert.Equal(t, string(domain.CostSourceSKUAverage), sources["SKU-B"])
	assert.Equal(t, string(domain.CostSourceDefault), sources["SKU-C"])
}

func TestComputeBatchRisk_RerunWithUnchangedInputsIsIdentical(t *testing.T) {
	risks := &fakeRiskRepo{}
	runner := newTestRunner(
		&fakeInventoryRepo{batches: []domain.InventoryBatch{
			{StoreID: 1, SKUID: "SKU-A", BatchID: "b1", ExpiryDate: snapshot.AddDate(0, 0, 2), OnHandQty: 50},
			{StoreID: 1, SKUID: "SKU-B", BatchID: "b2", ExpiryDate: snapshot.AddDate(0, 0, 10), OnHandQty: 12},
		}},
		&fakeFeatureRepo{features: []domain.FeatureRecord{
			{StoreID: 1, SKUID: "SKU-A", V14: 3},
			{StoreID: 1, SKUID: "SKU-B", V14: 1.5},
		}},
		risks, nil)

	_, err := runner.ComputeBatchRisk(context.Background(), snapshot)
	require.NoError(t, err)
	first := append([]domain.BatchRisk(nil), risks.upserted...)
	require.NotEmpty(t, first)

	result, err := runner.ComputeBatchRisk(context.Background(), snapshot)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, risks.calls)
	assert.Equal(t, first, risks.upserted)
}

func TestComputeBatchRisk_MissingFeatureRowScoresWithZeroVelocity(t *testing.T) {
	risks := &fakeRiskRepo{}
	runner := newTestRunner(
		&fakeInventoryRepo{batches: []domain.InventoryBatch{
			{StoreID: 2, SKUID: "SKU-X", BatchID: "b1", ExpiryDate: snapshot.AddDate(0, 0, 4), OnHandQty: 8},
		}},
		&fakeFeatureRepo{features: []domain.FeatureRecord{{StoreID: 1, SKUID: "SKU-A", V14: 2}}},
		risks, nil)

	_, err := runner.ComputeBatchRisk(context.Background(), snapshot)
	require.NoError(t, err)

	require.Len(t, risks.upserted, 1)
	// No velocity means nothing sells before expiry: the whole batch is at risk.
	assert.Zero(t, risks.upserted[0].ExpectedSalesToExpiry)
	assert.Equal(t, 8.0, risks.upserted[0].AtRiskUnits)
}
