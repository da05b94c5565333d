package changedetect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

var snapshot = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

type fakeSalesRepo struct {
	records []domain.SalesRecord
	err     error
}

func (f *fakeSalesRepo) GetSalesWindow(ctx context.Context, from, to time.Time, keys []domain.StoreSKU) ([]domain.SalesRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.SalesRecord
	for _, rec := range f.records {
		if !rec.Date.Before(from) && !rec.Date.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

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
	byDate map[time.Time][]domain.BatchRisk
}

func (f *fakeRiskRepo) GetBatchRisks(ctx context.Context, snapshotDate time.Time) ([]domain.BatchRisk, error) {
	return f.byDate[snapshotDate], nil
}

func (f *fakeRiskRepo) GetHighRiskBatches(ctx context.Context, snapshotDate time.Time, minScore float64) ([]domain.BatchRisk, error) {
	return nil, nil
}

func (f *fakeRiskRepo) GetBatchRisksByKeys(ctx context.Context, snapshotDate time.Time, keys []domain.BatchKey) ([]domain.BatchRisk, error) {
	return nil, nil
}

func (f *fakeRiskRepo) UpsertBatchRisks(ctx context.Context, risks []domain.BatchRisk) error {
	return nil
}

type fakeTrackingRepo struct {
	latest *domain.ChangeTrackingRecord
	err    error
}

func (f *fakeTrackingRepo) GetLatest(ctx context.Context, processingType domain.ProcessingType, asOf time.Time) (*domain.ChangeTrackingRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.latest, nil
}

func (f *fakeTrackingRepo) Upsert(ctx context.Context, record *domain.ChangeTrackingRecord) error {
	f.latest = record
	return nil
}

func testSales() []domain.SalesRecord {
	return []domain.SalesRecord{
		{Date: snapshot, StoreID: 1, SKUID: "SKU-A", UnitsSold: 5, SellingPrice: 12},
		{Date: snapshot.AddDate(0, 0, -1), StoreID: 1, SKUID: "SKU-A", UnitsSold: 3, SellingPrice: 12},
		{Date: snapshot, StoreID: 2, SKUID: "SKU-B", UnitsSold: 7, SellingPrice: 8},
	}
}

func newTestDetector(sales *fakeSalesRepo, risks *fakeRiskRepo, tracking *fakeTrackingRepo) *Detector {
	if risks == nil {
		risks = &fakeRiskRepo{byDate: map[time.Time][]domain.BatchRisk{}}
	}
	return NewDetector(sales, &fakeInventoryRepo{}, &fakeFeatureRepo{}, risks, tracking, 5.0, 50.0)
}

func TestDetectChanges_NoPriorRecordMeansChanged(t *testing.T) {
	detector := newTestDetector(&fakeSalesRepo{records: testSales()}, nil, &fakeTrackingRepo{})

	result := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)

	assert.True(t, result.HasChanges)
	assert.NotEmpty(t, result.DataHash)
	assert.Equal(t, "no prior run", result.ChangeSummary)
}

func TestDetectChanges_HashIsOrderIndependent(t *testing.T) {
	sales := testSales()
	reversed := make([]domain.SalesRecord, len(sales))
	for i, rec := range sales {
		reversed[len(sales)-1-i] = rec
	}

	tracking := &fakeTrackingRepo{}
	first := newTestDetector(&fakeSalesRepo{records: sales}, nil, tracking).
		DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	second := newTestDetector(&fakeSalesRepo{records: reversed}, nil, tracking).
		DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)

	assert.Equal(t, first.DataHash, second.DataHash)
}

func TestDetectChanges_UnchangedDataIsSkippable(t *testing.T) {
	sales := &fakeSalesRepo{records: testSales()}
	tracking := &fakeTrackingRepo{}
	detector := newTestDetector(sales, nil, tracking)

	first := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	require.NoError(t, detector.MarkProcessed(context.Background(), domain.ProcessingFeatures, snapshot,
		first.DataHash, 3, first.ChangeSummary))

	second := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	assert.False(t, second.HasChanges)
	assert.Equal(t, "unchanged", second.ChangeSummary)
}

func TestDetectChanges_NewDataFlipsHash(t *testing.T) {
	sales := &fakeSalesRepo{records: testSales()}
	tracking := &fakeTrackingRepo{}
	detector := newTestDetector(sales, nil, tracking)

	first := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	require.NoError(t, detector.MarkProcessed(context.Background(), domain.ProcessingFeatures, snapshot,
		first.DataHash, 3, first.ChangeSummary))

	sales.records = append(sales.records, domain.SalesRecord{
		Date: snapshot, StoreID: 3, SKUID: "SKU-C", UnitsSold: 1, SellingPrice: 4,
	})

	second := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	assert.True(t, second.HasChanges)
	assert.NotEqual(t, first.DataHash, second.DataHash)
}

func TestDetectChanges_StaleRecordForcesRefresh(t *testing.T) {
	sales := &fakeSalesRepo{records: testSales()}
	tracking := &fakeTrackingRepo{}
	detector := newTestDetector(sales, nil, tracking)

	first := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	tracking.latest = &domain.ChangeTrackingRecord{
		ProcessingType:  domain.ProcessingFeatures,
		SnapshotDate:    snapshot,
		DataHash:        first.DataHash,
		LastProcessedAt: time.Now().UTC().Add(-25 * time.Hour),
	}

	result := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	assert.True(t, result.HasChanges)
	assert.Contains(t, result.ChangeSummary, "stale")
}

func TestDetectChanges_FailsOpenOnDataError(t *testing.T) {
	detector := newTestDetector(&fakeSalesRepo{err: errors.New("timeout")}, nil, &fakeTrackingRepo{})

	result := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	assert.True(t, result.HasChanges)
}

func TestDetectChanges_FailsOpenOnTrackingError(t *testing.T) {
	detector := newTestDetector(&fakeSalesRepo{records: testSales()}, nil, &fakeTrackingRepo{err: errors.New("timeout")})

	result := detector.DetectChanges(context.Background(), snapshot, domain.ProcessingFeatures)
	assert.True(t, result.HasChanges)
}

func TestChangedBatchKeys_MembershipRules(t *testing.T) {
	yesterday := snapshot.AddDate(0, 0, -1)
	risks := &fakeRiskRepo{byDate: map[time.Time][]domain.BatchRisk{
		yesterday: {
			{SnapshotDate: yesterday, StoreID: 1, SKUID: "SKU-A", BatchID: "steady", RiskScore: 20},
			{SnapshotDate: yesterday, StoreID: 1, SKUID: "SKU-A", BatchID: "moved", RiskScore: 20},
			{SnapshotDate: yesterday, StoreID: 1, SKUID: "SKU-A", BatchID: "hot", RiskScore: 60},
		},
		snapshot: {
			{SnapshotDate: snapshot, StoreID: 1, SKUID: "SKU-A", BatchID: "steady", RiskScore: 21},
			{SnapshotDate: snapshot, StoreID: 1, SKUID: "SKU-A", BatchID: "moved", RiskScore: 28},
			{SnapshotDate: snapshot, StoreID: 1, SKUID: "SKU-A", BatchID: "hot", RiskScore: 61},
			{SnapshotDate: snapshot, StoreID: 1, SKUID: "SKU-A", BatchID: "new", RiskScore: 10},
		},
	}}
	detector := newTestDetector(&fakeSalesRepo{}, risks, &fakeTrackingRepo{})

	keys, err := detector.ChangedBatchKeys(context.Background(), snapshot)
	require.NoError(t, err)

	ids := make(map[string]bool, len(keys))
	for _, k := range keys {
		ids[k.BatchID] = true
	}

	assert.False(t, ids["steady"], "small score move below the delta stays out")
	assert.True(t, ids["moved"], "score moved by >= 5 points")
	assert.True(t, ids["hot"], "already above the always-reprocess score")
	assert.True(t, ids["new"], "batch absent yesterday")
}

func TestChangedFeatureKeys_SalesOnDateAndChangedBatches(t *testing.T) {
	risks := &fakeRiskRepo{byDate: map[time.Time][]domain.BatchRisk{
		snapshot: {
			{SnapshotDate: snapshot, StoreID: 9, SKUID: "SKU-Z", BatchID: "b", RiskScore: 70},
		},
	}}
	sales := &fakeSalesRepo{records: []domain.SalesRecord{
		{Date: snapshot, StoreID: 1, SKUID: "SKU-A", UnitsSold: 5},
		{Date: snapshot.AddDate(0, 0, -2), StoreID: 2, SKUID: "SKU-B", UnitsSold: 5},
	}}
	detector := newTestDetector(sales, risks, &fakeTrackingRepo{})

	keys, err := detector.ChangedFeatureKeys(context.Background(), snapshot)
	require.NoError(t, err)

	assert.Contains(t, keys, domain.StoreSKU{StoreID: 1, SKUID: "SKU-A"})
	assert.Contains(t, keys, domain.StoreSKU{StoreID: 9, SKUID: "SKU-Z"})
	assert.NotContains(t, keys, domain.StoreSKU{StoreID: 2, SKUID: "SKU-B"})
}
