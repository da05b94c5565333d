package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/freshrisk/internal/domain"
)

type fakeSalesRepo struct {
	records []domain.SalesRecord
	err     error
}

func (f *fakeSalesRepo) GetSalesWindow(ctx context.Context, from, to time.Time, keys []domain.StoreSKU) ([]domain.SalesRecord, error) {
	if f.err != nil {
		return nil, f.err
	}

	keySet := make(map[domain.StoreSKU]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	var out []domain.SalesRecord
	for _, rec := range f.records {
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		if len(keySet) > 0 {
			if _, ok := keySet[domain.StoreSKU{StoreID: rec.StoreID, SKUID: rec.SKUID}]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

type fakeFeatureRepo struct {
	upserted map[domain.StoreSKU]domain.FeatureRecord
	calls    int
	err      error
}

func newFakeFeatureRepo() *fakeFeatureRepo {
	return &fakeFeatureRepo{upserted: make(map[domain.StoreSKU]domain.FeatureRecord)}
}

func (f *fakeFeatureRepo) GetFeatures(ctx context.Context, date time.Time) ([]domain.FeatureRecord, error) {
	var out []domain.FeatureRecord
	for _, rec := range f.upserted {
		if rec.Date.Equal(date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeFeatureRepo) GetFeaturesForSKU(ctx context.Context, date time.Time, skuID string) ([]domain.FeatureRecord, error) {
	var out []domain.FeatureRecord
	for _, rec := range f.upserted {
		if rec.Date.Equal(date) && rec.SKUID == skuID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeFeatureRepo) UpsertFeatures(ctx context.Context, records []domain.FeatureRecord) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, rec := range records {
		f.upserted[domain.StoreSKU{StoreID: rec.StoreID, SKUID: rec.SKUID}] = rec
	}
	return nil
}

func salesFor(storeID int64, skuID string, unitsPerDay float64, days int) []domain.SalesRecord {
	records := make([]domain.SalesRecord, 0, days)
	for i := 0; i < days; i++ {
		records = append(records, domain.SalesRecord{
			Date:      snapshot.AddDate(0, 0, -i),
			StoreID:   storeID,
			SKUID:     skuID,
			UnitsSold: unitsPerDay,
		})
	}
	return records
}

func TestBuild_FullModeProcessesEveryKeyWithSales(t *testing.T) {
	sales := append(salesFor(1, "SKU-A", 4, 30), salesFor(2, "SKU-B", 2, 10)...)
	featureRepo := newFakeFeatureRepo()
	builder := NewBuilder(&fakeSalesRepo{records: sales}, featureRepo)

	result, err := builder.Build(context.Background(), snapshot, false, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.KeysProcessed)
	assert.Equal(t, 2, result.RecordsWritten)

	recA := featureRepo.upserted[domain.StoreSKU{StoreID: 1, SKUID: "SKU-A"}]
	assert.InDelta(t, 4.0, recA.V7, 1e-9)
	assert.InDelta(t, 4.0, recA.V30, 1e-9)

	// SKU-B sold on 10 of 30 days: the window is zero-filled.
	recB := featureRepo.upserted[domain.StoreSKU{StoreID: 2, SKUID: "SKU-B"}]
	assert.InDelta(t, 2.0, recB.V7, 1e-9)
	assert.InDelta(t, 20.0/30, recB.V30, 1e-9)
}

func TestBuild_IncrementalRestrictsToChangedKeys(t *testing.T) {
	sales := append(salesFor(1, "SKU-A", 4, 30), salesFor(2, "SKU-B", 2, 30)...)
	featureRepo := newFakeFeatureRepo()
	builder := NewBuilder(&fakeSalesRepo{records: sales}, featureRepo)

	result, err := builder.Build(context.Background(), snapshot, true, []domain.StoreSKU{{StoreID: 1, SKUID: "SKU-A"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.KeysProcessed)
	assert.Contains(t, featureRepo.upserted, domain.StoreSKU{StoreID: 1, SKUID: "SKU-A"})
	assert.NotContains(t, featureRepo.upserted, domain.StoreSKU{StoreID: 2, SKUID: "SKU-B"})
}

func TestBuild_IncrementalWithNoKeysIsNoOp(t *testing.T) {
	featureRepo := newFakeFeatureRepo()
	builder := NewBuilder(&fakeSalesRepo{records: salesFor(1, "SKU-A", 4, 30)}, featureRepo)

	result, err := builder.Build(context.Background(), snapshot, true, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.KeysProcessed)
	assert.Equal(t, 0, featureRepo.calls)
}

func TestBuild_IsIdempotent(t *testing.T) {
	featureRepo := newFakeFeatureRepo()
	builder := NewBuilder(&fakeSalesRepo{records: salesFor(1, "SKU-A", 3, 30)}, featureRepo)

	_, err := builder.Build(context.Background(), snapshot, false, nil)
	require.NoError(t, err)
	first := featureRepo.upserted[domain.StoreSKU{StoreID: 1, SKUID: "SKU-A"}]

	_, err = builder.Build(context.Background(), snapshot, false, nil)
	require.NoError(t, err)
	second := featureRepo.upserted[domain.StoreSKU{StoreID: 1, SKUID: "SKU-A"}]

	assert.Equal(t, first, second)
}

func TestBuild_SalesErrorPropagates(t *testing.T) {
	featureRepo := newFakeFeatureRepo()
	builder := NewBuilder(&fakeSalesRepo{err: errors.New("connection reset")}, featureRepo)

	_, err := builder.Build(context.Background(), snapshot, false, nil)
	require.Error(t, err)
	assert.Equal(t, 0, featureRepo.calls)
}

func TestBuild_UpsertErrorPropagates(t *testing.T) {
	featureRepo := newFakeFeatureRepo()
	featureRepo.err = errors.New("deadlock detected")
	builder := NewBuilder(&fakeSalesRepo{records: salesFor(1, "SKU-A", 3, 30)}, featureRepo)

	_, err := builder.Build(context.Background(), snapshot, false, nil)
	require.Error(t, err)
}
