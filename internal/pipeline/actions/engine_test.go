package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/freshrisk/internal/config"
	"github.com/andresuchdata/freshrisk/internal/domain"
)

var snapshot = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func testActionConfig() config.ActionConfig {
	return config.ActionConfig{
		TransferMinScore:    70,
		MarkdownMinScore:    50,
		LiquidationMinScore: 80,
		LiquidationMaxDays:  7,
		MaxDiscount:         0.7,
	}
}

type fakeRiskRepo struct {
	risks []domain.BatchRisk
}

func (f *fakeRiskRepo) GetBatchRisks(ctx context.Context, snapshotDate time.Time) ([]domain.BatchRisk, error) {
	var out []domain.BatchRisk
	for _, r := range f.risks {
		if r.SnapshotDate.Equal(snapshotDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRiskRepo) GetHighRiskBatches(ctx context.Context, snapshotDate time.Time, minScore float64) ([]domain.BatchRisk, error) {
	var out []domain.BatchRisk
	for _, r := range f.risks {
		if r.SnapshotDate.Equal(snapshotDate) && r.RiskScore >= minScore {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRiskRepo) GetBatchRisksByKeys(ctx context.Context, snapshotDate time.Time, keys []domain.BatchKey) ([]domain.BatchRisk, error) {
	keySet := make(map[domain.BatchKey]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var out []domain.BatchRisk
	for _, r := range f.risks {
		key := domain.BatchKey{StoreID: r.StoreID, SKUID: r.SKUID, BatchID: r.BatchID}
		if _, ok := keySet[key]; ok && r.SnapshotDate.Equal(snapshotDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRiskRepo) UpsertBatchRisks(ctx context.Context, risks []domain.BatchRisk) error {
	return nil
}

type fakeFeatureRepo struct {
	features []domain.FeatureRecord
}

func (f *fakeFeatureRepo) GetFeatures(ctx context.Context, date time.Time) ([]domain.FeatureRecord, error) {
	return f.features, nil
}

func (f *fakeFeatureRepo) GetFeaturesForSKU(ctx context.Context, date time.Time, skuID string) ([]domain.FeatureRecord, error) {
	var out []domain.FeatureRecord
	for _, rec := range f.features {
		if rec.SKUID == skuID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeFeatureRepo) UpsertFeatures(ctx context.Context, records []domain.FeatureRecord) error {
	return nil
}

type fakeActionRepo struct {
	actions  map[int64]*domain.Action
	outcomes map[int64]*domain.ActionOutcome
	nextID   int64
}

func newFakeActionRepo() *fakeActionRepo {
	return &fakeActionRepo{
		actions:  make(map[int64]*domain.Action),
		outcomes: make(map[int64]*domain.ActionOutcome),
		nextID:   1,
	}
}

func (f *fakeActionRepo) InsertActions(ctx context.Context, actions []*domain.Action) ([]int64, error) {
	ids := make([]int64, 0, len(actions))
	for _, a := range actions {
		a.ID = f.nextID
		f.nextID++
		stored := *a
		f.actions[a.ID] = &stored
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (f *fakeActionRepo) GetAction(ctx context.Context, id int64) (*domain.Action, error) {
	a, ok := f.actions[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeActionRepo) UpdateActionStatus(ctx context.Context, id int64, status domain.ActionStatus) error {
	a, ok := f.actions[id]
	if !ok {
		return nil
	}
	a.Status = status
	return nil
}

func (f *fakeActionRepo) UpsertOutcome(ctx context.Context, outcome *domain.ActionOutcome) error {
	stored := *outcome
	f.outcomes[outcome.ActionID] = &stored
	return nil
}

func (f *fakeActionRepo) GetOutcome(ctx context.Context, actionID int64) (*domain.ActionOutcome, error) {
	o, ok := f.outcomes[actionID]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

type fakeMasterRepo struct {
	skus   map[string]domain.SKUInfo
	stores map[int64]domain.StoreInfo
}

func (f *fakeMasterRepo) GetSKUs(ctx context.Context) (map[string]domain.SKUInfo, error) {
	return f.skus, nil
}

func (f *fakeMasterRepo) GetStores(ctx context.Context) (map[int64]domain.StoreInfo, error) {
	return f.stores, nil
}

type fakeCostRepo struct {
	storeSKU map[domain.StoreSKU]float64
	average  map[string]float64
	prices   map[domain.StoreSKU]float64
}

func (f *fakeCostRepo) GetStoreSKUCosts(ctx context.Context) (map[domain.StoreSKU]float64, error) {
	return f.storeSKU, nil
}

func (f *fakeCostRepo) GetSKUAverageCosts(ctx context.Context) (map[string]float64, error) {
	return f.average, nil
}

func (f *fakeCostRepo) GetSellingPrices(ctx context.Context) (map[domain.StoreSKU]float64, error) {
	return f.prices, nil
}

// twoStoreFixture: a high-risk batch at store 1 and a much faster store 2 in
// the same region carrying the same SKU.
func twoStoreFixture() (*fakeRiskRepo, *fakeFeatureRepo, *fakeMasterRepo, *fakeCostRepo) {
	risks := &fakeRiskRepo{risks: []domain.BatchRisk{
		{
			SnapshotDate: snapshot, StoreID: 1, SKUID: "SKU-A", BatchID: "B1",
			DaysToExpiry: 5, AtRiskUnits: 80, AtRiskValue: 800, RiskScore: 85,
		},
	}}
	features := &fakeFeatureRepo{features: []domain.FeatureRecord{
		{Date: snapshot, StoreID: 1, SKUID: "SKU-A", V7: 2, V14: 2, V30: 2, Volatility: 0.5},
		{Date: snapshot, StoreID: 2, SKUID: "SKU-A", V7: 5, V14: 5, V30: 5, Volatility: 0.5},
	}}
	master := &fakeMasterRepo{
		skus: map[string]domain.SKUInfo{
			"SKU-A": {SKUID: "SKU-A", Category: "dairy", Region: "north"},
		},
		stores: map[int64]domain.StoreInfo{
			1: {ID: 1, Name: "one", Region: "north"},
			2: {ID: 2, Name: "two", Region: "north"},
		},
	}
	costs := &fakeCostRepo{
		storeSKU: map[domain.StoreSKU]float64{
			{StoreID: 1, SKUID: "SKU-A"}: 10,
			{StoreID: 2, SKUID: "SKU-A"}: 10,
		},
		prices: map[domain.StoreSKU]float64{
			{StoreID: 1, SKUID: "SKU-A"}: 18,
		},
	}
	return risks, features, master, costs
}

func newTestEngine(risks *fakeRiskRepo, features *fakeFeatureRepo, actionRepo *fakeActionRepo, master *fakeMasterRepo, costs *fakeCostRepo) *Engine {
	return NewEngine(risks, features, actionRepo, master, costs, testActionConfig(), 10.0)
}

func TestGenerateAllRecommendations_TransferToFasterStore(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	var transfer *Recommendation
	for i := range recs {
		if recs[i].ActionType == domain.ActionTransfer {
			transfer = &recs[i]
			break
		}
	}
	require.NotNil(t, transfer, "expected a transfer recommendation")

	assert.Equal(t, int64(1), transfer.FromStore)
	require.NotNil(t, transfer.ToStore)
	assert.Equal(t, int64(2), *transfer.ToStore)
	assert.NotEqual(t, transfer.FromStore, *transfer.ToStore)
	assert.Greater(t, transfer.ExpectedSavings, 0.0)
	assert.Greater(t, transfer.FeasibilityScore, 0.3)
}

func TestGenerateAllRecommendations_TransferGateBelowMarkdownGate(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	// The thresholds are independently configurable: with the transfer gate
	// below the markdown gate, a batch between the two must still reach the
	// transfer generator.
	risks.risks[0].RiskScore = 45

	cfg := testActionConfig()
	cfg.TransferMinScore = 40
	cfg.MarkdownMinScore = 60
	engine := NewEngine(risks, features, newFakeActionRepo(), master, costs, cfg, 10.0)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)

	var transfers int
	for _, rec := range recs {
		if rec.ActionType == domain.ActionTransfer {
			transfers++
		}
		assert.NotEqual(t, domain.ActionMarkdown, rec.ActionType)
	}
	assert.Greater(t, transfers, 0, "expected the sub-markdown batch to produce a transfer")
}

func TestGenerateAllRecommendations_AllSavingsPositiveAndSorted(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)

	for i, rec := range recs {
		assert.Greater(t, rec.ExpectedSavings, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].ExpectedSavings, rec.ExpectedSavings)
		}
	}
}

func TestGenerateAllRecommendations_SlowDestinationIsSkipped(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	// Destination barely faster than source: below the 1.2x bar.
	features.features[1].V14 = 2.3
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)

	for _, rec := range recs {
		assert.NotEqual(t, domain.ActionTransfer, rec.ActionType)
	}
}

func TestGenerateAllRecommendations_MarkdownWithHealthyMargin(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	// Moderate risk, wide margin: a discount still sells above cost, so a
	// markdown beats writing the stock off.
	risks.risks[0].RiskScore = 55
	risks.risks[0].DaysToExpiry = 10
	features.features = []domain.FeatureRecord{
		{Date: snapshot, StoreID: 1, SKUID: "SKU-A", V7: 4, V14: 4, V30: 4, Volatility: 1},
	}
	costs.prices[domain.StoreSKU{StoreID: 1, SKUID: "SKU-A"}] = 30
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)

	var markdown *Recommendation
	for i := range recs {
		if recs[i].ActionType == domain.ActionMarkdown {
			markdown = &recs[i]
			break
		}
	}
	require.NotNil(t, markdown, "expected a markdown recommendation")

	require.NotNil(t, markdown.DiscountPct)
	assert.Greater(t, *markdown.DiscountPct, 0.0)
	assert.LessOrEqual(t, *markdown.DiscountPct, 0.7)
	assert.Greater(t, markdown.ExpectedSavings, 0.0)
	assert.LessOrEqual(t, markdown.Qty, risks.risks[0].AtRiskUnits)
}

func TestGenerateAllRecommendations_LiquidationNeedsShortExpiry(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	// High score but 20 days out: transfer/markdown territory, not
	// liquidation.
	risks.risks[0].DaysToExpiry = 20
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)

	for _, rec := range recs {
		assert.NotEqual(t, domain.ActionLiquidate, rec.ActionType)
	}
}

func TestGenerateAllRecommendations_LiquidationForHighRecoveryCategory(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	// Frozen recovers best; a longer max-days window lifts the time factor
	// off its floor so the recovery rate clears the emission gate.
	risks.risks[0].SKUID = "SKU-F"
	risks.risks[0].DaysToExpiry = 20
	risks.risks[0].RiskScore = 80
	risks.risks[0].AtRiskUnits = 100
	risks.risks[0].AtRiskValue = 5000
	features.features = nil
	master.skus["SKU-F"] = domain.SKUInfo{SKUID: "SKU-F", Category: "frozen", Region: "north"}
	costs.storeSKU[domain.StoreSKU{StoreID: 1, SKUID: "SKU-F"}] = 50

	cfg := testActionConfig()
	cfg.LiquidationMaxDays = 30
	engine := NewEngine(risks, features, newFakeActionRepo(), master, costs, cfg, 10.0)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)

	var found bool
	for _, rec := range recs {
		if rec.ActionType == domain.ActionLiquidate {
			found = true
			assert.Greater(t, rec.ExpectedSavings, 0.0)
			assert.Greater(t, rec.FeasibilityScore, 0.0)
		}
	}
	assert.True(t, found, "expected a liquidation recommendation")
}

func TestGenerateAllRecommendations_IncrementalEmptySetIsNoOp(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, true, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGenerateAllRecommendations_IncrementalRestrictsCandidates(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	risks.risks = append(risks.risks, domain.BatchRisk{
		SnapshotDate: snapshot, StoreID: 1, SKUID: "SKU-A", BatchID: "B2",
		DaysToExpiry: 5, AtRiskUnits: 40, AtRiskValue: 400, RiskScore: 80,
	})
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, true, []domain.BatchKey{
		{StoreID: 1, SKUID: "SKU-A", BatchID: "B2"},
	})
	require.NoError(t, err)

	for _, rec := range recs {
		assert.Equal(t, "B2", rec.BatchID)
	}
}

func TestSaveRecommendations_AssignsIDsInOrder(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	actionRepo := newFakeActionRepo()
	engine := newTestEngine(risks, features, actionRepo, master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	ids, err := engine.SaveRecommendations(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, ids, len(recs))

	for i, id := range ids {
		action, err := actionRepo.GetAction(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.Equal(t, domain.ActionProposed, action.Status)
		assert.Equal(t, recs[i].ActionType, action.ActionType)
	}
}

func TestApprovalWorkflow_Transitions(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	actionRepo := newFakeActionRepo()
	engine := newTestEngine(risks, features, actionRepo, master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)
	ids, err := engine.SaveRecommendations(context.Background(), recs)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	id := ids[0]

	// DONE before APPROVED is rejected.
	err = engine.MarkActionDone(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, engine.ApproveAction(context.Background(), id))
	require.NoError(t, engine.MarkActionDone(context.Background(), id))

	// A DONE action is immutable history.
	err = engine.RejectAction(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecordOutcome_RequiresApproval(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	actionRepo := newFakeActionRepo()
	engine := newTestEngine(risks, features, actionRepo, master, costs)

	recs, err := engine.GenerateAllRecommendations(context.Background(), snapshot, false, nil)
	require.NoError(t, err)
	ids, err := engine.SaveRecommendations(context.Background(), recs)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	id := ids[0]

	outcome := &domain.ActionOutcome{ActionID: id, RecoveredValue: 120, ClearedUnits: 30}

	err = engine.RecordOutcome(context.Background(), outcome)
	assert.ErrorIs(t, err, ErrActionNotApproved)

	require.NoError(t, engine.ApproveAction(context.Background(), id))
	require.NoError(t, engine.RecordOutcome(context.Background(), outcome))

	stored, err := actionRepo.GetOutcome(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 120.0, stored.RecoveredValue)

	// Re-recording overwrites.
	outcome.RecoveredValue = 150
	require.NoError(t, engine.RecordOutcome(context.Background(), outcome))
	stored, err = actionRepo.GetOutcome(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 150.0, stored.RecoveredValue)
}

func TestRecordOutcome_UnknownActionFails(t *testing.T) {
	risks, features, master, costs := twoStoreFixture()
	engine := newTestEngine(risks, features, newFakeActionRepo(), master, costs)

	err := engine.RecordOutcome(context.Background(), &domain.ActionOutcome{ActionID: 9999})
	assert.ErrorIs(t, err, ErrActionNotFound)
}
