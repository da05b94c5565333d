// internal/domain/dashboard.go
package domain

// KPIFilter narrows KPI queries; zero values mean "no filter".
type KPIFilter struct {
	StoreIDs []int64  `json:"store_ids"`
	SKUIds   []string `json:"sku_ids"`
	DateFrom string   `json:"date_from"`
	DateTo   string   `json:"date_to"`
}

// KPISummary is the headline dashboard numbers derived from persisted risk,
// action and outcome rows.
type KPISummary struct {
	AtRiskValue      float64 `json:"at_risk_value" db:"at_risk_value"`
	AtRiskUnits      float64 `json:"at_risk_units" db:"at_risk_units"`
	BatchesAtRisk    int     `json:"batches_at_risk" db:"batches_at_risk"`
	ProposedSavings  float64 `json:"proposed_savings" db:"proposed_savings"`
	ApprovedSavings  float64 `json:"approved_savings" db:"approved_savings"`
	RecoveredValue   float64 `json:"recovered_value" db:"recovered_value"`
	ClearedUnits     float64 `json:"cleared_units" db:"cleared_units"`
	ROI              float64 `json:"roi" db:"roi"`
}

// ActionBreakdown is the per-type-and-status action counts and savings.
type ActionBreakdown struct {
	ActionType      ActionType   `json:"action_type" db:"action_type"`
	Status          ActionStatus `json:"status" db:"status"`
	Count           int          `json:"count" db:"count"`
	ExpectedSavings float64      `json:"expected_savings" db:"expected_savings"`
}

// RiskTimeSeriesPoint is one day of aggregate at-risk exposure.
type RiskTimeSeriesPoint struct {
	Date        string  `json:"date" db:"date"`
	AtRiskValue float64 `json:"at_risk_value" db:"at_risk_value"`
	AtRiskUnits float64 `json:"at_risk_units" db:"at_risk_units"`
	AvgScore    float64 `json:"avg_score" db:"avg_score"`
}

// KPIDashboard bundles the read-side aggregates for the dashboard endpoint.
type KPIDashboard struct {
	Summary         KPISummary            `json:"summary"`
	ActionBreakdown []ActionBreakdown     `json:"action_breakdown"`
	TimeSeries      []RiskTimeSeriesPoint `json:"time_series"`
}
