// internal/pipeline/actions/types.go
package actions

import (
	"github.com/andresuchdata/freshrisk/internal/domain"
)

// Recommendation is one proposed mitigation for an at-risk batch, produced by
// a generator and not yet persisted. FeasibilityScore is a 0-1 heuristic
// confidence that the action is operationally viable.
type Recommendation struct {
	ActionType       domain.ActionType `json:"action_type"`
	FromStore        int64             `json:"from_store"`
	ToStore          *int64            `json:"to_store,omitempty"`
	SKUID            string            `json:"sku_id"`
	BatchID          string            `json:"batch_id"`
	Qty              float64           `json:"qty"`
	DiscountPct      *float64          `json:"discount_pct,omitempty"`
	ExpectedSavings  float64           `json:"expected_savings"`
	FeasibilityScore float64           `json:"feasibility_score"`
	Details          string            `json:"details"`
}

// ToAction converts the recommendation into a persistable action in the
// initial PROPOSED state.
func (r Recommendation) ToAction() *domain.Action {
	return &domain.Action{
		ActionType:      r.ActionType,
		FromStore:       r.FromStore,
		ToStore:         r.ToStore,
		SKUID:           r.SKUID,
		BatchID:         r.BatchID,
		Qty:             r.Qty,
		DiscountPct:     r.DiscountPct,
		ExpectedSavings: r.ExpectedSavings,
		Status:          domain.ActionProposed,
	}
}

// clamp01 bounds a heuristic component into [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// norm scales a raw quantity into [0, 1] against a reference scale.
func norm(x, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return clamp01(x / scale)
}
