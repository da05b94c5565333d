// internal/pipeline/actions/liquidation.go
package actions

import (
	"fmt"
	"math"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/pipeline/pricing"
)

const (
	liquidationFixedCost   = 50.0
	liquidationPerUnitCost = 1.0

	defaultRecoveryBaseRate = 0.20
	minRecoveryRate         = 0.1

	// A 40% recovery rate (the best category base rate) counts as fully
	// feasible.
	recoveryFeasibilityScale = 0.4
)

// categoryRecoveryRates is the share of at-risk value a liquidator typically
// pays per category. Shelf-stable categories recover more.
var categoryRecoveryRates = map[string]float64{
	"produce": 0.15,
	"bakery":  0.18,
	"dairy":   0.25,
	"meat":    0.30,
	"seafood": 0.35,
	"frozen":  0.40,
}

// categoryCostMultipliers scales the per-unit handling cost; cold-chain
// categories cost more to move out.
var categoryCostMultipliers = map[string]float64{
	"produce": 1.0,
	"bakery":  1.0,
	"dairy":   1.2,
	"meat":    1.3,
	"seafood": 1.5,
	"frozen":  1.4,
}

// generateLiquidations proposes selling near-expiry high-risk batches to a
// liquidator. Only batches both urgent and severe qualify; the recovery must
// clear the handling cost with a meaningful rate.
func (e *Engine) generateLiquidations(
	candidates []domain.BatchRisk,
	skus map[string]domain.SKUInfo,
	resolver *pricing.Resolver,
) []Recommendation {
	var out []Recommendation
	for _, c := range candidates {
		if c.RiskScore < e.cfg.LiquidationMinScore || c.DaysToExpiry > e.cfg.LiquidationMaxDays || c.AtRiskUnits <= 0 {
			continue
		}

		category := skus[c.SKUID].Category
		recoveryRate := liquidationRecoveryRate(category, c.DaysToExpiry, c.RiskScore)
		if recoveryRate <= minRecoveryRate {
			continue
		}

		qty := c.AtRiskUnits
		costMult, ok := categoryCostMultipliers[category]
		if !ok {
			costMult = 1.0
		}
		liquidationCost := liquidationFixedCost + qty*liquidationPerUnitCost*costMult

		unitCost := resolver.Resolve(c.StoreID, c.SKUID).Cost
		savings := c.AtRiskUnits*unitCost*recoveryRate - liquidationCost
		if savings <= 0 {
			continue
		}

		out = append(out, Recommendation{
			ActionType:       domain.ActionLiquidate,
			FromStore:        c.StoreID,
			SKUID:            c.SKUID,
			BatchID:          c.BatchID,
			Qty:              qty,
			ExpectedSavings:  savings,
			FeasibilityScore: math.Min(1, recoveryRate/recoveryFeasibilityScale),
			Details: fmt.Sprintf(
				"liquidate %.0f units (%s, recovery %.0f%%, handling cost %.2f)",
				qty, category, recoveryRate*100, liquidationCost,
			),
		})
	}

	return out
}

// liquidationRecoveryRate discounts the category base rate for time pressure
// and for how distressed the batch already is.
func liquidationRecoveryRate(category string, daysToExpiry int, riskScore float64) float64 {
	baseRate, ok := categoryRecoveryRates[category]
	if !ok {
		baseRate = defaultRecoveryBaseRate
	}

	timeFactor := math.Max(0.5, float64(daysToExpiry)/30)
	riskFactor := math.Max(0.5, (100-riskScore)/100)

	return baseRate * timeFactor * riskFactor
}
