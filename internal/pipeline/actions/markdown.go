// internal/pipeline/actions/markdown.go
package actions

import (
	"fmt"
	"math"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/pipeline/pricing"
)

const (
	// Discount composition weights: urgency dominates, then risk, then slow
	// velocity.
	discountUrgencyWeight  = 0.4
	discountRiskWeight     = 0.3
	discountVelocityWeight = 0.2

	// Each 10% of discount is assumed to lift sell-through by 25%.
	discountElasticity = 2.5

	// timeFactorHorizonDays: with two weeks or more left a markdown has full
	// time to clear; shorter windows scale the clearance down linearly.
	timeFactorHorizonDays = 14.0

	minVolatilityAdjustment = 0.5
)

// generateMarkdowns proposes price cuts sized to clear at-risk stock before
// expiry while still beating the cost of writing it off.
func (e *Engine) generateMarkdowns(
	candidates []domain.BatchRisk,
	velocity map[domain.StoreSKU]domain.FeatureRecord,
	resolver *pricing.Resolver,
) []Recommendation {
	var out []Recommendation
	for _, c := range candidates {
		if c.RiskScore < e.cfg.MarkdownMinScore || c.AtRiskUnits <= 0 {
			continue
		}

		feat := velocity[domain.StoreSKU{StoreID: c.StoreID, SKUID: c.SKUID}]
		unitCost := resolver.Resolve(c.StoreID, c.SKUID).Cost
		price := resolver.ResolvePrice(c.StoreID, c.SKUID)

		discount := optimalDiscount(c.DaysToExpiry, c.RiskScore, feat.V14, e.cfg.MaxDiscount)
		clearanceRate := expectedClearanceRate(discount, feat.V14, feat.Volatility, c.DaysToExpiry)

		unitsToClear := math.Min(c.AtRiskUnits, c.AtRiskUnits*clearanceRate)
		discountedPrice := price * (1 - discount)
		savings := unitsToClear*(discountedPrice-unitCost) - (c.AtRiskUnits-unitsToClear)*unitCost
		if savings <= 0 {
			continue
		}

		disc := discount
		out = append(out, Recommendation{
			ActionType:       domain.ActionMarkdown,
			FromStore:        c.StoreID,
			SKUID:            c.SKUID,
			BatchID:          c.BatchID,
			Qty:              unitsToClear,
			DiscountPct:      &disc,
			ExpectedSavings:  savings,
			FeasibilityScore: clearanceRate,
			Details: fmt.Sprintf(
				"%.0f%% markdown, expect to clear %.0f of %.0f at-risk units in %d days",
				discount*100, unitsToClear, c.AtRiskUnits, c.DaysToExpiry,
			),
		})
	}

	return out
}

// optimalDiscount sizes the price cut from urgency, risk and velocity, capped
// at the configured maximum.
func optimalDiscount(daysToExpiry int, riskScore, v14, maxDiscount float64) float64 {
	urgency := discountUrgencyWeight * math.Max(0, (30-float64(daysToExpiry))/30)
	risk := discountRiskWeight * riskScore / 100
	slowness := discountVelocityWeight * math.Max(0, (5-v14)/5)

	discount := urgency + risk + slowness
	if discount > maxDiscount {
		discount = maxDiscount
	}
	return math.Max(0, discount)
}

// expectedClearanceRate estimates the share of at-risk units a discount will
// clear before expiry. Volatile demand and short windows both pull it down;
// an already-expired batch clears nothing.
func expectedClearanceRate(discount, v14, volatility float64, daysToExpiry int) float64 {
	volAdjustment := 1 - volatility/(v14+1)
	if volAdjustment < minVolatilityAdjustment {
		volAdjustment = minVolatilityAdjustment
	}
	if volAdjustment > 1 {
		volAdjustment = 1
	}

	timeFactor := clamp01(float64(daysToExpiry) / timeFactorHorizonDays)

	return math.Min(1, (1+discountElasticity*discount)*volAdjustment*timeFactor)
}
