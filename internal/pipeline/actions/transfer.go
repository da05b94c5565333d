// internal/pipeline/actions/transfer.go
package actions

import (
	"fmt"
	"sort"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/pipeline/pricing"
)

const (
	// minVelocityGain: a destination store must sell the SKU at least this
	// much faster than the source to be worth the truck.
	minVelocityGain = 1.2

	transferBaseUnitCost = 2.0
	crossRegionFactor    = 1.5

	// fixedCapacityScore stands in for a capacity model we do not have;
	// destination stores are assumed to absorb transfers most of the time.
	fixedCapacityScore = 0.8

	minTransferFeasibility = 0.3
	maxTransfersPerBatch   = 3

	// Normalization scales for the feasibility components: a 5 units/day
	// velocity gap or a 3x benefit-to-cost ratio saturates its component.
	velocityGainScale = 5.0
	benefitCostScale  = 3.0
)

// generateTransfers proposes moving at-risk stock to stores that sell the
// same SKU materially faster. At most maxTransfersPerBatch destinations are
// kept per source batch, best savings first.
func (e *Engine) generateTransfers(
	candidates []domain.BatchRisk,
	velocity map[domain.StoreSKU]domain.FeatureRecord,
	stores map[int64]domain.StoreInfo,
	resolver *pricing.Resolver,
) []Recommendation {
	// Index velocity rows by SKU so each source batch scans only its own SKU.
	bySKU := make(map[string][]domain.FeatureRecord)
	for _, f := range velocity {
		bySKU[f.SKUID] = append(bySKU[f.SKUID], f)
	}

	var out []Recommendation
	for _, c := range candidates {
		if c.RiskScore < e.cfg.TransferMinScore || c.AtRiskUnits <= 0 {
			continue
		}

		srcV14 := velocity[domain.StoreSKU{StoreID: c.StoreID, SKUID: c.SKUID}].V14
		srcRegion := stores[c.StoreID].Region
		unitCost := resolver.Resolve(c.StoreID, c.SKUID).Cost

		var batchRecs []Recommendation
		for _, dest := range bySKU[c.SKUID] {
			if dest.StoreID == c.StoreID {
				continue
			}
			if dest.V14 <= 0 || dest.V14 < minVelocityGain*srcV14 {
				continue
			}

			qty := c.AtRiskUnits
			distanceFactor := 1.0
			destRegion := stores[dest.StoreID].Region
			if destRegion != srcRegion {
				distanceFactor = crossRegionFactor
			}

			transferCost := qty * transferBaseUnitCost * distanceFactor
			savings := c.AtRiskUnits*unitCost - transferCost
			if savings <= 0 {
				continue
			}

			feasibility := 0.4*norm(dest.V14-srcV14, velocityGainScale) +
				0.4*norm(savings/transferCost, benefitCostScale) +
				0.2*fixedCapacityScore
			if feasibility <= minTransferFeasibility {
				continue
			}

			toStore := dest.StoreID
			batchRecs = append(batchRecs, Recommendation{
				ActionType:       domain.ActionTransfer,
				FromStore:        c.StoreID,
				ToStore:          &toStore,
				SKUID:            c.SKUID,
				BatchID:          c.BatchID,
				Qty:              qty,
				ExpectedSavings:  savings,
				FeasibilityScore: feasibility,
				Details: fmt.Sprintf(
					"transfer %.0f units to store %d (v14 %.2f vs %.2f, transfer cost %.2f)",
					qty, dest.StoreID, dest.V14, srcV14, transferCost,
				),
			})
		}

		sort.SliceStable(batchRecs, func(i, j int) bool {
			if batchRecs[i].ExpectedSavings != batchRecs[j].ExpectedSavings {
				return batchRecs[i].ExpectedSavings > batchRecs[j].ExpectedSavings
			}
			return batchRecs[i].FeasibilityScore > batchRecs[j].FeasibilityScore
		})
		if len(batchRecs) > maxTransfersPerBatch {
			batchRecs = batchRecs[:maxTransfersPerBatch]
		}
		out = append(out, batchRecs...)
	}

	return out
}
