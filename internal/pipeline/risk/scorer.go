package risk

import (
	"math"
	"time"
)

// Score weighting: at-risk ratio dominates, urgency second, value third.
const (
	ratioWeight   = 0.50
	urgencyWeight = 0.35
	valueWeight   = 0.15

	// expiredScoreFloor is the minimum score for an already-expired batch
	// that still has unsellable units on hand.
	expiredScoreFloor = 95.0

	// valueNormalization scales at-risk value into the 0-1 value factor.
	valueNormalization = 1000.0
)

// Input is everything the scorer needs for one batch.
type Input struct {
	OnHandQty    float64
	ExpiryDate   time.Time
	SnapshotDate time.Time
	V14          float64
	UnitCost     float64
}

// Score is the computed expiry risk of one batch.
type Score struct {
	DaysToExpiry  int
	ExpectedSales float64
	AtRiskUnits   float64
	AtRiskValue   float64
	RiskScore     float64
}

// ScoreBatch computes the composite 0-100 risk score for a batch.
//
// Expected sales to expiry come from the 14-day velocity; whatever cannot
// sell in time is at risk. Urgency rises as expiry approaches and saturates
// for expired stock, which is additionally floored at 95 when units remain.
func ScoreBatch(in Input) Score {
	days := daysBetween(in.SnapshotDate, in.ExpiryDate)

	expectedSales := math.Max(0, in.V14*float64(days))
	atRiskUnits := math.Max(0, in.OnHandQty-expectedSales)
	atRiskValue := atRiskUnits * in.UnitCost

	atRiskRatio := 0.0
	if in.OnHandQty > 0 {
		atRiskRatio = atRiskUnits / in.OnHandQty
	}

	score := 100 * (ratioWeight*atRiskRatio + urgencyWeight*urgencyFactor(days) + valueWeight*valueFactor(atRiskValue))

	if days <= 0 && atRiskUnits > 0 {
		score = math.Max(score, expiredScoreFloor)
	}

	score = math.Min(100, math.Max(0, score))
	score = math.Round(score*10) / 10

	return Score{
		DaysToExpiry:  days,
		ExpectedSales: expectedSales,
		AtRiskUnits:   atRiskUnits,
		AtRiskValue:   atRiskValue,
		RiskScore:     score,
	}
}

// urgencyFactor maps days-to-expiry into [0.1, 1.0]: 1.0 at or past expiry,
// steep within a week, gentle out to 30 days, then a slow tail.
func urgencyFactor(days int) float64 {
	d := float64(days)
	switch {
	case days <= 0:
		return 1.0
	case days <= 7:
		return 0.9 + 0.1*(7-d)/7
	case days <= 30:
		return 0.3 + 0.6*(30-d)/23
	default:
		return math.Max(0.1, 0.3*(60-d)/30)
	}
}

// valueFactor normalizes at-risk value into [0, 1] with square-root
// damping so very large batches do not drown out urgency.
func valueFactor(atRiskValue float64) float64 {
	if atRiskValue <= 0 {
		return 0
	}
	return math.Min(1.0, math.Sqrt(atRiskValue/valueNormalization))
}

// daysBetween is the signed whole-day difference from one calendar day to
// another; negative means already past.
func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}
