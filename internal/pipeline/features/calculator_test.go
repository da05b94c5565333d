package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var snapshot = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

// seriesByDay builds the unitsByDay map for a fixed 30-day series ending at
// the snapshot date, values oldest first.
func seriesByDay(values []float64) map[time.Time]float64 {
	byDay := make(map[time.Time]float64, len(values))
	for i, v := range values {
		day := snapshot.AddDate(0, 0, -(len(values) - 1 - i))
		byDay[day] = v
	}
	return byDay
}

func TestCalculate_ExactTrailingMeans(t *testing.T) {
	// 1..30 units, one per day: trailing means are arithmetic.
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i + 1)
	}

	v := NewVelocityCalculator().Calculate(snapshot, seriesByDay(values))

	assert.InDelta(t, 27.0, v.V7, 1e-9)  // mean of 24..30
	assert.InDelta(t, 23.5, v.V14, 1e-9) // mean of 17..30
	assert.InDelta(t, 15.5, v.V30, 1e-9) // mean of 1..30
}

func TestCalculate_ZeroFillsMissingDays(t *testing.T) {
	// Sales only on the last 3 days; the rest of the window is zero.
	byDay := map[time.Time]float64{
		snapshot:                   6,
		snapshot.AddDate(0, 0, -1): 6,
		snapshot.AddDate(0, 0, -2): 9,
	}

	v := NewVelocityCalculator().Calculate(snapshot, byDay)

	assert.InDelta(t, 21.0/7, v.V7, 1e-9)
	assert.InDelta(t, 21.0/14, v.V14, 1e-9)
	assert.InDelta(t, 21.0/30, v.V30, 1e-9)
}

func TestCalculate_ConstantSeriesHasZeroVolatility(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 5
	}

	v := NewVelocityCalculator().Calculate(snapshot, seriesByDay(values))

	assert.InDelta(t, 5.0, v.V7, 1e-9)
	assert.InDelta(t, 5.0, v.V14, 1e-9)
	assert.InDelta(t, 5.0, v.V30, 1e-9)
	assert.InDelta(t, 0.0, v.Volatility, 1e-9)
}

func TestCalculate_VolatilityIsSampleStdDev(t *testing.T) {
	// Alternating 0/10 over 30 days: mean 5, sample variance 10*100/... use
	// the known closed form: sum of squared deviations = 30*25 = 750,
	// variance = 750/29.
	values := make([]float64, 30)
	for i := range values {
		if i%2 == 0 {
			values[i] = 10
		}
	}

	v := NewVelocityCalculator().Calculate(snapshot, seriesByDay(values))

	assert.InDelta(t, 5.0, v.V30, 1e-9)
	assert.InDelta(t, 5.085476277156078, v.Volatility, 1e-9) // sqrt(750/29)
}

func TestCalculate_IgnoresSalesOutsideWindow(t *testing.T) {
	byDay := map[time.Time]float64{
		snapshot:                    3,
		snapshot.AddDate(0, 0, -35): 1000, // outside the 30-day window
		snapshot.AddDate(0, 0, 1):   1000, // after the snapshot
	}

	v := NewVelocityCalculator().Calculate(snapshot, byDay)

	assert.InDelta(t, 3.0/30, v.V30, 1e-9)
}

func TestDay_TruncatesToUTCMidnight(t *testing.T) {
	ts := time.Date(2025, 6, 30, 17, 45, 12, 0, time.UTC)
	assert.Equal(t, snapshot, Day(ts))
}

func TestTrailingMean_ShortSeriesFallsBack(t *testing.T) {
	series := []float64{2, 4, 6}
	assert.InDelta(t, 4.0, trailingMean(series, 14), 1e-9)
	assert.InDelta(t, 0.0, trailingMean(nil, 7), 1e-9)
}

func TestSampleStdDev_SinglePointIsZero(t *testing.T) {
	assert.InDelta(t, 0.0, sampleStdDev([]float64{42}), 1e-9)
	assert.InDelta(t, 0.0, sampleStdDev(nil), 1e-9)
}
