package features

import (
	"math"
	"time"
)

// WindowDays is the sales-history window the velocity features are computed
// over.
const WindowDays = 30

// Velocity holds the rolling velocity features for one store-SKU.
type Velocity struct {
	V7         float64
	V14        float64
	V30        float64
	Volatility float64
}

// VelocityCalculator turns raw per-day sales into rolling velocity features.
type VelocityCalculator struct {
	windowDays int
}

func NewVelocityCalculator() *VelocityCalculator {
	return &VelocityCalculator{windowDays: WindowDays}
}

// Calculate reindexes the sparse per-day sales onto a dense daily series
// ending at snapshotDate, zero-filling missing days, and computes the
// trailing means and volatility.
//
// unitsByDay is keyed by day truncated to midnight UTC. Days outside the
// window are ignored.
func (c *VelocityCalculator) Calculate(snapshotDate time.Time, unitsByDay map[time.Time]float64) Velocity {
	series := c.DenseSeries(snapshotDate, unitsByDay)

	return Velocity{
		V7:         trailingMean(series, 7),
		V14:        trailingMean(series, 14),
		V30:        trailingMean(series, 30),
		Volatility: sampleStdDev(series),
	}
}

// DenseSeries returns the zero-filled daily units over the window, oldest
// day first, ending at snapshotDate.
func (c *VelocityCalculator) DenseSeries(snapshotDate time.Time, unitsByDay map[time.Time]float64) []float64 {
	day := Day(snapshotDate)
	series := make([]float64, c.windowDays)
	for i := 0; i < c.windowDays; i++ {
		d := day.AddDate(0, 0, -(c.windowDays - 1 - i))
		series[i] = unitsByDay[d]
	}
	return series
}

// Day truncates a timestamp to its UTC calendar day. All series indexing
// goes through this so sparse input keys and window days line up.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// trailingMean averages the last n points, falling back to the mean of the
// whole series when fewer points exist.
func trailingMean(series []float64, n int) float64 {
	if len(series) == 0 {
		return 0
	}
	if n > len(series) {
		n = len(series)
	}

	sum := 0.0
	for _, v := range series[len(series)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// sampleStdDev is the sample standard deviation of the series, 0 when there
// is at most one point.
func sampleStdDev(series []float64) float64 {
	if len(series) <= 1 {
		return 0
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	sumSq := 0.0
	for _, v := range series {
		d := v - mean
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(series)-1))
}
