// Package quant provides the shared numeric helpers used by the scoring and
// allocation engines: descriptive statistics, return series, and annualized
// volatility.
package quant

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Median calculates the median of a slice of float64 values.
// For an even number of values it averages the two middle elements.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Clamp bounds value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// DailyReturns converts a close-price series into simple daily returns
// using a 1-period rate of change.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}

	// talib pads the first period with zeros; skip it
	roc := talib.Roc(closes, 1)
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(roc); i++ {
		returns = append(returns, roc[i]/100)
	}
	return returns
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(252)
}
