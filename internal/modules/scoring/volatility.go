package scoring

import (
	"math"

	"github.com/aristath/octave/pkg/quant"
)

// DefaultVolatility is assumed when a return series is too short to
// estimate annualized volatility.
const DefaultVolatility = 0.25

// minReturnObservations is the minimum number of usable daily returns.
const minReturnObservations = 20

// Volatility annualizes the standard deviation of daily returns. Zero and
// NaN returns are dropped first; series with fewer than 20 usable
// observations fall back to the default.
func Volatility(returns []float64) float64 {
	if len(returns) < minReturnObservations {
		return DefaultVolatility
	}

	usable := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r != 0 && !math.IsNaN(r) {
			usable = append(usable, r)
		}
	}
	if len(usable) < minReturnObservations {
		return DefaultVolatility
	}

	return quant.AnnualizedVolatility(usable)
}
