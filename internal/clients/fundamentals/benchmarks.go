package fundamentals

// marginBenchmark holds gross margin percentile breakpoints for one sector.
type marginBenchmark struct {
	P90 float64
	P75 float64
	P50 float64
	P25 float64
}

var sectorMarginBenchmarks = map[string]marginBenchmark{
	"Technology":             {P90: 70, P75: 60, P50: 45, P25: 30},
	"Consumer Discretionary": {P90: 50, P75: 40, P50: 30, P25: 20},
	"Healthcare":             {P90: 70, P75: 60, P50: 50, P25: 40},
	"Financials":             {P90: 80, P75: 70, P50: 60, P25: 50},
	"Communication Services": {P90: 60, P75: 50, P50: 40, P25: 30},
	"Consumer Staples":       {P90: 40, P75: 35, P50: 30, P25: 25},
	"Industrials":            {P90: 35, P75: 30, P50: 25, P25: 20},
	"Materials":              {P90: 35, P75: 30, P50: 25, P25: 20},
	"Energy":                 {P90: 40, P75: 35, P50: 30, P25: 25},
	"Real Estate":            {P90: 70, P75: 60, P50: 50, P25: 40},
	"Utilities":              {P90: 45, P75: 40, P50: 35, P25: 30},
}

var defaultMarginBenchmark = marginBenchmark{P90: 50, P75: 40, P50: 30, P25: 20}

// grossMarginPercentile places a gross margin within its sector's
// distribution, interpolating linearly between breakpoints.
func grossMarginPercentile(sector string, grossMargin float64) float64 {
	b, ok := sectorMarginBenchmarks[sector]
	if !ok {
		b = defaultMarginBenchmark
	}

	switch {
	case grossMargin >= b.P90:
		return 95
	case grossMargin >= b.P75:
		return 80 + (grossMargin-b.P75)/(b.P90-b.P75)*15
	case grossMargin >= b.P50:
		return 50 + (grossMargin-b.P50)/(b.P75-b.P50)*30
	case grossMargin >= b.P25:
		return 25 + (grossMargin-b.P25)/(b.P50-b.P25)*25
	default:
		p := 25 * (grossMargin / b.P25)
		if p < 0 {
			return 0
		}
		return p
	}
}

var tamGrowthBySector = map[string]float64{
	"Technology":             0.15,
	"Healthcare":             0.12,
	"Communication Services": 0.10,
	"Consumer Discretionary": 0.08,
	"Financials":             0.07,
	"Industrials":            0.06,
	"Consumer Staples":       0.05,
	"Real Estate":            0.05,
	"Materials":              0.04,
	"Energy":                 0.03,
	"Utilities":              0.03,
}

const defaultTAMGrowth = 0.06

// tamGrowthBase returns the estimated addressable-market growth rate for a
// sector before per-ticker adjustment.
func tamGrowthBase(sector string) float64 {
	if g, ok := tamGrowthBySector[sector]; ok {
		return g
	}
	return defaultTAMGrowth
}
