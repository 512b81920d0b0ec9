package allocation

import (
	"math"
)

// rawWeightScale keeps raw score/volatility ratios in a numerically
// comfortable range before normalization.
const rawWeightScale = 10000

// fallbackVolatility substitutes for missing or degenerate volatility
// inputs.
const fallbackVolatility = 0.25

// ContinuousAllocator converts continuous quality scores and annualized
// volatilities into capped, normalized portfolio weights.
type ContinuousAllocator struct {
	maxPositionSize float64
	alpha           float64
}

// NewContinuousAllocator creates an allocator. alpha is the score exponent;
// maxPositionSize caps any single weight when the cap is feasible.
func NewContinuousAllocator(maxPositionSize, alpha float64) *ContinuousAllocator {
	return &ContinuousAllocator{
		maxPositionSize: maxPositionSize,
		alpha:           alpha,
	}
}

// OptimizeWeights computes a weight per ticker scoring at least minScore.
// Raw weights follow score^alpha / volatility; weights are normalized, then
// capped and renormalized in a single extra pass. The single pass can leave
// capped weights slightly above the cap again; the approximation is
// accepted rather than iterated to a fixed point. When the cap cannot be
// satisfied at all (fewer positions than 1/cap) it is skipped entirely so
// weights stay proportional to score and inverse volatility. An empty
// result means nothing qualified, not an error.
func (a *ContinuousAllocator) OptimizeWeights(scores, volatilities map[string]float64, minScore float64) map[string]float64 {
	raw := make(map[string]float64)
	for ticker, score := range scores {
		if score < minScore {
			continue
		}
		volatility, ok := volatilities[ticker]
		if !ok || volatility < 0.01 {
			volatility = fallbackVolatility
		}
		raw[ticker] = math.Pow(score, a.alpha) / (volatility * rawWeightScale)
	}
	if len(raw) == 0 {
		return map[string]float64{}
	}

	total := 0.0
	for _, w := range raw {
		total += w
	}
	if total <= 0 {
		return map[string]float64{}
	}

	weights := make(map[string]float64, len(raw))
	for ticker, w := range raw {
		weights[ticker] = w / total
	}

	if float64(len(weights))*a.maxPositionSize < 1 {
		return weights
	}

	capped := false
	cappedTotal := 0.0
	for ticker, w := range weights {
		if w > a.maxPositionSize {
			weights[ticker] = a.maxPositionSize
			capped = true
		}
		cappedTotal += weights[ticker]
	}
	if capped && cappedTotal > 0 {
		for ticker := range weights {
			weights[ticker] /= cappedTotal
		}
	}

	return weights
}

// CalculateMetrics summarizes an allocation. Missing volatilities default
// like they do in OptimizeWeights; an empty allocation yields zero metrics.
func (a *ContinuousAllocator) CalculateMetrics(weights, scores, volatilities map[string]float64) PortfolioMetrics {
	if len(weights) == 0 {
		return PortfolioMetrics{}
	}

	variance := 0.0
	weightedScore := 0.0
	concentration := 0.0
	for ticker, weight := range weights {
		volatility, ok := volatilities[ticker]
		if !ok {
			volatility = fallbackVolatility
		}
		variance += weight * weight * volatility * volatility
		weightedScore += weight * scores[ticker]
		concentration += weight * weight
	}

	return PortfolioMetrics{
		PortfolioVolatility: math.Sqrt(variance),
		WeightedScore:       weightedScore,
		Concentration:       concentration,
		NumPositions:        len(weights),
	}
}

// ApplyConstraints scales down any sector whose summed weight exceeds its
// limit, then renormalizes the whole allocation. Limits are soft: the
// renormalization redistributes mass back, so a binding sector ends up near
// its limit rather than hard-truncated at it. Nil or empty limits leave the
// input untouched.
func (a *ContinuousAllocator) ApplyConstraints(weights map[string]float64, sectorMap map[string]string, sectorLimits map[string]float64) map[string]float64 {
	if len(sectorLimits) == 0 {
		return weights
	}

	sectorTotals := make(map[string]float64)
	for ticker, weight := range weights {
		sector, ok := sectorMap[ticker]
		if !ok {
			sector = "Unknown"
		}
		sectorTotals[sector] += weight
	}

	adjusted := make(map[string]float64, len(weights))
	for ticker, weight := range weights {
		adjusted[ticker] = weight
	}

	for sector, limit := range sectorLimits {
		sectorTotal, ok := sectorTotals[sector]
		if !ok || sectorTotal <= limit {
			continue
		}
		scale := limit / sectorTotal
		for ticker, weight := range weights {
			if sectorMap[ticker] == sector {
				adjusted[ticker] = weight * scale
			}
		}
	}

	total := 0.0
	for _, weight := range adjusted {
		total += weight
	}
	if total > 0 {
		for ticker := range adjusted {
			adjusted[ticker] /= total
		}
	}

	return adjusted
}
