package scoring

import (
	"math"

	"github.com/aristath/octave/internal/domain"
	"github.com/aristath/octave/pkg/quant"
)

// ContinuousScorer blends business economics and pricing power into a 0-100
// quality score. It is an immutable configuration holder; construct once and
// share freely.
type ContinuousScorer struct {
	economicsWeight    float64
	pricingPowerWeight float64
}

// NewContinuousScorer creates a scorer with the standard 60/40 blend.
func NewContinuousScorer() *ContinuousScorer {
	return &ContinuousScorer{
		economicsWeight:    0.6,
		pricingPowerWeight: 0.4,
	}
}

// EconomicsScore averages normalized ROIC, FCF margin and revenue growth,
// then applies a flat 20-point penalty when free cash flow is negative.
// Missing metrics contribute their floor score rather than failing.
func (s *ContinuousScorer) EconomicsScore(f domain.Fundamentals) float64 {
	roicPct := 0.0
	if f.ROIC != nil {
		roicPct = *f.ROIC * 100
	}
	fcfMarginPct := 0.0
	if f.FCFMargin != nil {
		fcfMarginPct = *f.FCFMargin * 100
	}
	growthPct := 0.0
	if f.RevenueGrowthPct != nil {
		growthPct = *f.RevenueGrowthPct
	}

	components := []float64{
		Normalize(roicPct, 0, 30, 0, 100),
		Normalize(fcfMarginPct, 0, 25, 0, 100),
		Normalize(growthPct, -10, 30, 0, 100),
	}
	score := quant.Mean(components)

	if f.FCF != nil && *f.FCF < 0 {
		score = math.Max(0, score-20)
	}
	return score
}

// PricingPowerScore averages a gross-margin level score, a growth score
// whose mapping depends on the margin/growth regime, and, when at least
// three periods of margin history exist, a stability term that rewards low
// margin variance.
func (s *ContinuousScorer) PricingPowerScore(f domain.Fundamentals) float64 {
	grossMargin := 0.0
	if f.GrossMarginPct != nil {
		grossMargin = *f.GrossMarginPct
	}
	growthPct := 0.0
	if f.RevenueGrowthPct != nil {
		growthPct = *f.RevenueGrowthPct
	}

	terms := []float64{Normalize(grossMargin, 20, 60, 0, 100)}

	// Positive growth on top of healthy margins reads as pricing power;
	// otherwise growth is scored on a weaker scale.
	if grossMargin > 30 && growthPct > 0 {
		terms = append(terms, Normalize(growthPct, 0, 20, 50, 100))
	} else {
		terms = append(terms, Normalize(growthPct, -10, 10, 0, 50))
	}

	if len(f.HistoricalMarginsPct) > 2 {
		stability := 100 - math.Min(quant.StdDev(f.HistoricalMarginsPct)*10, 50)
		terms = append(terms, stability)
	}

	return quant.Mean(terms)
}

// FinalScore blends the two component scores, clamped to [0,100].
func (s *ContinuousScorer) FinalScore(economics, pricingPower float64) float64 {
	final := s.economicsWeight*economics + s.pricingPowerWeight*pricingPower
	return quant.Clamp(final, 0, 100)
}

// Score computes all three scores for one security.
func (s *ContinuousScorer) Score(f domain.Fundamentals) ContinuousScores {
	economics := s.EconomicsScore(f)
	pricingPower := s.PricingPowerScore(f)
	return ContinuousScores{
		Economics:    economics,
		PricingPower: pricingPower,
		Final:        s.FinalScore(economics, pricingPower),
	}
}
