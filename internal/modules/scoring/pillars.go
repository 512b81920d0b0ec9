package scoring

import (
	"github.com/aristath/octave/internal/domain"
)

// rung is one step of a descending threshold ladder. A value earns the
// rung's score by exceeding min, or by meeting it when the rung is not
// strict.
type rung struct {
	min    float64
	strict bool
	score  int
}

// floorLadder scores a value against rungs ordered from the highest bound
// down; values below every rung earn the fallback score.
type floorLadder struct {
	rungs    []rung
	fallback int
}

func (l floorLadder) score(value float64) int {
	for _, r := range l.rungs {
		if value > r.min || (!r.strict && value == r.min) {
			return r.score
		}
	}
	return l.fallback
}

// ceilingRung is one step of an ascending ladder: a value earns the score of
// the first rung whose max it does not exceed.
type ceilingRung struct {
	max   float64
	score int
}

type ceilingLadder struct {
	rungs    []ceilingRung
	fallback int
}

func (l ceilingLadder) score(value float64) int {
	for _, r := range l.rungs {
		if value <= r.max {
			return r.score
		}
	}
	return l.fallback
}

// Threshold ladders for the simple single-metric pillars. Elimination gates
// are applied by the pillar functions before the ladder is consulted.
var (
	moatLadder = floorLadder{
		rungs: []rung{
			{min: 0.40, score: 8},
			{min: 0.35, score: 7},
			{min: 0.30, score: 6},
			{min: 0.25, score: 5},
		},
		fallback: 4,
	}

	fortressLadder = ceilingLadder{
		rungs: []ceilingRung{
			{max: 0.5, score: 7},
			{max: 1.0, score: 6},
			{max: 1.5, score: 5},
		},
		fallback: 4,
	}

	engineLadder = floorLadder{
		rungs: []rung{
			{min: 0.30, strict: true, score: 8},
			{min: 0.25, score: 7},
			{min: 0.20, score: 6},
			{min: 0.15, score: 5},
		},
		fallback: 4,
	}

	efficiencyLadder = floorLadder{
		rungs: []rung{
			{min: 70, strict: true, score: 8},
			{min: 60, score: 7},
			{min: 50, score: 6},
			{min: 45, score: 5},
		},
		fallback: 4,
	}

	pricingPowerLadder = floorLadder{
		rungs: []rung{
			{min: 95, score: 8},
			{min: 90, score: 7},
			{min: 80, score: 6},
			{min: 70, score: 5},
		},
		fallback: 4,
	}

	cashGenerationLadder = floorLadder{
		rungs: []rung{
			{min: 0.30, strict: true, score: 8},
			{min: 0.25, score: 7},
			{min: 0.20, score: 6},
			{min: 0.15, score: 5},
		},
		fallback: 4,
	}
)

// PillarScorer scores the eight quality pillars. All thresholds are fixed;
// the zero-cost struct exists so runs hold an explicit scorer instance
// rather than reaching for package globals.
type PillarScorer struct{}

// NewPillarScorer creates a pillar scorer.
func NewPillarScorer() *PillarScorer {
	return &PillarScorer{}
}

// Moat scores return on invested capital. Below 20% eliminates.
func (s *PillarScorer) Moat(roic *float64) int {
	if roic == nil || *roic < 0.20 {
		return 0
	}
	return moatLadder.score(*roic)
}

// Fortress scores balance sheet strength via debt/EBITDA. A negative ratio
// means net cash and scores 8 outright; above 2.5x eliminates.
func (s *PillarScorer) Fortress(debtToEBITDA *float64) int {
	if debtToEBITDA == nil || *debtToEBITDA < 0 {
		return 8
	}
	if *debtToEBITDA > 2.5 {
		return 0
	}
	return fortressLadder.score(*debtToEBITDA)
}

// Engine scores three-year revenue CAGR. Below 10% eliminates.
func (s *PillarScorer) Engine(revenueCAGR *float64) int {
	if revenueCAGR == nil || *revenueCAGR < 0.10 {
		return 0
	}
	return engineLadder.score(*revenueCAGR)
}

// Efficiency scores the Rule of 40. Below 40 points eliminates.
func (s *PillarScorer) Efficiency(ruleOf40 *float64) int {
	if ruleOf40 == nil || *ruleOf40 < 40 {
		return 0
	}
	return efficiencyLadder.score(*ruleOf40)
}

// PricingPower scores the gross margin's percentile within its industry.
// Below the 60th percentile eliminates.
func (s *PillarScorer) PricingPower(percentile *float64) int {
	if percentile == nil || *percentile < 60 {
		return 0
	}
	return pricingPowerLadder.score(*percentile)
}

// CapitalAllocation scores return on equity qualified by buyback
// discipline. ROE below 15% eliminates. An unset buyback quality is treated
// as none.
func (s *PillarScorer) CapitalAllocation(roe *float64, buybacks domain.BuybackQuality) int {
	if roe == nil || *roe < 0.15 {
		return 0
	}
	switch {
	case *roe > 0.30 && buybacks == domain.BuybackDisciplined:
		return 8
	case *roe > 0.25 && (buybacks == domain.BuybackDisciplined || buybacks == domain.BuybackModerate):
		return 7
	case *roe > 0.20:
		return 6
	case *roe >= 0.15 && *roe <= 0.20:
		return 5
	}
	return 4
}

// CashGeneration scores free-cash-flow margin. Below 12% eliminates.
func (s *PillarScorer) CashGeneration(fcfMargin *float64) int {
	if fcfMargin == nil || *fcfMargin < 0.12 {
		return 0
	}
	return cashGenerationLadder.score(*fcfMargin)
}

// Durability scores competitive position from the market share trend and
// addressable-market growth. Losing share or a shrinking market eliminates.
// When either input is missing there is nothing to condemn, so the pillar
// defaults to the minimum passing score instead of eliminating. Trends other
// than gaining or losing fall on the stable ladder.
func (s *PillarScorer) Durability(trend domain.ShareTrend, tamGrowth *float64) int {
	if trend == "" || tamGrowth == nil {
		return 4
	}
	tam := *tamGrowth
	if trend == domain.TrendLosing || tam < 0 {
		return 0
	}
	if trend == domain.TrendGaining {
		switch {
		case tam > 0.20:
			return 8
		case tam >= 0.15:
			return 7
		case tam >= 0.10:
			return 5
		}
		return 4
	}
	switch {
	case tam > 0.20:
		return 6
	case tam >= 0.10:
		return 4
	}
	return 0
}

// Score computes all eight pillars for one security.
func (s *PillarScorer) Score(f domain.Fundamentals) PillarScores {
	return PillarScores{
		Moat:              s.Moat(f.ROIC),
		Fortress:          s.Fortress(f.DebtToEBITDA),
		Engine:            s.Engine(f.RevenueCAGR3Y),
		Efficiency:        s.Efficiency(f.RuleOf40),
		PricingPower:      s.PricingPower(f.GrossMarginPercentile),
		CapitalAllocation: s.CapitalAllocation(f.ROE, f.BuybackQuality),
		CashGeneration:    s.CashGeneration(f.FCFMargin),
		Durability:        s.Durability(f.MarketShareTrend, f.TAMGrowth),
	}
}
