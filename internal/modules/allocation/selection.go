package allocation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/octave/internal/modules/scoring"
)

// scoreBase is the score every selected security is measured against when
// converting totals into weight points.
const scoreBase = 30

// weightChangeDeadBand suppresses weight-change noise when diffing two
// allocations.
const weightChangeDeadBand = 0.03

// SelectTopN picks the n highest-ranking securities that survived
// elimination and reached minTotal. Ordering is total score first, then the
// tie-break chain: higher worst pillar, higher median pillar, lower
// price/FCF multiple, higher absolute FCF. Fewer than n qualifying
// securities is a valid outcome; callers report it, they do not fail.
func SelectTopN(scored []ScoredSecurity, n, minTotal int) []ScoredSecurity {
	qualified := make([]ScoredSecurity, 0, len(scored))
	for _, s := range scored {
		if s.Result.Eliminated || s.Result.Total < minTotal {
			continue
		}
		qualified = append(qualified, s)
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		a, b := qualified[i].Result, qualified[j].Result
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.TieBreakers.LowestPillar != b.TieBreakers.LowestPillar {
			return a.TieBreakers.LowestPillar > b.TieBreakers.LowestPillar
		}
		if a.TieBreakers.MedianPillar != b.TieBreakers.MedianPillar {
			return a.TieBreakers.MedianPillar > b.TieBreakers.MedianPillar
		}
		if a.TieBreakers.PFCF != b.TieBreakers.PFCF {
			return a.TieBreakers.PFCF < b.TieBreakers.PFCF
		}
		return a.TieBreakers.FCFAbsolute > b.TieBreakers.FCFAbsolute
	})

	if len(qualified) > n {
		qualified = qualified[:n]
	}
	return qualified
}

// CalculateWeights converts selection totals into weights via score surplus
// over the base: points = max(total-30, 1), weight = points / sum. The
// floor of one point keeps boundary securities investable. Should the point
// sum ever come out zero, selection falls back to equal weights.
func CalculateWeights(selected []ScoredSecurity) map[string]float64 {
	weights := make(map[string]float64, len(selected))
	if len(selected) == 0 {
		return weights
	}

	totalPoints := 0
	points := make(map[string]int, len(selected))
	for _, s := range selected {
		p := s.Result.Total - scoreBase
		if p < 1 {
			p = 1
		}
		points[s.Security.Ticker] = p
		totalPoints += p
	}

	if totalPoints == 0 {
		equal := 1.0 / float64(len(selected))
		for _, s := range selected {
			weights[s.Security.Ticker] = equal
		}
		return weights
	}

	for ticker, p := range points {
		weights[ticker] = float64(p) / float64(totalPoints)
	}

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance && sum > 0 {
		for ticker := range weights {
			weights[ticker] /= sum
		}
	}

	return weights
}

// BuildAllocation zips selection order, weights and per-security snapshots
// into an immutable allocation. Rank follows selection order, 1-based.
func BuildAllocation(selected []ScoredSecurity, weights map[string]float64, runAt time.Time) Allocation {
	positions := make([]Position, 0, len(selected))
	for i, s := range selected {
		name := s.Security.Name
		if name == "" {
			name = s.Security.Ticker
		}
		sector := s.Security.Sector
		if sector == "" {
			sector = "Unknown"
		}
		industry := s.Security.Industry
		if industry == "" {
			industry = "Unknown"
		}

		positions = append(positions, Position{
			Rank:            i + 1,
			Ticker:          s.Security.Ticker,
			Name:            name,
			Sector:          sector,
			Industry:        industry,
			Weight:          weights[s.Security.Ticker],
			TotalScore:      s.Result.Total,
			PointsAboveBase: s.Result.Total - scoreBase,
			PillarScores:    s.Result.Pillars,
			Fundamentals: FundamentalsSnapshot{
				ROIC:             s.Fundamentals.ROIC,
				DebtToEBITDA:     s.Fundamentals.DebtToEBITDA,
				RevenueCAGR3Y:    s.Fundamentals.RevenueCAGR3Y,
				RuleOf40:         s.Fundamentals.RuleOf40,
				GrossMarginPct:   s.Fundamentals.GrossMarginPct,
				ROE:              s.Fundamentals.ROE,
				FCFMargin:        s.Fundamentals.FCFMargin,
				MarketShareTrend: s.Fundamentals.MarketShareTrend,
				TAMGrowth:        s.Fundamentals.TAMGrowth,
			},
			TieBreakers: s.Result.TieBreakers,
		})
	}

	return Allocation{RunAt: runAt, Positions: positions}
}

// Validate checks the portfolio invariants: position count, weight sum,
// minimum totals and the absence of zero pillars. Violations are reported
// as issues, never as errors; an undersized portfolio from a thin universe
// is legitimate.
func Validate(alloc Allocation, n, minTotal int) (bool, []string) {
	var issues []string

	if len(alloc.Positions) != n {
		if len(alloc.Positions) < n {
			issues = append(issues, fmt.Sprintf("portfolio has only %d positions (insufficient qualified securities)", len(alloc.Positions)))
		} else {
			issues = append(issues, fmt.Sprintf("portfolio has %d positions, should have exactly %d", len(alloc.Positions), n))
		}
	}

	totalWeight := 0.0
	for _, p := range alloc.Positions {
		totalWeight += p.Weight
	}
	if len(alloc.Positions) > 0 && math.Abs(totalWeight-1.0) > weightSumTolerance {
		issues = append(issues, fmt.Sprintf("weights sum to %.4f, not 1.0", totalWeight))
	}

	for _, p := range alloc.Positions {
		if p.TotalScore < minTotal {
			issues = append(issues, fmt.Sprintf("%s has score %d below minimum %d", p.Ticker, p.TotalScore, minTotal))
		}
	}

	for _, p := range alloc.Positions {
		for i, v := range p.PillarScores.Values() {
			if v == 0 {
				issues = append(issues, fmt.Sprintf("%s has 0 score in %s", p.Ticker, scoring.PillarNames[i]))
			}
		}
	}

	return len(issues) == 0, issues
}

// Compare diffs two allocations: tickers entering, tickers leaving, and
// held tickers whose weight moved more than the dead-band.
func Compare(oldAlloc, newAlloc Allocation) ChangeSet {
	oldByTicker := make(map[string]Position, len(oldAlloc.Positions))
	for _, p := range oldAlloc.Positions {
		oldByTicker[p.Ticker] = p
	}
	newByTicker := make(map[string]Position, len(newAlloc.Positions))
	for _, p := range newAlloc.Positions {
		newByTicker[p.Ticker] = p
	}

	changes := ChangeSet{
		Additions:     []PositionChange{},
		Removals:      []PositionChange{},
		WeightChanges: []WeightChange{},
	}

	for _, p := range newAlloc.Positions {
		if _, held := oldByTicker[p.Ticker]; !held {
			changes.Additions = append(changes.Additions, PositionChange{
				Ticker: p.Ticker,
				Weight: p.Weight,
				Score:  p.TotalScore,
			})
		}
	}

	for _, p := range oldAlloc.Positions {
		if _, held := newByTicker[p.Ticker]; !held {
			changes.Removals = append(changes.Removals, PositionChange{
				Ticker: p.Ticker,
				Weight: p.Weight,
				Score:  p.TotalScore,
			})
		}
	}

	for _, oldPos := range oldAlloc.Positions {
		newPos, held := newByTicker[oldPos.Ticker]
		if !held {
			continue
		}
		diff := newPos.Weight - oldPos.Weight
		if math.Abs(diff) > weightChangeDeadBand {
			changes.WeightChanges = append(changes.WeightChanges, WeightChange{
				Ticker:    oldPos.Ticker,
				OldWeight: oldPos.Weight,
				NewWeight: newPos.Weight,
				Change:    diff,
				OldScore:  oldPos.TotalScore,
				NewScore:  newPos.TotalScore,
			})
		}
	}

	changes.TotalChanges = len(changes.Additions) + len(changes.Removals) + len(changes.WeightChanges)
	return changes
}
