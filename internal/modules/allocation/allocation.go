// Package allocation converts scoring output into portfolio weights. The
// continuous allocator weights by score and volatility under a position
// cap; the pillar allocator selects a fixed-size portfolio and weights by
// score surplus. All functions are pure: they never touch storage and hold
// no state between calls.
package allocation

import (
	"time"

	"github.com/aristath/octave/internal/domain"
	"github.com/aristath/octave/internal/modules/scoring"
)

// weightSumTolerance is the allowed deviation of a weight sum from 1.0.
const weightSumTolerance = 1e-3

// ScoredSecurity pairs a security and its fundamentals with the
// pillar-engine result computed from them.
type ScoredSecurity struct {
	Security     domain.Security      `json:"security"`
	Fundamentals domain.Fundamentals  `json:"fundamentals"`
	Result       scoring.PillarResult `json:"result"`
}

// FundamentalsSnapshot is the subset of metrics frozen into an allocation
// position. Missing metrics stay null.
type FundamentalsSnapshot struct {
	ROIC             *float64          `json:"roic"`
	DebtToEBITDA     *float64          `json:"debt_to_ebitda"`
	RevenueCAGR3Y    *float64          `json:"revenue_cagr_3y"`
	RuleOf40         *float64          `json:"rule_of_40"`
	GrossMarginPct   *float64          `json:"gross_margin_pct"`
	ROE              *float64          `json:"roe"`
	FCFMargin        *float64          `json:"fcf_margin"`
	MarketShareTrend domain.ShareTrend `json:"market_share_trend"`
	TAMGrowth        *float64          `json:"tam_growth"`
}

// Position is one entry of a pillar-engine allocation. Everything beyond
// rank and weight is a point-in-time snapshot; later metric updates never
// alter a built position.
type Position struct {
	Rank            int                  `json:"rank"`
	Ticker          string               `json:"ticker"`
	Name            string               `json:"name"`
	Sector          string               `json:"sector"`
	Industry        string               `json:"industry"`
	Weight          float64              `json:"weight"`
	TotalScore      int                  `json:"total_score"`
	PointsAboveBase int                  `json:"points_above_base"`
	PillarScores    scoring.PillarScores `json:"pillar_scores"`
	Fundamentals    FundamentalsSnapshot `json:"fundamentals"`
	TieBreakers     scoring.TieBreakers  `json:"tie_breakers"`
}

// Allocation is an immutable portfolio built at one instant.
type Allocation struct {
	RunAt     time.Time  `json:"run_at"`
	Positions []Position `json:"positions"`
}

// PortfolioMetrics summarizes a continuous-engine allocation. Variance is
// computed without covariance terms, so the volatility understates a
// correlated portfolio.
type PortfolioMetrics struct {
	PortfolioVolatility float64 `json:"portfolio_volatility"`
	WeightedScore       float64 `json:"weighted_score"`
	Concentration       float64 `json:"concentration"`
	NumPositions        int     `json:"num_positions"`
}

// PositionChange describes a ticker entering or leaving the portfolio.
type PositionChange struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
	Score  int     `json:"score"`
}

// WeightChange describes a held ticker whose weight moved past the
// dead-band.
type WeightChange struct {
	Ticker    string  `json:"ticker"`
	OldWeight float64 `json:"old_weight"`
	NewWeight float64 `json:"new_weight"`
	Change    float64 `json:"change"`
	OldScore  int     `json:"old_score"`
	NewScore  int     `json:"new_score"`
}

// ChangeSet is the diff between two allocations.
type ChangeSet struct {
	Additions     []PositionChange `json:"additions"`
	Removals      []PositionChange `json:"removals"`
	WeightChanges []WeightChange   `json:"weight_changes"`
	TotalChanges  int              `json:"total_changes"`
}
