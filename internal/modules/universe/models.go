// Package universe persists the investment universe and the runs scored
// over it: securities, fundamental captures, price history, and the
// append-only run ledger with its scores and allocations.
package universe

import (
	"database/sql"
	"time"

	"github.com/aristath/octave/internal/modules/scoring"
)

// RunRecord is one completed scoring run. Runs are append-only: the record
// is written once, after the run finished, and never updated.
type RunRecord struct {
	ID         string    `json:"id"`
	RunAt      time.Time `json:"run_at"`
	Engine     string    `json:"engine"`
	Requested  int       `json:"requested"`
	Scored     int       `json:"scored"`
	Skipped    int       `json:"skipped"`
	Qualified  int       `json:"qualified"`
	Eliminated int       `json:"eliminated"`
}

// ScoreRow is one persisted per-security scoring outcome. It is the union
// of both engines' outputs; fields belonging to the other engine stay nil.
type ScoreRow struct {
	RunID    string `json:"run_id,omitempty"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Engine   string `json:"engine"`

	// Continuous engine
	Economics    *float64 `json:"economics,omitempty"`
	PricingPower *float64 `json:"pricing_power,omitempty"`
	Final        *float64 `json:"final,omitempty"`
	Volatility   *float64 `json:"volatility,omitempty"`

	// Pillar engine
	Pillars    *scoring.PillarScores `json:"pillars,omitempty"`
	Total      *int                  `json:"total,omitempty"`
	Eliminated bool                  `json:"eliminated"`
	Reasons    []string              `json:"reasons,omitempty"`

	// Tie-breaks. A nil FCFMultiple means unknown and sorts last.
	LowestPillar *int     `json:"lowest_pillar,omitempty"`
	MedianPillar *float64 `json:"median_pillar,omitempty"`
	FCFMultiple  *float64 `json:"fcf_multiple,omitempty"`
	FCFAbsolute  *float64 `json:"fcf_absolute,omitempty"`
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
