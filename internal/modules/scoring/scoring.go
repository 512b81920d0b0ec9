// Package scoring implements the two scoring engines: the continuous
// quality blend (0-100) and the eight-pillar elimination framework.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
)

// Engine selects which scoring methodology a run uses.
type Engine string

const (
	// EnginePillar scores eight quality pillars with hard elimination.
	EnginePillar Engine = "pillar"

	// EngineContinuous blends economics and pricing power into a 0-100 score.
	EngineContinuous Engine = "continuous"
)

// ParseEngine validates an engine name.
func ParseEngine(name string) (Engine, error) {
	switch Engine(name) {
	case EnginePillar:
		return EnginePillar, nil
	case EngineContinuous:
		return EngineContinuous, nil
	default:
		return "", fmt.Errorf("unknown engine %q (must be %q or %q)", name, EnginePillar, EngineContinuous)
	}
}

// PillarNames lists the eight pillars in canonical order. Reason lists and
// persisted score rows follow this order.
var PillarNames = []string{
	"moat",
	"fortress",
	"engine",
	"efficiency",
	"pricing_power",
	"capital_allocation",
	"cash_generation",
	"durability",
}

// PillarScores holds the eight pillar scores for one security.
// Each value is 0 (eliminating) or an integer in [4,8].
type PillarScores struct {
	Moat              int `json:"moat"`
	Fortress          int `json:"fortress"`
	Engine            int `json:"engine"`
	Efficiency        int `json:"efficiency"`
	PricingPower      int `json:"pricing_power"`
	CapitalAllocation int `json:"capital_allocation"`
	CashGeneration    int `json:"cash_generation"`
	Durability        int `json:"durability"`
}

// Values returns the scores in canonical pillar order.
func (p PillarScores) Values() []int {
	return []int{
		p.Moat,
		p.Fortress,
		p.Engine,
		p.Efficiency,
		p.PricingPower,
		p.CapitalAllocation,
		p.CashGeneration,
		p.Durability,
	}
}

// Map returns the scores keyed by pillar name.
func (p PillarScores) Map() map[string]int {
	values := p.Values()
	m := make(map[string]int, len(PillarNames))
	for i, name := range PillarNames {
		m[name] = values[i]
	}
	return m
}

// TieBreakers carries the secondary sort keys used to order securities with
// equal totals.
type TieBreakers struct {
	LowestPillar int     `json:"lowest_pillar_score"`
	MedianPillar float64 `json:"median_pillar_score"`
	PFCF         float64 `json:"p_fcf"`
	FCFAbsolute  float64 `json:"fcf_absolute"`
}

// MarshalJSON emits p_fcf as null when the multiple is unknown (+Inf); JSON
// has no representation for infinity.
func (t TieBreakers) MarshalJSON() ([]byte, error) {
	type alias TieBreakers
	aux := struct {
		alias
		PFCF interface{} `json:"p_fcf"`
	}{alias: alias(t)}
	if !math.IsInf(t.PFCF, 1) {
		aux.PFCF = t.PFCF
	}
	return json.Marshal(aux)
}

// UnmarshalJSON restores a null p_fcf to +Inf.
func (t *TieBreakers) UnmarshalJSON(data []byte) error {
	type alias TieBreakers
	aux := struct {
		*alias
		PFCF *float64 `json:"p_fcf"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.PFCF == nil {
		t.PFCF = math.Inf(1)
	} else {
		t.PFCF = *aux.PFCF
	}
	return nil
}

// PillarResult is the full pillar-engine outcome for one security.
type PillarResult struct {
	Pillars     PillarScores `json:"pillars"`
	Total       int          `json:"total"`
	Eliminated  bool         `json:"eliminated"`
	Reasons     []string     `json:"reasons,omitempty"`
	TieBreakers TieBreakers  `json:"tie_breakers"`
}

// ContinuousScores is the continuous-engine outcome for one security before
// any sector-relative adjustment.
type ContinuousScores struct {
	Economics    float64 `json:"economics"`
	PricingPower float64 `json:"pricing_power"`
	Final        float64 `json:"final"`
}
