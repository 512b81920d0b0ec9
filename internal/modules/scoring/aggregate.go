package scoring

import (
	"math"
	"strings"

	"github.com/aristath/octave/internal/domain"
	"github.com/aristath/octave/pkg/quant"
)

// MinQualifyingTotal is the score floor a security must reach across all
// eight pillars to qualify (an average of four per pillar).
const MinQualifyingTotal = 32

// ReasonBelowMinimum marks a security eliminated by the total-score floor
// rather than by a zero pillar.
const ReasonBelowMinimum = "below_minimum_score"

// Aggregate derives the total score and elimination state from a set of
// pillar scores. Reasons list the zero-scoring pillars in canonical order.
// A zero pillar forces the total to 0; the total floor eliminates without
// resetting the total, so a 31-point security keeps its 31.
func (s *PillarScorer) Aggregate(p PillarScores) (total int, eliminated bool, reasons []string) {
	values := p.Values()
	for i, v := range values {
		if v == 0 {
			reasons = append(reasons, PillarNames[i])
		}
	}
	eliminated = len(reasons) > 0

	if !eliminated {
		for _, v := range values {
			total += v
		}
	}

	if !eliminated && total < MinQualifyingTotal {
		eliminated = true
		reasons = []string{ReasonBelowMinimum}
	}

	return total, eliminated, reasons
}

// TieBreakers computes the secondary sort keys for one security. The
// price/FCF multiple defaults to +Inf when unknown so missing data sorts
// last; absolute FCF defaults to 0.
func (s *PillarScorer) TieBreakers(p PillarScores, f domain.Fundamentals) TieBreakers {
	values := p.Values()

	lowest := values[0]
	for _, v := range values[1:] {
		if v < lowest {
			lowest = v
		}
	}

	asFloats := make([]float64, len(values))
	for i, v := range values {
		asFloats[i] = float64(v)
	}

	pFCF := math.Inf(1)
	if f.FCFMultiple != nil {
		pFCF = *f.FCFMultiple
	}
	fcfAbsolute := 0.0
	if f.FCF != nil {
		fcfAbsolute = *f.FCF
	}

	return TieBreakers{
		LowestPillar: lowest,
		MedianPillar: quant.Median(asFloats),
		PFCF:         pFCF,
		FCFAbsolute:  fcfAbsolute,
	}
}

// ScoreSecurity runs the full pillar pipeline for one security.
func (s *PillarScorer) ScoreSecurity(f domain.Fundamentals) PillarResult {
	pillars := s.Score(f)
	total, eliminated, reasons := s.Aggregate(pillars)
	return PillarResult{
		Pillars:     pillars,
		Total:       total,
		Eliminated:  eliminated,
		Reasons:     reasons,
		TieBreakers: s.TieBreakers(pillars, f),
	}
}

var eliminationReasons = map[string]string{
	"moat":               "ROIC < 20%",
	"fortress":           "Debt/EBITDA > 2.5x",
	"engine":             "Revenue CAGR < 10%",
	"efficiency":         "Rule of 40 < 40",
	"pricing_power":      "Gross margin below top 40% of industry",
	"capital_allocation": "ROE < 15%",
	"cash_generation":    "FCF margin < 12%",
	"durability":         "Losing market share or TAM shrinking",
	ReasonBelowMinimum:   "Total score below 32",
}

// FormatEliminationReason renders elimination reasons for display. Unknown
// reason codes pass through unchanged.
func FormatEliminationReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if msg, ok := eliminationReasons[r]; ok {
			parts = append(parts, msg)
		} else {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, ", ")
}
