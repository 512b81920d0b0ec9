package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/octave/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestMoat(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name string
		roic *float64
		want int
	}{
		{"missing eliminates", nil, 0},
		{"below 20 percent eliminates", f64(0.19), 0},
		{"at 20 percent scores 4", f64(0.20), 4},
		{"just under 25 percent scores 4", f64(0.249), 4},
		{"at 25 percent scores 5", f64(0.25), 5},
		{"at 30 percent scores 6", f64(0.30), 6},
		{"at 35 percent scores 7", f64(0.35), 7},
		{"at 40 percent scores 8", f64(0.40), 8},
		{"well above scores 8", f64(0.60), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Moat(tt.roic))
		})
	}
}

func TestFortress(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name string
		debt *float64
		want int
	}{
		{"missing means net cash", nil, 8},
		{"negative ratio means net cash", f64(-0.3), 8},
		{"zero scores 7", f64(0), 7},
		{"at half turn scores 7", f64(0.5), 7},
		{"at one turn scores 6", f64(1.0), 6},
		{"at one and a half turns scores 5", f64(1.5), 5},
		{"at two turns scores 4", f64(2.0), 4},
		{"at the gate scores 4", f64(2.5), 4},
		{"above the gate eliminates", f64(2.51), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Fortress(tt.debt))
		})
	}
}

func TestEngine(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name string
		cagr *float64
		want int
	}{
		{"missing eliminates", nil, 0},
		{"below 10 percent eliminates", f64(0.09), 0},
		{"at 10 percent scores 4", f64(0.10), 4},
		{"at 15 percent scores 5", f64(0.15), 5},
		{"at 20 percent scores 6", f64(0.20), 6},
		{"at 25 percent scores 7", f64(0.25), 7},
		{"at exactly 30 percent scores 7", f64(0.30), 7},
		{"above 30 percent scores 8", f64(0.31), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Engine(tt.cagr))
		})
	}
}

func TestEfficiency(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name string
		r40  *float64
		want int
	}{
		{"missing eliminates", nil, 0},
		{"below 40 eliminates", f64(39.9), 0},
		{"at 40 scores 4", f64(40), 4},
		{"at 45 scores 5", f64(45), 5},
		{"at 50 scores 6", f64(50), 6},
		{"at 60 scores 7", f64(60), 7},
		{"at exactly 70 scores 7", f64(70), 7},
		{"above 70 scores 8", f64(70.1), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Efficiency(tt.r40))
		})
	}
}

func TestPricingPowerPillar(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name       string
		percentile *float64
		want       int
	}{
		{"missing eliminates", nil, 0},
		{"below 60th percentile eliminates", f64(59.9), 0},
		{"at 60th scores 4", f64(60), 4},
		{"at 70th scores 5", f64(70), 5},
		{"at 80th scores 6", f64(80), 6},
		{"at 90th scores 7", f64(90), 7},
		{"at 95th scores 8", f64(95), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.PricingPower(tt.percentile))
		})
	}
}

func TestCapitalAllocation(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name     string
		roe      *float64
		buybacks domain.BuybackQuality
		want     int
	}{
		{"missing ROE eliminates", nil, domain.BuybackDisciplined, 0},
		{"ROE below 15 percent eliminates", f64(0.14), domain.BuybackDisciplined, 0},
		{"high ROE with disciplined buybacks scores 8", f64(0.31), domain.BuybackDisciplined, 8},
		{"high ROE with moderate buybacks scores 7", f64(0.31), domain.BuybackModerate, 7},
		{"high ROE with aggressive buybacks scores 6", f64(0.31), domain.BuybackAggressive, 6},
		{"good ROE with disciplined buybacks scores 7", f64(0.26), domain.BuybackDisciplined, 7},
		{"good ROE with moderate buybacks scores 7", f64(0.26), domain.BuybackModerate, 7},
		{"good ROE with no buybacks scores 6", f64(0.26), domain.BuybackNone, 6},
		{"decent ROE scores 6 regardless of buybacks", f64(0.21), domain.BuybackNone, 6},
		{"threshold ROE scores 5", f64(0.15), domain.BuybackDisciplined, 5},
		{"at 20 percent scores 5", f64(0.20), domain.BuybackDisciplined, 5},
		{"unset buyback quality treated as none", f64(0.31), "", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.CapitalAllocation(tt.roe, tt.buybacks))
		})
	}
}

func TestCashGeneration(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name   string
		margin *float64
		want   int
	}{
		{"missing eliminates", nil, 0},
		{"below 12 percent eliminates", f64(0.11), 0},
		{"at 12 percent scores 4", f64(0.12), 4},
		{"at 15 percent scores 5", f64(0.15), 5},
		{"at 20 percent scores 6", f64(0.20), 6},
		{"at 25 percent scores 7", f64(0.25), 7},
		{"at exactly 30 percent scores 7", f64(0.30), 7},
		{"above 30 percent scores 8", f64(0.31), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.CashGeneration(tt.margin))
		})
	}
}

func TestDurability(t *testing.T) {
	s := NewPillarScorer()

	tests := []struct {
		name  string
		trend domain.ShareTrend
		tam   *float64
		want  int
	}{
		{"both inputs missing defaults to 4", "", nil, 4},
		{"missing trend defaults to 4", "", f64(0.15), 4},
		{"missing TAM defaults to 4", domain.TrendGaining, nil, 4},
		{"losing share eliminates", domain.TrendLosing, f64(0.20), 0},
		{"shrinking TAM eliminates", domain.TrendGaining, f64(-0.01), 0},
		{"gaining in a fast market scores 8", domain.TrendGaining, f64(0.21), 8},
		{"gaining at 20 percent scores 7", domain.TrendGaining, f64(0.20), 7},
		{"gaining at 15 percent scores 7", domain.TrendGaining, f64(0.15), 7},
		{"gaining at 10 percent scores 5", domain.TrendGaining, f64(0.10), 5},
		{"gaining in a slow market scores 4", domain.TrendGaining, f64(0.05), 4},
		{"stable in a fast market scores 6", domain.TrendStable, f64(0.21), 6},
		{"stable at 20 percent scores 4", domain.TrendStable, f64(0.20), 4},
		{"stable at 10 percent scores 4", domain.TrendStable, f64(0.10), 4},
		{"stable in a shrinking niche eliminates", domain.TrendStable, f64(0.05), 0},
		{"unrecognized trend falls on the stable ladder", domain.ShareTrend("flat"), f64(0.21), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Durability(tt.trend, tt.tam))
		})
	}
}

func TestScoreOutputsAreInValidSet(t *testing.T) {
	s := NewPillarScorer()
	valid := map[int]bool{0: true, 4: true, 5: true, 6: true, 7: true, 8: true}

	fundamentals := []domain.Fundamentals{
		{},
		{ROIC: f64(0.22), DebtToEBITDA: f64(1.2), RevenueCAGR3Y: f64(0.12)},
		{
			ROIC:                  f64(0.45),
			DebtToEBITDA:          f64(-0.3),
			RevenueCAGR3Y:         f64(0.32),
			RuleOf40:              f64(75),
			GrossMarginPercentile: f64(96),
			ROE:                   f64(0.35),
			BuybackQuality:        domain.BuybackDisciplined,
			FCFMargin:             f64(0.32),
			MarketShareTrend:      domain.TrendGaining,
			TAMGrowth:             f64(0.22),
		},
	}

	for _, f := range fundamentals {
		for name, score := range s.Score(f).Map() {
			assert.True(t, valid[score], "pillar %s returned %d", name, score)
		}
	}
}

func TestScorePerfectSecurity(t *testing.T) {
	s := NewPillarScorer()

	f := domain.Fundamentals{
		ROIC:                  f64(0.45),
		DebtToEBITDA:          f64(-0.3),
		RevenueCAGR3Y:         f64(0.32),
		RuleOf40:              f64(75),
		GrossMarginPercentile: f64(96),
		ROE:                   f64(0.35),
		BuybackQuality:        domain.BuybackDisciplined,
		FCFMargin:             f64(0.32),
		MarketShareTrend:      domain.TrendGaining,
		TAMGrowth:             f64(0.22),
	}

	pillars := s.Score(f)
	for name, score := range pillars.Map() {
		assert.Equal(t, 8, score, "pillar %s", name)
	}

	total, eliminated, reasons := s.Aggregate(pillars)
	assert.Equal(t, 64, total)
	assert.False(t, eliminated)
	assert.Empty(t, reasons)
}

func TestScoreWeakMoatEliminates(t *testing.T) {
	s := NewPillarScorer()

	f := domain.Fundamentals{
		ROIC:                  f64(0.10),
		DebtToEBITDA:          f64(-0.3),
		RevenueCAGR3Y:         f64(0.32),
		RuleOf40:              f64(75),
		GrossMarginPercentile: f64(96),
		ROE:                   f64(0.35),
		BuybackQuality:        domain.BuybackDisciplined,
		FCFMargin:             f64(0.32),
		MarketShareTrend:      domain.TrendGaining,
		TAMGrowth:             f64(0.22),
	}

	pillars := s.Score(f)
	assert.Equal(t, 0, pillars.Moat)

	total, eliminated, reasons := s.Aggregate(pillars)
	assert.Equal(t, 0, total)
	assert.True(t, eliminated)
	assert.Equal(t, []string{"moat"}, reasons)
}

func TestScoreIsPure(t *testing.T) {
	s := NewPillarScorer()
	f := domain.Fundamentals{
		ROIC:                  f64(0.27),
		DebtToEBITDA:          f64(0.8),
		RevenueCAGR3Y:         f64(0.18),
		RuleOf40:              f64(52),
		GrossMarginPercentile: f64(84),
		ROE:                   f64(0.22),
		BuybackQuality:        domain.BuybackModerate,
		FCFMargin:             f64(0.21),
		MarketShareTrend:      domain.TrendStable,
		TAMGrowth:             f64(0.12),
	}

	first := s.ScoreSecurity(f)
	second := s.ScoreSecurity(f)
	assert.Equal(t, first, second)
}
