package fundamentals

import (
	"math/rand"
	"time"

	"github.com/aristath/octave/internal/domain"
)

// priceHistoryDays is one trading year of daily closes.
const priceHistoryDays = 252

// marginHistoryQuarters is how many trailing quarters of gross margin the
// provider reports for the stability component.
const marginHistoryQuarters = 8

var securityNames = map[string]string{
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"META":  "Meta Platforms Inc.",
	"CRM":   "Salesforce Inc.",
	"ADBE":  "Adobe Inc.",
	"AMZN":  "Amazon.com Inc.",
	"NFLX":  "Netflix Inc.",
	"NKE":   "Nike Inc.",
	"SBUX":  "Starbucks Corporation",
	"MCD":   "McDonald's Corporation",
	"V":     "Visa Inc.",
	"MA":    "Mastercard Inc.",
	"JPM":   "JPMorgan Chase & Co.",
	"GS":    "Goldman Sachs Group Inc.",
	"BRK-B": "Berkshire Hathaway Inc.",
	"UNH":   "UnitedHealth Group Inc.",
	"JNJ":   "Johnson & Johnson",
	"PFE":   "Pfizer Inc.",
	"TMO":   "Thermo Fisher Scientific Inc.",
	"ABT":   "Abbott Laboratories",
}

var securitySectors = map[string]string{
	"MSFT":  "Technology",
	"GOOGL": "Technology",
	"META":  "Technology",
	"CRM":   "Technology",
	"ADBE":  "Technology",
	"AMZN":  "Consumer Discretionary",
	"NFLX":  "Consumer Discretionary",
	"NKE":   "Consumer Discretionary",
	"SBUX":  "Consumer Discretionary",
	"MCD":   "Consumer Discretionary",
	"V":     "Financials",
	"MA":    "Financials",
	"JPM":   "Financials",
	"GS":    "Financials",
	"BRK-B": "Financials",
	"UNH":   "Healthcare",
	"JNJ":   "Healthcare",
	"PFE":   "Healthcare",
	"TMO":   "Healthcare",
	"ABT":   "Healthcare",
}

var fallbackSectors = []string{
	"Technology",
	"Consumer Discretionary",
	"Financials",
	"Healthcare",
	"Industrials",
}

// seedFor derives a stable seed from the ticker symbol so every payload for
// a given ticker is reproducible across processes and runs.
func seedFor(ticker string) int64 {
	var seed int64
	for _, c := range ticker {
		seed += int64(c)
	}
	return seed
}

func generateProfile(ticker string) domain.Security {
	sector, known := securitySectors[ticker]
	if !known {
		rng := rand.New(rand.NewSource(seedFor(ticker)))
		sector = fallbackSectors[rng.Intn(len(fallbackSectors))]
	}

	name, known := securityNames[ticker]
	if !known {
		name = ticker + " Corporation"
	}

	industry := "Various"
	if sector == "Technology" {
		industry = "Software"
	}

	return domain.Security{
		Ticker:   ticker,
		Name:     name,
		Sector:   sector,
		Industry: industry,
	}
}

// generateFundamentals draws one set of metrics in ranges that produce a
// realistic mix of qualified and eliminated securities.
func generateFundamentals(ticker, sector string) domain.Fundamentals {
	rng := rand.New(rand.NewSource(seedFor(ticker)))
	uniform := func(lo, hi float64) float64 {
		return lo + rng.Float64()*(hi-lo)
	}

	roic := uniform(0.10, 0.45)
	debtToEBITDA := uniform(-0.5, 3.0)
	revenueCAGR := uniform(0.05, 0.35)
	fcfMargin := uniform(0.08, 0.35)
	grossMargin := uniform(20, 80)
	roe := uniform(0.10, 0.35)
	fcfMultiple := uniform(10, 50)
	fcf := uniform(0.1e9, 30e9)

	ruleOf40 := revenueCAGR*100 + fcfMargin*100
	revenueGrowthPct := revenueCAGR * 100
	percentile := grossMarginPercentile(sector, grossMargin)

	buybacks := []domain.BuybackQuality{
		domain.BuybackDisciplined,
		domain.BuybackModerate,
		domain.BuybackAggressive,
		domain.BuybackNone,
	}
	buyback := buybacks[rng.Intn(len(buybacks))]

	// Share trends skew toward stable; losing is rare.
	var trend domain.ShareTrend
	switch u := rng.Float64(); {
	case u < 0.4:
		trend = domain.TrendGaining
	case u < 0.9:
		trend = domain.TrendStable
	default:
		trend = domain.TrendLosing
	}

	tam := tamGrowthBase(sector) + uniform(-0.10, 0.10)

	// Trailing quarterly margins drift around the current level.
	noise := uniform(0.5, 3.0)
	history := make([]float64, marginHistoryQuarters)
	for i := range history {
		history[i] = grossMargin + rng.NormFloat64()*noise
	}

	return domain.Fundamentals{
		Ticker:                ticker,
		CapturedAt:            time.Now().UTC(),
		ROIC:                  domain.Float64Ptr(roic),
		DebtToEBITDA:          domain.Float64Ptr(debtToEBITDA),
		ROE:                   domain.Float64Ptr(roe),
		RevenueCAGR3Y:         domain.Float64Ptr(revenueCAGR),
		RevenueGrowthPct:      domain.Float64Ptr(revenueGrowthPct),
		RuleOf40:              domain.Float64Ptr(ruleOf40),
		GrossMarginPct:        domain.Float64Ptr(grossMargin),
		GrossMarginPercentile: domain.Float64Ptr(percentile),
		HistoricalMarginsPct:  history,
		FCFMargin:             domain.Float64Ptr(fcfMargin),
		FCF:                   domain.Float64Ptr(fcf),
		FCFMultiple:           domain.Float64Ptr(fcfMultiple),
		BuybackQuality:        buyback,
		MarketShareTrend:      trend,
		TAMGrowth:             domain.Float64Ptr(tam),
	}
}

// generatePrices walks a daily close series with per-ticker volatility and
// drift, one point per calendar day ending today.
func generatePrices(ticker string, days int) []domain.PricePoint {
	rng := rand.New(rand.NewSource(seedFor(ticker)))
	uniform := func(lo, hi float64) float64 {
		return lo + rng.Float64()*(hi-lo)
	}

	price := uniform(20, 500)
	dailyVol := uniform(0.01, 0.03)
	drift := uniform(-0.0001, 0.001)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	prices := make([]domain.PricePoint, 0, days)
	for i := 0; i < days; i++ {
		dailyReturn := drift + rng.NormFloat64()*dailyVol
		price *= 1 + dailyReturn
		prices = append(prices, domain.PricePoint{
			Date:  today.AddDate(0, 0, -(days - i)),
			Close: price,
		})
	}
	return prices
}
