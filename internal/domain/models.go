// Package domain provides core domain models and the cross-module interfaces.
package domain

import "time"

// BuybackQuality classifies management's buyback discipline.
type BuybackQuality string

const (
	BuybackDisciplined BuybackQuality = "disciplined"
	BuybackModerate    BuybackQuality = "moderate"
	BuybackAggressive  BuybackQuality = "aggressive"
	BuybackNone        BuybackQuality = "none"
)

// ShareTrend describes the direction of a company's market share.
type ShareTrend string

const (
	TrendGaining ShareTrend = "gaining"
	TrendStable  ShareTrend = "stable"
	TrendLosing  ShareTrend = "losing"
)

// Security identifies one member of the scoring universe.
type Security struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
}

// Fundamentals is one captured set of fundamental metrics for a security.
// Optional metrics are pointers; nil means the provider had no value and each
// scorer applies its own worst-case default. A record is immutable once
// scored - a new capture produces a new record.
type Fundamentals struct {
	Ticker     string    `json:"ticker"`
	CapturedAt time.Time `json:"captured_at"`

	// Profitability and balance sheet
	ROIC         *float64 `json:"roic,omitempty"`           // return on invested capital, fraction
	DebtToEBITDA *float64 `json:"debt_to_ebitda,omitempty"` // negative means net cash
	ROE          *float64 `json:"roe,omitempty"`            // return on equity, fraction

	// Growth
	RevenueCAGR3Y    *float64 `json:"revenue_cagr_3y,omitempty"`    // fraction
	RevenueGrowthPct *float64 `json:"revenue_growth_pct,omitempty"` // trailing-year growth, percent
	RuleOf40         *float64 `json:"rule_of_40,omitempty"`         // growth % + FCF margin %

	// Margins
	GrossMarginPct        *float64  `json:"gross_margin_pct,omitempty"`        // percent
	GrossMarginPercentile *float64  `json:"gross_margin_percentile,omitempty"` // industry percentile, 0-100
	HistoricalMarginsPct  []float64 `json:"historical_margins_pct,omitempty"`  // optional series, percent

	// Cash generation
	FCFMargin   *float64 `json:"fcf_margin,omitempty"`   // fraction
	FCF         *float64 `json:"fcf,omitempty"`          // absolute free cash flow
	FCFMultiple *float64 `json:"fcf_multiple,omitempty"` // price / FCF

	// Competitive position
	BuybackQuality   BuybackQuality `json:"buyback_quality,omitempty"`
	MarketShareTrend ShareTrend     `json:"market_share_trend,omitempty"`
	TAMGrowth        *float64       `json:"tam_growth,omitempty"` // fraction
}

// PricePoint is one daily close for a security.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// SecurityData bundles everything the market-data provider returns for one
// ticker in a single fetch.
type SecurityData struct {
	Security     Security     `json:"security"`
	Fundamentals Fundamentals `json:"fundamentals"`
	Prices       []PricePoint `json:"prices"`
}

// Float64Ptr returns a pointer to v. Convenience for building records.
func Float64Ptr(v float64) *float64 {
	return &v
}
