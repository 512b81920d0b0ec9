package universe

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/domain"
)

// FundamentalsRepository stores fundamental captures in the universe
// database. Captures are append-only; a fresh fetch inserts a new row and
// older rows stay as history.
type FundamentalsRepository struct {
	universeDB *sql.DB
	log        zerolog.Logger
}

const fundamentalsColumns = `ticker, captured_at, roic, debt_to_ebitda, roe,
revenue_cagr_3y, revenue_growth_pct, rule_of_40,
gross_margin_pct, gross_margin_percentile, fcf_margin, fcf, fcf_multiple,
buyback_quality, market_share_trend, tam_growth, historical_margins`

// NewFundamentalsRepository creates a fundamentals repository.
func NewFundamentalsRepository(universeDB *sql.DB, log zerolog.Logger) *FundamentalsRepository {
	return &FundamentalsRepository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "fundamentals").Logger(),
	}
}

// Insert appends one capture.
func (r *FundamentalsRepository) Insert(f domain.Fundamentals) error {
	ticker := strings.ToUpper(strings.TrimSpace(f.Ticker))
	if ticker == "" {
		return fmt.Errorf("fundamentals ticker is required")
	}

	capturedAt := f.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	margins, err := json.Marshal(f.HistoricalMarginsPct)
	if err != nil {
		return fmt.Errorf("failed to encode margin history for %s: %w", ticker, err)
	}
	if f.HistoricalMarginsPct == nil {
		margins = []byte("[]")
	}

	_, err = r.universeDB.Exec(`
		INSERT INTO fundamentals (`+fundamentalsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ticker,
		capturedAt.Unix(),
		nullFloat(f.ROIC),
		nullFloat(f.DebtToEBITDA),
		nullFloat(f.ROE),
		nullFloat(f.RevenueCAGR3Y),
		nullFloat(f.RevenueGrowthPct),
		nullFloat(f.RuleOf40),
		nullFloat(f.GrossMarginPct),
		nullFloat(f.GrossMarginPercentile),
		nullFloat(f.FCFMargin),
		nullFloat(f.FCF),
		nullFloat(f.FCFMultiple),
		string(f.BuybackQuality),
		string(f.MarketShareTrend),
		nullFloat(f.TAMGrowth),
		string(margins),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fundamentals for %s: %w", ticker, err)
	}

	return nil
}

// LatestByTicker returns the most recent capture for a ticker, or nil when
// none exists.
func (r *FundamentalsRepository) LatestByTicker(ticker string) (*domain.Fundamentals, error) {
	query := "SELECT " + fundamentalsColumns + ` FROM fundamentals
		WHERE ticker = ? ORDER BY captured_at DESC, id DESC LIMIT 1`

	rows, err := r.universeDB.Query(query, strings.ToUpper(strings.TrimSpace(ticker)))
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	f, err := scanFundamentals(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
	}
	return &f, nil
}

// HistoryByTicker returns up to limit captures for a ticker, newest first.
func (r *FundamentalsRepository) HistoryByTicker(ticker string, limit int) ([]domain.Fundamentals, error) {
	query := "SELECT " + fundamentalsColumns + ` FROM fundamentals
		WHERE ticker = ? ORDER BY captured_at DESC, id DESC LIMIT ?`

	rows, err := r.universeDB.Query(query, strings.ToUpper(strings.TrimSpace(ticker)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals history: %w", err)
	}
	defer rows.Close()

	var captures []domain.Fundamentals
	for rows.Next() {
		f, err := scanFundamentals(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}
		captures = append(captures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fundamentals: %w", err)
	}

	return captures, nil
}

func scanFundamentals(rows *sql.Rows) (domain.Fundamentals, error) {
	var f domain.Fundamentals
	var capturedAt int64
	var roic, debtToEBITDA, roe sql.NullFloat64
	var revenueCAGR, revenueGrowth, ruleOf40 sql.NullFloat64
	var grossMargin, grossMarginPercentile, fcfMargin, fcf, fcfMultiple sql.NullFloat64
	var buybackQuality, marketShareTrend string
	var tamGrowth sql.NullFloat64
	var margins string

	err := rows.Scan(
		&f.Ticker,
		&capturedAt,
		&roic,
		&debtToEBITDA,
		&roe,
		&revenueCAGR,
		&revenueGrowth,
		&ruleOf40,
		&grossMargin,
		&grossMarginPercentile,
		&fcfMargin,
		&fcf,
		&fcfMultiple,
		&buybackQuality,
		&marketShareTrend,
		&tamGrowth,
		&margins,
	)
	if err != nil {
		return domain.Fundamentals{}, err
	}

	f.CapturedAt = time.Unix(capturedAt, 0).UTC()
	f.ROIC = floatPtr(roic)
	f.DebtToEBITDA = floatPtr(debtToEBITDA)
	f.ROE = floatPtr(roe)
	f.RevenueCAGR3Y = floatPtr(revenueCAGR)
	f.RevenueGrowthPct = floatPtr(revenueGrowth)
	f.RuleOf40 = floatPtr(ruleOf40)
	f.GrossMarginPct = floatPtr(grossMargin)
	f.GrossMarginPercentile = floatPtr(grossMarginPercentile)
	f.FCFMargin = floatPtr(fcfMargin)
	f.FCF = floatPtr(fcf)
	f.FCFMultiple = floatPtr(fcfMultiple)
	f.BuybackQuality = domain.BuybackQuality(buybackQuality)
	f.MarketShareTrend = domain.ShareTrend(marketShareTrend)
	f.TAMGrowth = floatPtr(tamGrowth)

	if margins != "" && margins != "[]" {
		if err := json.Unmarshal([]byte(margins), &f.HistoricalMarginsPct); err != nil {
			return domain.Fundamentals{}, fmt.Errorf("failed to decode margin history: %w", err)
		}
	}

	return f, nil
}
