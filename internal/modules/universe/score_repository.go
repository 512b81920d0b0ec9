package universe

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/modules/scoring"
)

// ScoreRepository reads persisted score rows from the scores database.
// Writes go through RunRepository.SaveRun so rows always belong to a
// complete run.
type ScoreRepository struct {
	scoresDB *sql.DB
	log      zerolog.Logger
}

const scoresColumns = `run_id, ticker, name, sector, industry, engine,
economics, pricing_power, final, volatility,
pillar_moat, pillar_fortress, pillar_engine, pillar_efficiency,
pillar_pricing_power, pillar_capital_allocation, pillar_cash_generation, pillar_durability,
total, eliminated, reasons,
lowest_pillar, median_pillar, fcf_multiple, fcf_absolute`

// NewScoreRepository creates a score repository.
func NewScoreRepository(scoresDB *sql.DB, log zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{
		scoresDB: scoresDB,
		log:      log.With().Str("repo", "score").Logger(),
	}
}

// ByRun returns every score row of one run, highest final/total first.
func (r *ScoreRepository) ByRun(runID string) ([]ScoreRow, error) {
	query := "SELECT " + scoresColumns + ` FROM scores WHERE run_id = ?
		ORDER BY final DESC, total DESC, ticker`

	rows, err := r.scoresDB.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores by run: %w", err)
	}
	defer rows.Close()

	var scores []ScoreRow
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return scores, nil
}

// LatestForTicker returns the most recent score row for a ticker across all
// runs, or nil when the ticker was never scored.
func (r *ScoreRepository) LatestForTicker(ticker string) (*ScoreRow, error) {
	query := "SELECT " + scoresColumns + ` FROM scores
		WHERE ticker = ?
		ORDER BY id DESC LIMIT 1`

	rows, err := r.scoresDB.Query(query, strings.ToUpper(strings.TrimSpace(ticker)))
	if err != nil {
		return nil, fmt.Errorf("failed to query score by ticker: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	s, err := scanScore(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan score: %w", err)
	}
	return &s, nil
}

// HistoryForTicker returns up to limit score rows for a ticker, newest
// first.
func (r *ScoreRepository) HistoryForTicker(ticker string, limit int) ([]ScoreRow, error) {
	query := "SELECT " + scoresColumns + ` FROM scores
		WHERE ticker = ?
		ORDER BY id DESC LIMIT ?`

	rows, err := r.scoresDB.Query(query, strings.ToUpper(strings.TrimSpace(ticker)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	var scores []ScoreRow
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score history: %w", err)
	}

	return scores, nil
}

func scanScore(rows *sql.Rows) (ScoreRow, error) {
	var s ScoreRow
	var economics, pricingPower, final, volatility sql.NullFloat64
	var moat, fortress, engine, efficiency sql.NullInt64
	var pillarPricingPower, capitalAllocation, cashGeneration, durability sql.NullInt64
	var total, lowestPillar sql.NullInt64
	var eliminated int
	var reasons string
	var medianPillar, fcfMultiple, fcfAbsolute sql.NullFloat64

	err := rows.Scan(
		&s.RunID, &s.Ticker, &s.Name, &s.Sector, &s.Industry, &s.Engine,
		&economics, &pricingPower, &final, &volatility,
		&moat, &fortress, &engine, &efficiency,
		&pillarPricingPower, &capitalAllocation, &cashGeneration, &durability,
		&total, &eliminated, &reasons,
		&lowestPillar, &medianPillar, &fcfMultiple, &fcfAbsolute,
	)
	if err != nil {
		return ScoreRow{}, err
	}

	s.Economics = floatPtr(economics)
	s.PricingPower = floatPtr(pricingPower)
	s.Final = floatPtr(final)
	s.Volatility = floatPtr(volatility)

	if moat.Valid {
		s.Pillars = &scoring.PillarScores{
			Moat:              int(moat.Int64),
			Fortress:          int(fortress.Int64),
			Engine:            int(engine.Int64),
			Efficiency:        int(efficiency.Int64),
			PricingPower:      int(pillarPricingPower.Int64),
			CapitalAllocation: int(capitalAllocation.Int64),
			CashGeneration:    int(cashGeneration.Int64),
			Durability:        int(durability.Int64),
		}
	}

	s.Total = intPtr(total)
	s.Eliminated = eliminated != 0
	if reasons != "" {
		s.Reasons = strings.Split(reasons, ",")
	}

	s.LowestPillar = intPtr(lowestPillar)
	s.MedianPillar = floatPtr(medianPillar)
	s.FCFMultiple = floatPtr(fcfMultiple)
	s.FCFAbsolute = floatPtr(fcfAbsolute)

	return s, nil
}
