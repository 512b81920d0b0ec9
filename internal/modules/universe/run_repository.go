package universe

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/database"
	"github.com/aristath/octave/internal/modules/allocation"
)

// RunRepository owns the run ledger in the scores database. A whole run -
// the run record, every score row, the allocation and any validation
// issues - lands in one transaction, so the ledger never holds a partial
// run.
type RunRepository struct {
	scoresDB *sql.DB
	log      zerolog.Logger
}

const runsColumns = `id, run_at, engine, requested_count, scored_count,
skipped_count, qualified_count, eliminated_count`

// NewRunRepository creates a run repository.
func NewRunRepository(scoresDB *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		scoresDB: scoresDB,
		log:      log.With().Str("repo", "run").Logger(),
	}
}

// SaveRun writes one completed run atomically.
func (r *RunRepository) SaveRun(run RunRecord, scores []ScoreRow, alloc allocation.Allocation, issues []string) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	err := database.WithTransaction(r.scoresDB, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (`+runsColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.RunAt.Unix(), run.Engine,
			run.Requested, run.Scored, run.Skipped, run.Qualified, run.Eliminated)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		if err := insertScores(tx, run.ID, scores); err != nil {
			return err
		}
		if err := insertAllocation(tx, run.ID, alloc); err != nil {
			return err
		}
		if err := insertIssues(tx, run.ID, issues); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("run_id", run.ID).
		Str("engine", run.Engine).
		Int("scored", run.Scored).
		Int("positions", len(alloc.Positions)).
		Msg("Saved run")
	return nil
}

func insertScores(tx *sql.Tx, runID string, scores []ScoreRow) error {
	stmt, err := tx.Prepare(`
		INSERT INTO scores (run_id, ticker, name, sector, industry, engine,
			economics, pricing_power, final, volatility,
			pillar_moat, pillar_fortress, pillar_engine, pillar_efficiency,
			pillar_pricing_power, pillar_capital_allocation, pillar_cash_generation, pillar_durability,
			total, eliminated, reasons,
			lowest_pillar, median_pillar, fcf_multiple, fcf_absolute)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range scores {
		var moat, fortress, engine, efficiency sql.NullInt64
		var pricingPower, capitalAllocation, cashGeneration, durability sql.NullInt64
		if s.Pillars != nil {
			moat = sql.NullInt64{Int64: int64(s.Pillars.Moat), Valid: true}
			fortress = sql.NullInt64{Int64: int64(s.Pillars.Fortress), Valid: true}
			engine = sql.NullInt64{Int64: int64(s.Pillars.Engine), Valid: true}
			efficiency = sql.NullInt64{Int64: int64(s.Pillars.Efficiency), Valid: true}
			pricingPower = sql.NullInt64{Int64: int64(s.Pillars.PricingPower), Valid: true}
			capitalAllocation = sql.NullInt64{Int64: int64(s.Pillars.CapitalAllocation), Valid: true}
			cashGeneration = sql.NullInt64{Int64: int64(s.Pillars.CashGeneration), Valid: true}
			durability = sql.NullInt64{Int64: int64(s.Pillars.Durability), Valid: true}
		}

		eliminated := 0
		if s.Eliminated {
			eliminated = 1
		}

		_, err := stmt.Exec(
			runID, s.Ticker, s.Name, s.Sector, s.Industry, s.Engine,
			nullFloat(s.Economics), nullFloat(s.PricingPower), nullFloat(s.Final), nullFloat(s.Volatility),
			moat, fortress, engine, efficiency,
			pricingPower, capitalAllocation, cashGeneration, durability,
			nullInt(s.Total), eliminated, strings.Join(s.Reasons, ","),
			nullInt(s.LowestPillar), nullFloat(s.MedianPillar), nullFloat(s.FCFMultiple), nullFloat(s.FCFAbsolute),
		)
		if err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", s.Ticker, err)
		}
	}

	return nil
}

func insertAllocation(tx *sql.Tx, runID string, alloc allocation.Allocation) error {
	if len(alloc.Positions) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO allocations (run_id, ticker, rank, weight, total, snapshot)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare allocation insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range alloc.Positions {
		snapshot, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode position snapshot for %s: %w", p.Ticker, err)
		}
		if _, err := stmt.Exec(runID, p.Ticker, p.Rank, p.Weight, p.TotalScore, string(snapshot)); err != nil {
			return fmt.Errorf("failed to insert allocation for %s: %w", p.Ticker, err)
		}
	}

	return nil
}

func insertIssues(tx *sql.Tx, runID string, issues []string) error {
	if len(issues) == 0 {
		return nil
	}

	stmt, err := tx.Prepare("INSERT INTO validations (run_id, issue) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare validation insert: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		if _, err := stmt.Exec(runID, issue); err != nil {
			return fmt.Errorf("failed to insert validation issue: %w", err)
		}
	}

	return nil
}

// GetRun returns one run, or nil when the ID is unknown.
func (r *RunRepository) GetRun(id string) (*RunRecord, error) {
	query := "SELECT " + runsColumns + " FROM runs WHERE id = ?"

	run, err := scanRun(r.scoresDB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return &run, nil
}

// LatestRun returns the most recent run, or nil when no run exists yet.
func (r *RunRepository) LatestRun() (*RunRecord, error) {
	query := "SELECT " + runsColumns + " FROM runs ORDER BY run_at DESC, id DESC LIMIT 1"

	run, err := scanRun(r.scoresDB.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return &run, nil
}

// LatestRunForEngine returns the most recent run of one engine, or nil.
func (r *RunRepository) LatestRunForEngine(engine string) (*RunRecord, error) {
	query := "SELECT " + runsColumns + ` FROM runs WHERE engine = ?
		ORDER BY run_at DESC, id DESC LIMIT 1`

	run, err := scanRun(r.scoresDB.QueryRow(query, engine))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run for engine: %w", err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first.
func (r *RunRepository) ListRuns(limit int) ([]RunRecord, error) {
	query := "SELECT " + runsColumns + " FROM runs ORDER BY run_at DESC, id DESC LIMIT ?"

	rows, err := r.scoresDB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (RunRecord, error) {
	var run RunRecord
	var runAt int64

	err := s.Scan(&run.ID, &runAt, &run.Engine,
		&run.Requested, &run.Scored, &run.Skipped, &run.Qualified, &run.Eliminated)
	if err != nil {
		return RunRecord{}, err
	}

	run.RunAt = time.Unix(runAt, 0).UTC()
	return run, nil
}
