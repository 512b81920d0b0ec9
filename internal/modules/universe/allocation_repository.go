package universe

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/modules/allocation"
)

// AllocationRepository reads persisted allocations and validation issues
// from the scores database.
type AllocationRepository struct {
	scoresDB *sql.DB
	log      zerolog.Logger
}

// NewAllocationRepository creates an allocation repository.
func NewAllocationRepository(scoresDB *sql.DB, log zerolog.Logger) *AllocationRepository {
	return &AllocationRepository{
		scoresDB: scoresDB,
		log:      log.With().Str("repo", "allocation").Logger(),
	}
}

// ByRun returns the allocation persisted for one run, positions in rank
// order. A run without positions yields an allocation with an empty
// position list.
func (r *AllocationRepository) ByRun(runID string) (allocation.Allocation, error) {
	run, err := scanRun(r.scoresDB.QueryRow(
		"SELECT "+runsColumns+" FROM runs WHERE id = ?", runID))
	if err == sql.ErrNoRows {
		return allocation.Allocation{}, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return allocation.Allocation{}, fmt.Errorf("failed to query run: %w", err)
	}

	rows, err := r.scoresDB.Query(
		"SELECT snapshot FROM allocations WHERE run_id = ? ORDER BY rank", runID)
	if err != nil {
		return allocation.Allocation{}, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	alloc := allocation.Allocation{RunAt: run.RunAt, Positions: []allocation.Position{}}
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return allocation.Allocation{}, fmt.Errorf("failed to scan allocation: %w", err)
		}

		var p allocation.Position
		if err := json.Unmarshal([]byte(snapshot), &p); err != nil {
			return allocation.Allocation{}, fmt.Errorf("failed to decode position snapshot: %w", err)
		}
		alloc.Positions = append(alloc.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return allocation.Allocation{}, fmt.Errorf("error iterating allocations: %w", err)
	}

	return alloc, nil
}

// IssuesByRun returns the validation issues recorded for one run.
func (r *AllocationRepository) IssuesByRun(runID string) ([]string, error) {
	rows, err := r.scoresDB.Query(
		"SELECT issue FROM validations WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation issues: %w", err)
	}
	defer rows.Close()

	var issues []string
	for rows.Next() {
		var issue string
		if err := rows.Scan(&issue); err != nil {
			return nil, fmt.Errorf("failed to scan validation issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation issues: %w", err)
	}

	return issues, nil
}
