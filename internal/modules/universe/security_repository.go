package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/domain"
)

// SecurityRepository handles security rows in the universe database.
type SecurityRepository struct {
	universeDB *sql.DB
	log        zerolog.Logger
}

// securitiesColumns lists the securities table columns. Kept explicit so a
// schema change breaks loudly instead of silently shifting scan targets.
const securitiesColumns = `ticker, name, sector, industry`

// NewSecurityRepository creates a security repository.
func NewSecurityRepository(universeDB *sql.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "security").Logger(),
	}
}

// Upsert inserts a security or refreshes its identity fields. The original
// created_at is preserved across updates.
func (r *SecurityRepository) Upsert(security domain.Security) error {
	ticker := strings.ToUpper(strings.TrimSpace(security.Ticker))
	if ticker == "" {
		return fmt.Errorf("security ticker is required")
	}

	now := time.Now().UTC().Unix()
	_, err := r.universeDB.Exec(`
		INSERT INTO securities (ticker, name, sector, industry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			industry = excluded.industry,
			updated_at = excluded.updated_at
	`, ticker, security.Name, security.Sector, security.Industry, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", ticker, err)
	}

	return nil
}

// GetByTicker returns a security, or nil when the universe does not contain
// it.
func (r *SecurityRepository) GetByTicker(ticker string) (*domain.Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE ticker = ?"

	var s domain.Security
	err := r.universeDB.QueryRow(query, strings.ToUpper(strings.TrimSpace(ticker))).
		Scan(&s.Ticker, &s.Name, &s.Sector, &s.Industry)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query security by ticker: %w", err)
	}

	return &s, nil
}

// List returns the whole universe ordered by ticker.
func (r *SecurityRepository) List() ([]domain.Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities ORDER BY ticker"

	rows, err := r.universeDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var securities []domain.Security
	for rows.Next() {
		var s domain.Security
		if err := rows.Scan(&s.Ticker, &s.Name, &s.Sector, &s.Industry); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities = append(securities, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// ListTickers returns all universe tickers ordered alphabetically.
func (r *SecurityRepository) ListTickers() ([]string, error) {
	rows, err := r.universeDB.Query("SELECT ticker FROM securities ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}

	return tickers, nil
}

// SectorMap returns ticker -> sector for every security that has one.
func (r *SecurityRepository) SectorMap() (map[string]string, error) {
	rows, err := r.universeDB.Query("SELECT ticker, sector FROM securities WHERE sector != ''")
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	sectors := make(map[string]string)
	for rows.Next() {
		var ticker, sector string
		if err := rows.Scan(&ticker, &sector); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		sectors[ticker] = sector
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sectors: %w", err)
	}

	return sectors, nil
}

// Count returns the universe size.
func (r *SecurityRepository) Count() (int, error) {
	var count int
	if err := r.universeDB.QueryRow("SELECT COUNT(*) FROM securities").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count securities: %w", err)
	}
	return count, nil
}

// Delete removes a security from the universe.
func (r *SecurityRepository) Delete(ticker string) error {
	result, err := r.universeDB.Exec("DELETE FROM securities WHERE ticker = ?",
		strings.ToUpper(strings.TrimSpace(ticker)))
	if err != nil {
		return fmt.Errorf("failed to delete security %s: %w", ticker, err)
	}

	if affected, _ := result.RowsAffected(); affected > 0 {
		r.log.Info().Str("ticker", ticker).Msg("Removed security from universe")
	}
	return nil
}
