package universe

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/domain"
)

// historySchema holds daily closes. One row per ticker and day; re-syncing
// a day replaces it.
const historySchema = `
CREATE TABLE IF NOT EXISTS price_history (
    ticker TEXT NOT NULL,
    date   INTEGER NOT NULL,
    close  REAL NOT NULL,
    PRIMARY KEY (ticker, date)
);
CREATE INDEX IF NOT EXISTS idx_price_history_ticker_date
    ON price_history(ticker, date DESC);
`

// OpenHistoryDB opens (creating if necessary) the price history database.
// History lives outside the managed databases because its write pattern is
// bulk replace rather than ledger append.
func OpenHistoryDB(path string) (*sql.DB, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return db, nil
}

// HistoryDB provides access to historical price data.
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a history database accessor.
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// SavePrices writes a batch of daily closes in one transaction, replacing
// any rows for the same days.
func (h *HistoryDB) SavePrices(ticker string, prices []domain.PricePoint) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if len(prices) == 0 {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO price_history (ticker, date, close)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, price := range prices {
		if _, err := stmt.Exec(ticker, price.Date.UTC().Unix(), price.Close); err != nil {
			return fmt.Errorf("failed to insert price for %s: %w", price.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Debug().
		Str("ticker", ticker).
		Int("count", len(prices)).
		Msg("Saved price history")

	return nil
}

// RecentCloses returns the closes of the last N calendar days in ascending
// date order, ready for return calculations.
func (h *HistoryDB) RecentCloses(ticker string, days int) ([]float64, error) {
	if days <= 0 {
		return []float64{}, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Unix()

	rows, err := h.db.Query(`
		SELECT close FROM price_history
		WHERE ticker = ? AND date >= ?
		ORDER BY date ASC
	`, strings.ToUpper(strings.TrimSpace(ticker)), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent closes: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var close float64
		if err := rows.Scan(&close); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, close)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}

	return closes, nil
}

// RecentPrices returns up to limit price points, newest first.
func (h *HistoryDB) RecentPrices(ticker string, limit int) ([]domain.PricePoint, error) {
	rows, err := h.db.Query(`
		SELECT date, close FROM price_history
		WHERE ticker = ?
		ORDER BY date DESC
		LIMIT ?
	`, strings.ToUpper(strings.TrimSpace(ticker)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.PricePoint
	for rows.Next() {
		var dateUnix int64
		var p domain.PricePoint
		if err := rows.Scan(&dateUnix, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return prices, nil
}

// LatestDate returns the most recent stored day for a ticker, or the zero
// time when no history exists.
func (h *HistoryDB) LatestDate(ticker string) (time.Time, error) {
	var dateUnix sql.NullInt64
	err := h.db.QueryRow(`
		SELECT MAX(date) FROM price_history WHERE ticker = ?
	`, strings.ToUpper(strings.TrimSpace(ticker))).Scan(&dateUnix)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest date: %w", err)
	}
	if !dateUnix.Valid {
		return time.Time{}, nil
	}

	return time.Unix(dateUnix.Int64, 0).UTC(), nil
}

// DeleteOlderThan removes price rows before the cutoff.
func (h *HistoryDB) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := h.db.Exec("DELETE FROM price_history WHERE date < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old prices: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		h.log.Info().
			Int64("rows_deleted", deleted).
			Time("older_than", cutoff).
			Msg("Deleted old price history")
	}
	return deleted, nil
}
