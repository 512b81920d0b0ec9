package universe

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/octave/internal/domain"
)

// testUniverseSchema mirrors schemas/universe_schema.sql.
const testUniverseSchema = `
CREATE TABLE securities (
    ticker     TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    sector     TEXT NOT NULL DEFAULT '',
    industry   TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE fundamentals (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker                  TEXT NOT NULL REFERENCES securities(ticker),
    captured_at             INTEGER NOT NULL,
    roic                    REAL,
    debt_to_ebitda          REAL,
    roe                     REAL,
    revenue_cagr_3y         REAL,
    revenue_growth_pct      REAL,
    rule_of_40              REAL,
    gross_margin_pct        REAL,
    gross_margin_percentile REAL,
    fcf_margin              REAL,
    fcf                     REAL,
    fcf_multiple            REAL,
    buyback_quality         TEXT NOT NULL DEFAULT '',
    market_share_trend      TEXT NOT NULL DEFAULT '',
    tam_growth              REAL,
    historical_margins      TEXT NOT NULL DEFAULT '[]'
);
`

// setupUniverseDB opens an in-memory universe database. A single connection
// keeps every statement on the same in-memory instance.
func setupUniverseDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	_, err = db.Exec(testUniverseSchema)
	require.NoError(t, err)

	return db
}

func TestSecurityUpsertAndGet(t *testing.T) {
	repo := NewSecurityRepository(setupUniverseDB(t), zerolog.Nop())

	in := domain.Security{Ticker: "AAPL", Name: "Apple Inc", Sector: "Technology", Industry: "Consumer Electronics"}
	require.NoError(t, repo.Upsert(in))

	got, err := repo.GetByTicker("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in, *got)
}

func TestSecurityGetMissingReturnsNil(t *testing.T) {
	repo := NewSecurityRepository(setupUniverseDB(t), zerolog.Nop())

	got, err := repo.GetByTicker("NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSecurityUpsertNormalizesTicker(t *testing.T) {
	repo := NewSecurityRepository(setupUniverseDB(t), zerolog.Nop())

	require.NoError(t, repo.Upsert(domain.Security{Ticker: "  nvda ", Name: "NVIDIA Corp"}))

	got, err := repo.GetByTicker("nvda")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "NVDA", got.Ticker)
}

func TestSecurityUpsertRejectsEmptyTicker(t *testing.T) {
	repo := NewSecurityRepository(setupUniverseDB(t), zerolog.Nop())

	err := repo.Upsert(domain.Security{Ticker: "   "})
	assert.Error(t, err)
}

func TestSecurityUpsertPreservesCreatedAt(t *testing.T) {
	db := setupUniverseDB(t)
	repo := NewSecurityRepository(db, zerolog.Nop())

	_, err := db.Exec(`
		INSERT INTO securities (ticker, name, sector, industry, created_at, updated_at)
		VALUES ('AAPL', 'Old Name', 'Technology', 'Hardware', 1000, 1000)
	`)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(domain.Security{
		Ticker: "AAPL", Name: "Apple Inc", Sector: "Technology", Industry: "Consumer Electronics",
	}))

	var name string
	var createdAt, updatedAt int64
	err = db.QueryRow("SELECT name, created_at, updated_at FROM securities WHERE ticker = 'AAPL'").
		Scan(&name, &createdAt, &updatedAt)
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc", name)
	assert.Equal(t, int64(1000), createdAt, "created_at must survive upserts")
	assert.Greater(t, updatedAt, int64(1000))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSecurityListOrdersByTicker(t *testing.T) {
	repo := NewSecurityRepository(setupUniverseDB(t), zerolog.Nop())

	require.NoError(t, repo.Upsert(domain.Security{Ticker: "MSFT", Name: "Microsoft"}))
	require.NoError(t, repo.Upsert(domain.Security{Ticker: "AAPL", Name: "Apple"}))
	require.NoError(t, repo.Upsert(domain.Security{Ticker: "GOOG", Name: "Alphabet"}))

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "AAPL", list[0].Ticker)
	assert.Equal(t, "GOOG", list[1].Ticker)
	assert.Equal(t, "MSFT", list[2].Ticker)

	tickers, err := repo.ListTickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, tickers)
}

func TestSecuritySectorMapSkipsBlankSectors(t *testing.T) {
	repo := NewSecurityRepository(setupUniverseDB(t), zerolog.Nop())

	require.NoError(t, repo.Upsert(domain.Security{Ticker: "AAPL", Sector: "Technology"}))
	require.NoError(t, repo.Upsert(domain.Security{Ticker: "UNH", Sector: "Healthcare"}))
	require.NoError(t, repo.Upsert(domain.Security{Ticker: "MYST"}))

	sectors, err := repo.SectorMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AAPL": "Technology", "UNH": "Healthcare"}, sectors)
}

func TestSecurityDelete(t *testing.T) {
	repo := NewSecurityRepository(setupUniverseDB(t), zerolog.Nop())

	require.NoError(t, repo.Upsert(domain.Security{Ticker: "AAPL", Name: "Apple"}))
	require.NoError(t, repo.Delete("AAPL"))

	got, err := repo.GetByTicker("AAPL")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a ticker that is already gone is not an error.
	require.NoError(t, repo.Delete("AAPL"))
}
