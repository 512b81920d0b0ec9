package universe

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/octave/internal/domain"
)

func fundamentalsFixture(ticker string, capturedAt time.Time) domain.Fundamentals {
	return domain.Fundamentals{
		Ticker:                ticker,
		CapturedAt:            capturedAt,
		ROIC:                  domain.Float64Ptr(0.28),
		DebtToEBITDA:          domain.Float64Ptr(-0.4),
		ROE:                   domain.Float64Ptr(0.31),
		RevenueCAGR3Y:         domain.Float64Ptr(0.18),
		RevenueGrowthPct:      domain.Float64Ptr(16.5),
		RuleOf40:              domain.Float64Ptr(58),
		GrossMarginPct:        domain.Float64Ptr(64.2),
		GrossMarginPercentile: domain.Float64Ptr(92),
		HistoricalMarginsPct:  []float64{61.5, 63.0, 64.2},
		FCFMargin:             domain.Float64Ptr(0.27),
		FCF:                   domain.Float64Ptr(9.4e9),
		FCFMultiple:           domain.Float64Ptr(24.8),
		BuybackQuality:        domain.BuybackDisciplined,
		MarketShareTrend:      domain.TrendGaining,
		TAMGrowth:             domain.Float64Ptr(0.12),
	}
}

func seedSecurity(t *testing.T, repo *SecurityRepository, ticker string) {
	t.Helper()
	require.NoError(t, repo.Upsert(domain.Security{Ticker: ticker, Name: ticker + " Inc"}))
}

func TestFundamentalsInsertAndLatestRoundTrip(t *testing.T) {
	db := setupUniverseDB(t)
	securities := NewSecurityRepository(db, zerolog.Nop())
	repo := NewFundamentalsRepository(db, zerolog.Nop())
	seedSecurity(t, securities, "AAPL")

	in := fundamentalsFixture("AAPL", time.Unix(1755000000, 0).UTC())
	require.NoError(t, repo.Insert(in))

	got, err := repo.LatestByTicker("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in, *got)
}

func TestFundamentalsMissingMetricsStayNil(t *testing.T) {
	db := setupUniverseDB(t)
	securities := NewSecurityRepository(db, zerolog.Nop())
	repo := NewFundamentalsRepository(db, zerolog.Nop())
	seedSecurity(t, securities, "MYST")

	in := domain.Fundamentals{Ticker: "MYST", CapturedAt: time.Unix(1755000000, 0).UTC()}
	require.NoError(t, repo.Insert(in))

	got, err := repo.LatestByTicker("MYST")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Nil(t, got.ROIC)
	assert.Nil(t, got.DebtToEBITDA)
	assert.Nil(t, got.TAMGrowth)
	assert.Nil(t, got.HistoricalMarginsPct)
	assert.Empty(t, got.BuybackQuality)
	assert.Empty(t, got.MarketShareTrend)
}

func TestFundamentalsLatestPicksNewestCapture(t *testing.T) {
	db := setupUniverseDB(t)
	securities := NewSecurityRepository(db, zerolog.Nop())
	repo := NewFundamentalsRepository(db, zerolog.Nop())
	seedSecurity(t, securities, "AAPL")

	old := fundamentalsFixture("AAPL", time.Unix(1700000000, 0).UTC())
	old.ROIC = domain.Float64Ptr(0.20)
	require.NoError(t, repo.Insert(old))

	recent := fundamentalsFixture("AAPL", time.Unix(1755000000, 0).UTC())
	recent.ROIC = domain.Float64Ptr(0.30)
	require.NoError(t, repo.Insert(recent))

	got, err := repo.LatestByTicker("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ROIC)
	assert.InDelta(t, 0.30, *got.ROIC, 1e-12)
}

func TestFundamentalsLatestBreaksTimestampTiesByInsertOrder(t *testing.T) {
	db := setupUniverseDB(t)
	securities := NewSecurityRepository(db, zerolog.Nop())
	repo := NewFundamentalsRepository(db, zerolog.Nop())
	seedSecurity(t, securities, "AAPL")

	at := time.Unix(1755000000, 0).UTC()

	first := fundamentalsFixture("AAPL", at)
	first.ROIC = domain.Float64Ptr(0.10)
	require.NoError(t, repo.Insert(first))

	second := fundamentalsFixture("AAPL", at)
	second.ROIC = domain.Float64Ptr(0.40)
	require.NoError(t, repo.Insert(second))

	got, err := repo.LatestByTicker("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ROIC)
	assert.InDelta(t, 0.40, *got.ROIC, 1e-12)
}

func TestFundamentalsHistoryNewestFirstWithLimit(t *testing.T) {
	db := setupUniverseDB(t)
	securities := NewSecurityRepository(db, zerolog.Nop())
	repo := NewFundamentalsRepository(db, zerolog.Nop())
	seedSecurity(t, securities, "AAPL")

	for i, at := range []int64{1700000000, 1720000000, 1755000000} {
		f := fundamentalsFixture("AAPL", time.Unix(at, 0).UTC())
		f.ROIC = domain.Float64Ptr(float64(i))
		require.NoError(t, repo.Insert(f))
	}

	history, err := repo.HistoryByTicker("AAPL", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.InDelta(t, 2.0, *history[0].ROIC, 1e-12)
	assert.InDelta(t, 1.0, *history[1].ROIC, 1e-12)
}

func TestFundamentalsLatestMissingTickerReturnsNil(t *testing.T) {
	repo := NewFundamentalsRepository(setupUniverseDB(t), zerolog.Nop())

	got, err := repo.LatestByTicker("NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFundamentalsInsertRejectsEmptyTicker(t *testing.T) {
	repo := NewFundamentalsRepository(setupUniverseDB(t), zerolog.Nop())

	err := repo.Insert(domain.Fundamentals{})
	assert.Error(t, err)
}

func TestFundamentalsInsertDefaultsCaptureTime(t *testing.T) {
	db := setupUniverseDB(t)
	securities := NewSecurityRepository(db, zerolog.Nop())
	repo := NewFundamentalsRepository(db, zerolog.Nop())
	seedSecurity(t, securities, "AAPL")

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, repo.Insert(domain.Fundamentals{Ticker: "AAPL"}))

	got, err := repo.LatestByTicker("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.CapturedAt.IsZero())
	assert.True(t, got.CapturedAt.After(before), "zero capture time defaults to now")
}
