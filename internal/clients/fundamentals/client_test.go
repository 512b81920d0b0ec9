package fundamentals

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/octave/internal/clientdata"
)

const cacheSchema = `
CREATE TABLE provider_profile (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE provider_fundamentals (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE provider_prices (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
`

func newCacheRepo(t *testing.T) *clientdata.Repository {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(cacheSchema)
	require.NoError(t, err)

	return clientdata.NewRepository(db)
}

func TestFetchSecurityDataDeterministic(t *testing.T) {
	client := NewClient(nil, zerolog.Nop())

	first, err := client.FetchSecurityData(context.Background(), "MSFT")
	require.NoError(t, err)
	second, err := client.FetchSecurityData(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, first.Security, second.Security)
	assert.Equal(t, *first.Fundamentals.ROIC, *second.Fundamentals.ROIC)
	assert.Equal(t, *first.Fundamentals.DebtToEBITDA, *second.Fundamentals.DebtToEBITDA)
	assert.Equal(t, first.Fundamentals.BuybackQuality, second.Fundamentals.BuybackQuality)
	assert.Equal(t, first.Fundamentals.MarketShareTrend, second.Fundamentals.MarketShareTrend)

	require.Equal(t, len(first.Prices), len(second.Prices))
	for i := range first.Prices {
		assert.Equal(t, first.Prices[i].Close, second.Prices[i].Close)
	}
}

func TestFetchSecurityDataDiffersByTicker(t *testing.T) {
	client := NewClient(nil, zerolog.Nop())

	msft, err := client.FetchSecurityData(context.Background(), "MSFT")
	require.NoError(t, err)
	jnj, err := client.FetchSecurityData(context.Background(), "JNJ")
	require.NoError(t, err)

	assert.NotEqual(t, *msft.Fundamentals.ROIC, *jnj.Fundamentals.ROIC)
	assert.NotEqual(t, msft.Prices[0].Close, jnj.Prices[0].Close)
}

func TestFetchSecurityDataKnownProfile(t *testing.T) {
	client := NewClient(nil, zerolog.Nop())

	data, err := client.FetchSecurityData(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, "Microsoft Corporation", data.Security.Name)
	assert.Equal(t, "Technology", data.Security.Sector)
	assert.Equal(t, "Software", data.Security.Industry)
}

func TestFetchSecurityDataUnknownTicker(t *testing.T) {
	client := NewClient(nil, zerolog.Nop())

	data, err := client.FetchSecurityData(context.Background(), "ZZZT")
	require.NoError(t, err)

	assert.Equal(t, "ZZZT Corporation", data.Security.Name)
	assert.Contains(t, fallbackSectors, data.Security.Sector)
	assert.NotEmpty(t, data.Security.Industry)
}

func TestFetchSecurityDataRanges(t *testing.T) {
	client := NewClient(nil, zerolog.Nop())

	for _, ticker := range []string{"MSFT", "AMZN", "V", "UNH", "GS"} {
		data, err := client.FetchSecurityData(context.Background(), ticker)
		require.NoError(t, err)

		f := data.Fundamentals
		require.NotNil(t, f.ROIC)
		require.NotNil(t, f.DebtToEBITDA)
		require.NotNil(t, f.ROE)
		require.NotNil(t, f.RevenueCAGR3Y)
		require.NotNil(t, f.RevenueGrowthPct)
		require.NotNil(t, f.RuleOf40)
		require.NotNil(t, f.GrossMarginPct)
		require.NotNil(t, f.GrossMarginPercentile)
		require.NotNil(t, f.FCFMargin)
		require.NotNil(t, f.FCF)
		require.NotNil(t, f.FCFMultiple)
		require.NotNil(t, f.TAMGrowth)

		assert.GreaterOrEqual(t, *f.ROIC, 0.10, ticker)
		assert.LessOrEqual(t, *f.ROIC, 0.45, ticker)
		assert.GreaterOrEqual(t, *f.DebtToEBITDA, -0.5, ticker)
		assert.LessOrEqual(t, *f.DebtToEBITDA, 3.0, ticker)
		assert.GreaterOrEqual(t, *f.GrossMarginPct, 20.0, ticker)
		assert.LessOrEqual(t, *f.GrossMarginPct, 80.0, ticker)
		assert.GreaterOrEqual(t, *f.GrossMarginPercentile, 0.0, ticker)
		assert.LessOrEqual(t, *f.GrossMarginPercentile, 100.0, ticker)
		assert.InDelta(t, *f.RevenueCAGR3Y*100+*f.FCFMargin*100, *f.RuleOf40, 1e-9, ticker)
		assert.Len(t, f.HistoricalMarginsPct, marginHistoryQuarters, ticker)
	}
}

func TestGeneratePricesShape(t *testing.T) {
	prices := generatePrices("MSFT", priceHistoryDays)

	require.Len(t, prices, priceHistoryDays)
	for i, p := range prices {
		assert.Greater(t, p.Close, 0.0)
		if i > 0 {
			assert.True(t, p.Date.After(prices[i-1].Date))
		}
	}
}

func TestGrossMarginPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sector string
		margin float64
		want   float64
	}{
		{"at p90 pins to 95", "Technology", 70, 95},
		{"above p90 pins to 95", "Technology", 82, 95},
		{"between p75 and p90", "Technology", 65, 87.5},
		{"at p50", "Technology", 45, 50},
		{"between p25 and p50", "Technology", 37.5, 37.5},
		{"below p25 scales to zero", "Technology", 15, 12.5},
		{"unknown sector uses default", "Unknown", 40, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, grossMarginPercentile(tt.sector, tt.margin), 1e-9)
		})
	}
}

func TestFetchSecurityDataUsesCache(t *testing.T) {
	repo := newCacheRepo(t)
	client := NewClient(repo, zerolog.Nop())

	first, err := client.FetchSecurityData(context.Background(), "NKE")
	require.NoError(t, err)

	// Second fetch must round-trip through the cache unchanged.
	second, err := client.FetchSecurityData(context.Background(), "NKE")
	require.NoError(t, err)

	assert.Equal(t, first.Security, second.Security)
	assert.Equal(t, *first.Fundamentals.GrossMarginPct, *second.Fundamentals.GrossMarginPct)
	assert.Equal(t, len(first.Prices), len(second.Prices))
}

func TestFetchSecurityDataEmptyTicker(t *testing.T) {
	client := NewClient(nil, zerolog.Nop())

	_, err := client.FetchSecurityData(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchSecurityDataCancelledContext(t *testing.T) {
	client := NewClient(nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchSecurityData(ctx, "MSFT")
	assert.ErrorIs(t, err, context.Canceled)
}
