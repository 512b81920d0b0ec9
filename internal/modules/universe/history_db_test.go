package universe

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/octave/internal/domain"
)

func setupHistoryDB(t *testing.T) *HistoryDB {
	db, err := OpenHistoryDB(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return NewHistoryDB(db, zerolog.Nop())
}

// daysAgo returns a trading-day timestamp aligned to whole seconds so unix
// storage round-trips exactly.
func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n).Truncate(time.Second)
}

func TestSavePricesAndRecentCloses(t *testing.T) {
	h := setupHistoryDB(t)

	prices := []domain.PricePoint{
		{Date: daysAgo(3), Close: 101.5},
		{Date: daysAgo(2), Close: 103.0},
		{Date: daysAgo(1), Close: 102.25},
	}
	require.NoError(t, h.SavePrices("AAPL", prices))

	closes, err := h.RecentCloses("AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{101.5, 103.0, 102.25}, closes, "closes come back oldest first")
}

func TestSavePricesReplacesSameDay(t *testing.T) {
	h := setupHistoryDB(t)
	day := daysAgo(1)

	require.NoError(t, h.SavePrices("AAPL", []domain.PricePoint{{Date: day, Close: 100}}))
	require.NoError(t, h.SavePrices("AAPL", []domain.PricePoint{{Date: day, Close: 105}}))

	closes, err := h.RecentCloses("AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{105}, closes, "re-syncing a day replaces the row")
}

func TestRecentClosesRespectsWindow(t *testing.T) {
	h := setupHistoryDB(t)

	require.NoError(t, h.SavePrices("AAPL", []domain.PricePoint{
		{Date: daysAgo(400), Close: 80},
		{Date: daysAgo(5), Close: 100},
		{Date: daysAgo(1), Close: 110},
	}))

	closes, err := h.RecentCloses("AAPL", 30)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 110}, closes)
}

func TestRecentClosesUnknownTickerIsEmpty(t *testing.T) {
	h := setupHistoryDB(t)

	closes, err := h.RecentCloses("NOPE", 30)
	require.NoError(t, err)
	assert.Empty(t, closes)
}

func TestSavePricesNormalizesTicker(t *testing.T) {
	h := setupHistoryDB(t)

	require.NoError(t, h.SavePrices("  nvda ", []domain.PricePoint{{Date: daysAgo(1), Close: 42}}))

	closes, err := h.RecentCloses("NVDA", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{42}, closes)
}

func TestSavePricesValidation(t *testing.T) {
	h := setupHistoryDB(t)

	assert.Error(t, h.SavePrices("  ", []domain.PricePoint{{Date: daysAgo(1), Close: 1}}))
	assert.NoError(t, h.SavePrices("AAPL", nil), "an empty batch is a no-op")
}

func TestRecentPricesNewestFirst(t *testing.T) {
	h := setupHistoryDB(t)

	require.NoError(t, h.SavePrices("AAPL", []domain.PricePoint{
		{Date: daysAgo(3), Close: 101.5},
		{Date: daysAgo(2), Close: 103.0},
		{Date: daysAgo(1), Close: 102.25},
	}))

	prices, err := h.RecentPrices("AAPL", 2)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.InDelta(t, 102.25, prices[0].Close, 1e-12)
	assert.InDelta(t, 103.0, prices[1].Close, 1e-12)
	assert.True(t, prices[0].Date.After(prices[1].Date))
}

func TestLatestDate(t *testing.T) {
	h := setupHistoryDB(t)

	latest, err := h.LatestDate("AAPL")
	require.NoError(t, err)
	assert.True(t, latest.IsZero(), "no history yields the zero time")

	newest := daysAgo(1)
	require.NoError(t, h.SavePrices("AAPL", []domain.PricePoint{
		{Date: daysAgo(5), Close: 100},
		{Date: newest, Close: 110},
	}))

	latest, err = h.LatestDate("AAPL")
	require.NoError(t, err)
	assert.True(t, latest.Equal(newest))
}

func TestDeleteOlderThan(t *testing.T) {
	h := setupHistoryDB(t)

	require.NoError(t, h.SavePrices("AAPL", []domain.PricePoint{
		{Date: daysAgo(500), Close: 80},
		{Date: daysAgo(499), Close: 81},
		{Date: daysAgo(1), Close: 110},
	}))

	deleted, err := h.DeleteOlderThan(daysAgo(400))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	closes, err := h.RecentCloses("AAPL", 600)
	require.NoError(t, err)
	assert.Equal(t, []float64{110}, closes)
}
