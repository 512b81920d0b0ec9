package clientdata

import "time"

// TTL constants for provider data.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Company identity (name, sector, industry) rarely changes
	TTLProfile = 30 * 24 * time.Hour

	// Fundamentals move with filings; a day is fresh enough for nightly runs
	TTLFundamentals = 24 * time.Hour

	// Price series feed volatility only, intraday precision is irrelevant
	TTLPrices = 6 * time.Hour
)
