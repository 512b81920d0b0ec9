package domain

import "context"

// MarketDataProvider supplies security metadata, fundamentals, and a recent
// price series for one ticker. Implementations are expected to be safe for
// concurrent use and to honor ctx cancellation on any network I/O.
//
// A provider failure for one ticker is a per-security condition: callers skip
// the ticker and continue the batch.
type MarketDataProvider interface {
	FetchSecurityData(ctx context.Context, ticker string) (*SecurityData, error)
}
