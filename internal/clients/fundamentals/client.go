// Package fundamentals provides security profiles, fundamental metrics and
// price history for the scoring universe.
//
// Payloads are generated deterministically per ticker (seeded from the
// symbol) so repeated runs score identical inputs, and are cached through
// the clientdata repository like any other vendor response.
package fundamentals

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/octave/internal/clientdata"
	"github.com/aristath/octave/internal/domain"
	"github.com/rs/zerolog"
)

// Client serves market data for the scoring universe.
type Client struct {
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a new fundamentals client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "fundamentals").Logger(),
	}
}

// FetchSecurityData returns the profile, fundamentals and price history for
// one ticker.
func (c *Client) FetchSecurityData(ctx context.Context, ticker string) (*domain.SecurityData, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	security := c.profile(ticker)
	fund := c.fundamentals(ticker, security.Sector)
	prices := c.prices(ticker)

	return &domain.SecurityData{
		Security:     security,
		Fundamentals: fund,
		Prices:       prices,
	}, nil
}

func (c *Client) profile(ticker string) domain.Security {
	var cached domain.Security
	if c.cacheRepo != nil {
		found, err := c.cacheRepo.GetIfFresh("provider_profile", ticker, &cached)
		if err == nil && found {
			c.log.Debug().Str("ticker", ticker).Msg("Profile cache hit")
			return cached
		}
	}

	security := generateProfile(ticker)
	c.store("provider_profile", ticker, security, clientdata.TTLProfile)
	return security
}

func (c *Client) fundamentals(ticker, sector string) domain.Fundamentals {
	var cached domain.Fundamentals
	if c.cacheRepo != nil {
		found, err := c.cacheRepo.GetIfFresh("provider_fundamentals", ticker, &cached)
		if err == nil && found {
			c.log.Debug().Str("ticker", ticker).Msg("Fundamentals cache hit")
			return cached
		}
	}

	fund := generateFundamentals(ticker, sector)
	c.store("provider_fundamentals", ticker, fund, clientdata.TTLFundamentals)
	return fund
}

func (c *Client) prices(ticker string) []domain.PricePoint {
	var cached []domain.PricePoint
	if c.cacheRepo != nil {
		found, err := c.cacheRepo.GetIfFresh("provider_prices", ticker, &cached)
		if err == nil && found && len(cached) > 0 {
			c.log.Debug().Str("ticker", ticker).Int("days", len(cached)).Msg("Prices cache hit")
			return cached
		}
	}

	prices := generatePrices(ticker, priceHistoryDays)
	c.store("provider_prices", ticker, prices, clientdata.TTLPrices)
	return prices
}

func (c *Client) store(table, ticker string, data interface{}, ttl time.Duration) {
	if c.cacheRepo == nil {
		return
	}
	if err := c.cacheRepo.Store(table, ticker, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("ticker", ticker).Msg("Failed to cache payload")
	}
}
