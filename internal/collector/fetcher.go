// Package collector fetches live quotes and price history from market data
// providers.
package collector

import (
	"context"
	"fmt"
	"time"

	"TrendSentinel/internal/model"
)

// Fetcher is a quote source. Garbled provider responses yield empty results
// rather than errors; errors are reserved for transport failures.
type Fetcher interface {
	Name() string
	FetchQuotes(ctx context.Context, instruments []model.Instrument) ([]model.QuoteUpdate, error)
	FetchHistory(ctx context.Context, ins model.Instrument, from time.Time, interval model.Interval) ([]model.Quote, error)
}

// Config selects and configures a quote source.
type Config struct {
	Source   string
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// New builds the fetcher named by cfg.Source.
func New(cfg Config) (Fetcher, error) {
	switch cfg.Source {
	case "eod", "":
		return NewEODFetcher(cfg.BaseURL, cfg.APIToken, cfg.Timeout), nil
	case "yahoo":
		return NewYahooFetcher(), nil
	case "mock":
		return &MockFetcher{Price: 100}, nil
	}
	return nil, fmt.Errorf("unknown quote source %q", cfg.Source)
}
