package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TrendSentinel/internal/cache"
	"TrendSentinel/internal/model"
)

// CachedFetcher memoizes history responses. Live quotes always go upstream.
type CachedFetcher struct {
	Fetcher
	cache cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedFetcher wraps f with a history cache.
func NewCachedFetcher(f Fetcher, c cache.Cache, ttl time.Duration, log zerolog.Logger) *CachedFetcher {
	return &CachedFetcher{
		Fetcher: f,
		cache:   c,
		ttl:     ttl,
		log:     log.With().Str("component", "history-cache").Logger(),
	}
}

func historyKey(source string, ins model.Instrument, from time.Time, interval model.Interval) string {
	return fmt.Sprintf("history:%s:%s:%s:%s", source, ins.ID, interval, from.Format("2006-01-02"))
}

func (c *CachedFetcher) FetchHistory(ctx context.Context, ins model.Instrument, from time.Time, interval model.Interval) ([]model.Quote, error) {
	key := historyKey(c.Fetcher.Name(), ins, from, interval)

	var cached []model.Quote
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	quotes, err := c.Fetcher.FetchHistory(ctx, ins, from, interval)
	if err != nil {
		return nil, err
	}
	if len(quotes) > 0 {
		if err := c.cache.Set(ctx, key, quotes, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return quotes, nil
}
