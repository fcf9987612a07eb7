package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"TrendSentinel/internal/model"
)

// yahooSuffixes maps EOD exchange suffixes to Yahoo ones where they differ.
var yahooSuffixes = map[string]string{
	"XETRA": "DE",
	"LSE":   "L",
	"INDX":  "",
	"CC":    "",
}

// YahooFetcher implements Fetcher using Yahoo Finance.
type YahooFetcher struct {
	SymbolMap map[string]string // overrides by instrument id
}

// NewYahooFetcher creates a Yahoo Finance fetcher.
func NewYahooFetcher() *YahooFetcher {
	return &YahooFetcher{
		SymbolMap: map[string]string{
			"PX1": "^FCHI",
			"SPX": "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(ins model.Instrument) string {
	if mapped, ok := f.SymbolMap[ins.ID]; ok {
		return mapped
	}
	if ins.Market == "CC" {
		symbol, _, _ := strings.Cut(ins.ID, ".")
		return symbol
	}
	symbol, suffix, _ := strings.Cut(MapSymbol(ins), ".")
	if s, ok := yahooSuffixes[suffix]; ok {
		suffix = s
	}
	if suffix == "" || suffix == "NA" {
		return symbol
	}
	return symbol + "." + suffix
}

// FetchQuotes requests quotes one symbol at a time. Symbols that fail are
// skipped.
func (f *YahooFetcher) FetchQuotes(ctx context.Context, instruments []model.Instrument) ([]model.QuoteUpdate, error) {
	updates := make([]model.QuoteUpdate, 0, len(instruments))
	var lastErr error
	for _, ins := range instruments {
		if err := ctx.Err(); err != nil {
			return updates, err
		}
		q, err := quote.Get(f.yahooSymbol(ins))
		if err != nil {
			lastErr = err
			continue
		}
		if q == nil || q.RegularMarketPreviousClose == 0 {
			continue
		}
		last := q.RegularMarketPrice
		if last == 0 {
			last = q.RegularMarketPreviousClose
		}
		updates = append(updates, model.QuoteUpdate{
			ID: ins.ID,
			Quote: model.LiveQuote{
				Open:          q.RegularMarketOpen,
				PreviousClose: q.RegularMarketPreviousClose,
				Low:           q.RegularMarketDayLow,
				High:          q.RegularMarketDayHigh,
				Volume:        float64(q.RegularMarketVolume),
				Last:          last,
				LastTrade:     int64(q.RegularMarketTime),
			},
		})
	}
	if len(updates) == 0 && lastErr != nil {
		return nil, fmt.Errorf("yahoo quotes: %w", lastErr)
	}
	return updates, nil
}

// FetchHistory downloads daily bars and folds them into weeks when asked.
func (f *YahooFetcher) FetchHistory(ctx context.Context, ins model.Instrument, from time.Time, interval model.Interval) ([]model.Quote, error) {
	end := time.Now()
	iter := chart.Get(&chart.Params{
		Symbol:   f.yahooSymbol(ins),
		Start:    datetime.New(&from),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []model.Quote
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := iter.Bar()
		day := time.Unix(int64(b.Timestamp), 0).UTC()
		bar := model.Quote{
			Time:   time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Unix(),
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: float64(b.Volume),
		}
		if bar.Open == 0 && bar.High == 0 && bar.Low == 0 && bar.Close == 0 {
			continue
		}
		if adj := b.AdjClose.InexactFloat64(); adj != 0 && adj != bar.Close {
			bar.Open = adjust(bar.Open, adj, bar.Close)
			bar.High = adjust(bar.High, adj, bar.Close)
			bar.Low = adjust(bar.Low, adj, bar.Close)
			bar.Close = adj
		}
		bars = append(bars, bar)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo history %s: %w", ins.ID, err)
	}

	model.SortQuotes(bars)
	if interval == model.Weekly {
		return AggregateWeekly(bars), nil
	}
	return bars, nil
}
