package collector

import (
	"context"
	"sync"
	"time"

	"TrendSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Quotes map[string]model.LiveQuote
	Daily  []model.Quote
	Weekly []model.Quote
	Err    error
	Calls  int

	mu sync.Mutex
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchQuotes(_ context.Context, instruments []model.Instrument) ([]model.QuoteUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	updates := make([]model.QuoteUpdate, 0, len(instruments))
	for _, ins := range instruments {
		q, ok := m.Quotes[ins.ID]
		if !ok {
			if m.Quotes != nil || m.Price == 0 {
				continue
			}
			q = model.LiveQuote{
				Open:          m.Price,
				PreviousClose: m.Price,
				Low:           m.Price * 0.99,
				High:          m.Price * 1.01,
				Volume:        1000000,
				Last:          m.Price,
			}
		}
		updates = append(updates, model.QuoteUpdate{ID: ins.ID, Quote: q})
	}
	return updates, nil
}

func (m *MockFetcher) FetchHistory(_ context.Context, _ model.Instrument, from time.Time, interval model.Interval) ([]model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	switch {
	case interval == model.Daily && m.Daily != nil:
		return m.Daily, nil
	case interval == model.Weekly && m.Weekly != nil:
		return m.Weekly, nil
	case m.Price == 0:
		return nil, nil
	}
	daily := generateMockBars(m.Price, from, time.Now())
	if interval == model.Weekly {
		return AggregateWeekly(daily), nil
	}
	return daily, nil
}

func generateMockBars(basePrice float64, from, to time.Time) []model.Quote {
	var bars []model.Quote
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; !day.After(to); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i%40-20)*0.001)
		bars = append(bars, model.Quote{
			Time:   day.Unix(),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return bars
}
