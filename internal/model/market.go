package model

import (
	"sort"
	"time"
)

// Interval selects the granularity of a quote series.
type Interval string

const (
	Daily  Interval = "daily"
	Weekly Interval = "weekly"
)

// Quote represents a single OHLCV bar. Time is a unix timestamp in seconds.
type Quote struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// At returns the bar timestamp as a UTC time.
func (q Quote) At() time.Time {
	return time.Unix(q.Time, 0).UTC()
}

// SortQuotes orders a series by ascending timestamp.
func SortQuotes(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Time < quotes[j].Time })
}

// MergeQuotes upserts incoming bars into an existing series by timestamp.
// A bar in incoming replaces the stored bar with the same timestamp.
// The result is sorted ascending with no duplicate timestamps.
func MergeQuotes(existing, incoming []Quote) []Quote {
	byTime := make(map[int64]Quote, len(existing)+len(incoming))
	for _, q := range existing {
		byTime[q.Time] = q
	}
	for _, q := range incoming {
		byTime[q.Time] = q
	}
	merged := make([]Quote, 0, len(byTime))
	for _, q := range byTime {
		merged = append(merged, q)
	}
	SortQuotes(merged)
	return merged
}

// Closes extracts the close prices of a series.
func Closes(quotes []Quote) []float64 {
	closes := make([]float64, len(quotes))
	for i, q := range quotes {
		closes[i] = q.Close
	}
	return closes
}
