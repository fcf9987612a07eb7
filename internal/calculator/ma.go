package calculator

import (
	"errors"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"TrendSentinel/internal/model"
)

var (
	ErrPeriod        = errors.New("period must be positive")
	ErrNotEnoughData = errors.New("not enough data")
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrPeriod
	}
	if len(prices) < period {
		return 0, ErrNotEnoughData
	}
	if period == 1 {
		return prices[len(prices)-1], nil
	}
	sma := talib.Sma(prices, period)
	last := sma[len(sma)-1]
	if math.IsNaN(last) {
		return 0, ErrNotEnoughData
	}
	return last, nil
}

// Mean returns the arithmetic mean of values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// MovingAverages returns the close SMA for each period, nil where the series
// is too short.
func MovingAverages(bars []model.Quote, periods []int) []*float64 {
	closes := model.Closes(bars)
	out := make([]*float64, len(periods))
	for i, p := range periods {
		if v, err := CalculateSMA(closes, p); err == nil {
			out[i] = model.Float(v)
		}
	}
	return out
}

// Sum adds up values.
func Sum(values []float64) float64 {
	return floats.Sum(values)
}

// Last returns the trailing n items of values, or all of them when shorter.
func Last[T any](values []T, n int) []T {
	if n >= len(values) {
		return values
	}
	if n <= 0 {
		return values[:0]
	}
	return values[len(values)-n:]
}
