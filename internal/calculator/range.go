package calculator

import (
	"errors"
	"math"

	"TrendSentinel/internal/model"
)

// HighLow scans the most recent n bars and returns the highest high and lowest low.
func HighLow(bars []model.Quote, n int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	if n <= 0 {
		return 0, 0, ErrPeriod
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range Last(bars, n) {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, nil
}

// PercentChange returns (to-from)/from in percent, or 0 when from is zero.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
