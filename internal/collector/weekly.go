package collector

import "TrendSentinel/internal/model"

// AggregateWeekly folds an ascending daily series into ISO-week bars. Each
// weekly bar carries the timestamp of its first trading day.
func AggregateWeekly(daily []model.Quote) []model.Quote {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.Quote
	week := daily[0]
	wy, ww := week.At().ISOWeek()

	for _, d := range daily[1:] {
		y, w := d.At().ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week = d
			wy, ww = y, w
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}
