// Package screener filters instruments by trend and volume rules.
package screener

import (
	"time"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/model"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
)

// Augmented is an instrument with derived screening metrics. A nil metric
// could not be computed.
type Augmented struct {
	Instrument       model.Instrument `json:"instrument"`
	Percent          *float64         `json:"percent"`
	TrendPerformance *float64         `json:"trendPerformance"`
	TrendSpeed       *float64         `json:"trendSpeed"`
	ReversePercent   *float64         `json:"reversePercent"`
	Ave              *float64         `json:"ave"`
	VolEvol          *float64         `json:"volEvol"`
}

// Augment derives the screening metrics of ins at now.
func Augment(ins model.Instrument, now time.Time) Augmented {
	a := Augmented{Instrument: ins}
	li, in := ins.Live, ins.Indicator
	if li == nil || li.Last == 0 {
		return a
	}
	if li.PreviousClose != 0 {
		a.Percent = model.Float(calculator.PercentChange(li.PreviousClose, li.Last))
	}
	if in == nil {
		return a
	}
	if in.FlipDate != 0 && in.FlipPrice != 0 {
		perf := calculator.PercentChange(in.FlipPrice, li.Last)
		a.TrendPerformance = model.Float(perf)
		if months := float64(now.Unix()-in.FlipDate) / month.Seconds(); months != 0 {
			a.TrendSpeed = model.Float(perf / months)
		}
	}
	if in.Breakout != 0 {
		a.ReversePercent = model.Float(calculator.PercentChange(in.Breakout, li.Last))
	}
	if li.Volume != 0 && in.AvgVolume != 0 {
		a.Ave = model.Float(li.Volume * li.Last / 1000)
		a.VolEvol = model.Float(li.Volume / in.AvgVolume)
	}
	return a
}

// AugmentAll augments every instrument.
func AugmentAll(instruments []model.Instrument, now time.Time) []Augmented {
	out := make([]Augmented, len(instruments))
	for i, ins := range instruments {
		out[i] = Augment(ins, now)
	}
	return out
}

// age is the time elapsed since the last regime flip.
func age(in *model.IndicatorState, now time.Time) time.Duration {
	return time.Duration(now.Unix()-in.FlipDate) * time.Second
}

func value(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
