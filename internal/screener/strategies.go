package screener

import (
	"time"

	"TrendSentinel/internal/model"
)

// Strategy is one screening rule.
type Strategy interface {
	Name() string
	Title() string
	DefaultSort() (SortItem, Order)
	Match(a Augmented, now time.Time) bool
}

// Filter returns the augmented instruments matching s.
func Filter(s Strategy, instruments []model.Instrument, now time.Time) []Augmented {
	var out []Augmented
	for _, a := range AugmentAll(instruments, now) {
		if s.Match(a, now) {
			out = append(out, a)
		}
	}
	return out
}

// hasTrend reports whether the live price and flip fields are all set.
func hasTrend(a Augmented, needBreakout bool) bool {
	li, in := a.Instrument.Live, a.Instrument.Indicator
	if li == nil || in == nil || li.Last == 0 || in.FlipDate == 0 || in.FlipPrice == 0 {
		return false
	}
	return !needBreakout || in.Breakout != 0
}

// HighVolumes spots sessions trading over three times the average volume.
type HighVolumes struct{}

func (HighVolumes) Name() string                   { return "action" }
func (HighVolumes) Title() string                  { return "High volumes" }
func (HighVolumes) DefaultSort() (SortItem, Order) { return SortVolEvol, Desc }

func (HighVolumes) Match(a Augmented, _ time.Time) bool {
	li, in := a.Instrument.Live, a.Instrument.Indicator
	if li == nil || in == nil || li.Last == 0 || li.Volume == 0 || in.AvgVolume == 0 || in.FlipPrice == 0 || in.Breakout == 0 {
		return false
	}
	return li.Volume > in.AvgVolume*3 && in.AvgVolume*li.Last > 20000
}

// ReversalSoon lists flat instruments trading just under their breakout.
type ReversalSoon struct{}

func (ReversalSoon) Name() string                   { return "soon" }
func (ReversalSoon) Title() string                  { return "Reversal soon" }
func (ReversalSoon) DefaultSort() (SortItem, Order) { return SortProximity, Desc }

func (ReversalSoon) Match(a Augmented, _ time.Time) bool {
	if !hasTrend(a, true) || a.Instrument.Indicator.Long {
		return false
	}
	rp, ok := value(a.ReversePercent)
	return ok && rp != 0 && rp > -3 && a.Instrument.Live.Last < a.Instrument.Indicator.Breakout
}

// FastTrends lists long trends gaining over 50% a month.
type FastTrends struct{}

func (FastTrends) Name() string                   { return "speed" }
func (FastTrends) Title() string                  { return "Fast trends" }
func (FastTrends) DefaultSort() (SortItem, Order) { return SortSpeed, Desc }

func (FastTrends) Match(a Augmented, now time.Time) bool {
	if !hasTrend(a, true) || !a.Instrument.Indicator.Long {
		return false
	}
	speed, ok := value(a.TrendSpeed)
	return ok && speed > 50 && age(a.Instrument.Indicator, now) > day
}

// LongTrends lists long trends older than a month still gaining 20% a month.
type LongTrends struct{}

func (LongTrends) Name() string                   { return "strong" }
func (LongTrends) Title() string                  { return "Long trends" }
func (LongTrends) DefaultSort() (SortItem, Order) { return SortDuration, Asc }

func (LongTrends) Match(a Augmented, now time.Time) bool {
	if !hasTrend(a, false) || !a.Instrument.Indicator.Long {
		return false
	}
	speed, ok := value(a.TrendSpeed)
	return ok && speed > 20 && age(a.Instrument.Indicator, now) > month
}

// YoungTrends lists non-negative long trends started within a week.
type YoungTrends struct{}

func (YoungTrends) Name() string                   { return "young" }
func (YoungTrends) Title() string                  { return "Young trends" }
func (YoungTrends) DefaultSort() (SortItem, Order) { return SortPerf, Desc }

func (YoungTrends) Match(a Augmented, now time.Time) bool {
	if !hasTrend(a, true) || !a.Instrument.Indicator.Long {
		return false
	}
	speed, ok := value(a.TrendSpeed)
	return ok && speed >= 0 && age(a.Instrument.Indicator, now) < 7*day
}
