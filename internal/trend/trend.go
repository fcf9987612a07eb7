// Package trend advances the weekly channel-breakout state of an instrument.
package trend

import (
	"math"
	"sort"
	"time"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/model"
)

const (
	entryStopFactor    = 0.85
	entryLowStopFactor = 0.95
	// resistanceCleared marks bk while long.
	resistanceCleared = -1
)

// Engine runs the regime state machine with a channel policy.
type Engine struct {
	policy ChannelPolicy
}

// NewEngine creates an engine using policy.
func NewEngine(policy ChannelPolicy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the channel policy in use.
func (e *Engine) Policy() ChannelPolicy { return e.policy }

// Advance replays weekly bars onto state, then refreshes the descriptors
// derived from the full series. live may be nil. The latest bar is replayed
// on every call from the checkpoint taken before it, so a week still in
// progress is settled by its final values. The returned state has its
// watermark set to now. Advance never mutates its inputs and never panics on
// short or empty series.
func (e *Engine) Advance(weekly, daily []model.Quote, state model.IndicatorState, live *model.LiveQuote, now time.Time) model.IndicatorState {
	s := state.Clone()
	if len(weekly) == 0 {
		s.Watermark = e.watermark(state, now)
		return s
	}

	last := len(weekly) - 1
	for i := resume(&s, weekly); i <= last; i++ {
		bar := weekly[i]
		if i == last {
			s.Checkpoint = checkpoint(s, bar.Time)
		}
		ch, ok := e.policy.Channel(weekly[:i+1], s)
		if !ok {
			continue
		}
		step(&s, bar, ch)
	}

	if n := len(weekly); n >= 2 {
		s.AvgVolume = weekly[n-2].Volume / 5
		s.Closes = ClosesSnapshot(weekly)
	}
	if live != nil && live.Last != 0 {
		s.GapBelow, s.GapAbove = NearestGaps(FindGaps(daily), live.Last)
	}
	s.MovingAverages = calculator.MovingAverages(daily, model.MovingAveragePeriods)
	s.Watermark = e.watermark(state, now)
	return s
}

func (e *Engine) watermark(state model.IndicatorState, now time.Time) int64 {
	if ts := now.Unix(); ts > state.Watermark {
		return ts
	}
	return state.Watermark
}

// resume returns the index of the first bar to replay. A checkpoint whose bar
// is still in weekly rewinds s to the regime before that bar. Otherwise the
// scan starts at the first bar at or after the watermark, and never after the
// latest bar.
func resume(s *model.IndicatorState, weekly []model.Quote) int {
	n := len(weekly)
	if cp := s.Checkpoint; cp != nil {
		if i := sort.Search(n, func(i int) bool { return weekly[i].Time >= cp.Time }); i < n {
			s.Long = cp.Long
			s.FlipDate = cp.FlipDate
			s.FlipPrice = cp.FlipPrice
			s.Stop = cp.Stop
			s.Breakout = cp.Breakout
			return i
		}
	}
	i := sort.Search(n, func(i int) bool { return weekly[i].Time >= s.Watermark })
	return min(i, n-1)
}

func checkpoint(s model.IndicatorState, t int64) *model.Checkpoint {
	return &model.Checkpoint{
		Time:      t,
		Long:      s.Long,
		FlipDate:  s.FlipDate,
		FlipPrice: s.FlipPrice,
		Stop:      s.Stop,
		Breakout:  s.Breakout,
	}
}

func step(s *model.IndicatorState, bar model.Quote, ch Channel) {
	switch {
	case !s.Long && bar.Close >= ch.Upper:
		buy := math.Max(bar.Open, ch.Upper)
		s.Long = true
		s.FlipDate = bar.Time
		s.FlipPrice = buy
		s.Stop = math.Max(buy*entryStopFactor, bar.Low*entryLowStopFactor)
		s.Breakout = resistanceCleared
	case s.Long && bar.Low < ch.Lower:
		s.Long = false
		s.FlipDate = bar.Time
		s.FlipPrice = math.Min(bar.Open, ch.Lower)
		s.Stop = ch.Lower
		s.Breakout = ch.Upper
	case s.Long:
		s.Stop = ch.Lower
	default:
		s.Breakout = ch.Upper
	}
}

// ClosesSnapshot returns the closes at the standard weekly look-backs from
// the latest bar, followed by the latest bar's open. Look-backs beyond the
// history are nil. weekly must hold at least 2 bars.
func ClosesSnapshot(weekly []model.Quote) []*float64 {
	n := len(weekly)
	out := make([]*float64, 0, len(model.SnapshotLookbacks)+1)
	for _, back := range model.SnapshotLookbacks {
		if n > back {
			out = append(out, model.Float(weekly[n-1-back].Close))
		} else {
			out = append(out, nil)
		}
	}
	return append(out, model.Float(weekly[n-1].Open))
}
