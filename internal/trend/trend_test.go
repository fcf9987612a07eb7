package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/model"
)

// Monday 2020-01-06.
var baseWeek = time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)

func week(i int) int64 { return baseWeek.AddDate(0, 0, 7*i).Unix() }

func neutralEngine(t *testing.T) *Engine {
	t.Helper()
	policy, err := NewBreakout("neutral", Params{
		MAPeriod:          30,
		BreakoutPeriod:    8,
		ResistanceDamping: 1,
		StopRatchet:       1,
		FridayStopRatchet: 1,
		LongLowerFloor:    0.85,
	})
	require.NoError(t, err)
	return NewEngine(policy)
}

// breakoutSeries is 35 flat weeks, a breakout week, three rising weeks and a crash.
func breakoutSeries() []model.Quote {
	var bars []model.Quote
	for i := 0; i < 35; i++ {
		bars = append(bars, model.Quote{Time: week(i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 500})
	}
	bars = append(bars, model.Quote{Time: week(35), Open: 100, High: 111, Low: 99.5, Close: 110, Volume: 900})
	for i := 36; i < 39; i++ {
		bars = append(bars, model.Quote{Time: week(i), Open: 110, High: 115, Low: 108, Close: 112, Volume: 700})
	}
	bars = append(bars, model.Quote{Time: week(39), Open: 95, High: 96, Low: 80, Close: 82, Volume: 1500})
	return bars
}

func TestAdvanceBreakoutAndExit(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()
	now := time.Unix(week(40), 0)

	entry := e.Advance(weekly[:36], nil, model.IndicatorState{}, nil, now)
	assert.True(t, entry.Long)
	assert.Equal(t, week(35), entry.FlipDate)
	assert.InDelta(t, 101.0, entry.FlipPrice, 1e-9, "breakout price is the channel upper when the open is below it")
	assert.InDelta(t, 99.5*0.95, entry.Stop, 1e-9)
	assert.Equal(t, float64(resistanceCleared), entry.Breakout)

	exit := e.Advance(weekly, nil, model.IndicatorState{}, nil, now)
	assert.False(t, exit.Long)
	assert.Equal(t, week(39), exit.FlipDate)
	assert.InDelta(t, 94.525, exit.FlipPrice, 1e-9, "exit at the stop when the open gaps below it")
	assert.InDelta(t, 94.525, exit.Stop, 1e-9)
	assert.InDelta(t, 115.0, exit.Breakout, 1e-9)
	assert.Equal(t, now.Unix(), exit.Watermark)
}

func TestAdvanceGapUpEntryUsesOpen(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()[:35]
	weekly = append(weekly, model.Quote{Time: week(35), Open: 104, High: 111, Low: 103, Close: 110})

	s := e.Advance(weekly, nil, model.IndicatorState{}, nil, time.Unix(week(36), 0))
	require.True(t, s.Long)
	assert.InDelta(t, 104.0, s.FlipPrice, 1e-9)
	assert.InDelta(t, 103*0.95, s.Stop, 1e-9)
}

// partialWeek is bar as seen early in its week: only the open has traded,
// with a stray low the final bar does not keep.
func partialWeek(bar model.Quote) model.Quote {
	return model.Quote{Time: bar.Time, Open: bar.Open, High: bar.Open, Low: bar.Open * 0.5, Close: bar.Open, Volume: bar.Volume / 5}
}

func assertSameRegime(t *testing.T, want, got model.IndicatorState) {
	t.Helper()
	assert.Equal(t, want.Long, got.Long)
	assert.Equal(t, want.FlipDate, got.FlipDate)
	assert.InDelta(t, want.FlipPrice, got.FlipPrice, 1e-9)
	assert.InDelta(t, want.Stop, got.Stop, 1e-9)
	assert.InDelta(t, want.Breakout, got.Breakout, 1e-9)
	assert.Equal(t, want.Checkpoint, got.Checkpoint)
}

func TestAdvanceIncrementalMatchesFullScan(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()
	now := time.Unix(week(40), 0)

	full := e.Advance(weekly, nil, model.IndicatorState{}, nil, now)

	// each week is seen on Monday evening while in progress, then again on
	// Friday once settled; the watermark is the run time, as persisted.
	s := model.IndicatorState{}
	for i := 30; i <= len(weekly); i++ {
		bars := append([]model.Quote(nil), weekly[:i]...)
		open := bars[i-1].At()

		bars[i-1] = partialWeek(weekly[i-1])
		s = e.Advance(bars, nil, s, nil, open.Add(18*time.Hour))

		s = e.Advance(weekly[:i], nil, s, nil, open.AddDate(0, 0, 4))
		assert.Equal(t, open.AddDate(0, 0, 4).Unix(), s.Watermark)
	}
	assertSameRegime(t, full, s)
}

func TestAdvanceSettlesRevisedLatestWeek(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()[:36]
	monday := weekly[35].At().Add(18 * time.Hour)
	friday := weekly[35].At().AddDate(0, 0, 4)

	partial := append([]model.Quote(nil), weekly...)
	partial[35] = model.Quote{Time: week(35), Open: 100, High: 100.5, Low: 99.5, Close: 100}
	early := e.Advance(partial, nil, model.IndicatorState{}, nil, monday)
	require.False(t, early.Long)
	require.NotNil(t, early.Checkpoint)
	assert.Equal(t, week(35), early.Checkpoint.Time)

	settled := e.Advance(weekly, nil, early, nil, friday)
	fresh := e.Advance(weekly, nil, model.IndicatorState{}, nil, friday)
	assert.True(t, settled.Long, "the final close of the week breaks out")
	assertSameRegime(t, fresh, settled)
}

func TestAdvanceRevisionUndoesPartialExit(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()[:38]
	monday := weekly[37].At().Add(18 * time.Hour)

	partial := append([]model.Quote(nil), weekly...)
	partial[37] = partialWeek(weekly[37])
	early := e.Advance(partial, nil, model.IndicatorState{}, nil, monday)
	require.False(t, early.Long, "the stray low exits")

	settled := e.Advance(weekly, nil, early, nil, monday.AddDate(0, 0, 4))
	assert.True(t, settled.Long)
	assertSameRegime(t, e.Advance(weekly, nil, model.IndicatorState{}, nil, monday), settled)
}

func TestAdvanceWithoutCheckpointReplaysLatestBar(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()[:36]
	flat := e.Advance(weekly[:35], nil, model.IndicatorState{}, nil, time.Unix(week(35), 0))
	flat.Checkpoint = nil
	flat.Watermark = week(36)

	s := e.Advance(weekly, nil, flat, nil, time.Unix(week(36), 0))
	assert.True(t, s.Long)
	assert.Equal(t, week(35), s.FlipDate)
}

func TestAdvanceReplayIsIdempotent(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()
	daily := []model.Quote{{Time: 1, High: 10, Low: 9, Close: 9.5}}
	now := time.Unix(week(40), 0)

	first := e.Advance(weekly, daily, model.IndicatorState{}, nil, now)

	replay := first.Clone()
	replay.Watermark = weekly[len(weekly)-1].Time
	second := e.Advance(weekly, daily, replay, nil, now)

	assert.Equal(t, first, second)
}

func TestAdvanceShortHistoryOnlyTouchesWatermark(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()[:29]
	in := model.IndicatorState{Watermark: 5, Long: false, Breakout: 123, FlipDate: 7, FlipPrice: 99}
	now := time.Unix(week(30), 0)

	out := e.Advance(weekly, nil, in, nil, now)
	assert.Equal(t, now.Unix(), out.Watermark)
	assert.Equal(t, in.Long, out.Long)
	assert.Equal(t, in.Breakout, out.Breakout)
	assert.Equal(t, in.FlipDate, out.FlipDate)
	assert.Equal(t, in.FlipPrice, out.FlipPrice)
	assert.Equal(t, in.Stop, out.Stop)
}

func TestAdvanceEmptyWeekly(t *testing.T) {
	e := neutralEngine(t)
	in := model.IndicatorState{Watermark: 10, Long: true, Stop: 50}
	out := e.Advance(nil, nil, in, nil, time.Unix(1000, 0))
	in.Watermark = 1000
	assert.Equal(t, in, out)
}

func TestAdvanceWatermarkIsMonotonic(t *testing.T) {
	e := neutralEngine(t)
	future := week(100)
	out := e.Advance(breakoutSeries(), nil, model.IndicatorState{Watermark: future}, nil, time.Unix(week(40), 0))
	assert.Equal(t, future, out.Watermark)
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	e := neutralEngine(t)
	in := model.IndicatorState{Closes: []*float64{model.Float(1)}}
	_ = e.Advance(breakoutSeries(), nil, in, nil, time.Unix(week(40), 0))
	require.Len(t, in.Closes, 1)
	assert.Equal(t, 1.0, *in.Closes[0])
	assert.Zero(t, in.Watermark)
}

func TestAdvanceAuxiliaryFields(t *testing.T) {
	e := neutralEngine(t)
	weekly := breakoutSeries()
	daily := []model.Quote{
		{Time: 1, High: 10, Low: 9, Close: 9},
		{Time: 2, High: 8, Low: 7, Close: 8},
		{Time: 3, High: 14, Low: 13, Close: 13},
	}
	live := &model.LiveQuote{Last: 11}

	s := e.Advance(weekly, daily, model.IndicatorState{}, live, time.Unix(week(40), 0))
	assert.InDelta(t, 700.0/5, s.AvgVolume, 1e-9)

	require.Len(t, s.Closes, 9)
	assert.Equal(t, 112.0, *s.Closes[0])
	assert.Equal(t, 112.0, *s.Closes[1])
	assert.Equal(t, 100.0, *s.Closes[4])
	assert.Nil(t, s.Closes[5], "52 weeks back is beyond the history")
	assert.Equal(t, 95.0, *s.Closes[8], "current week open")

	require.Len(t, s.MovingAverages, 5)
	for _, m := range s.MovingAverages {
		assert.Nil(t, m)
	}

	assert.Nil(t, s.GapBelow)
	require.NotNil(t, s.GapAbove)
	assert.Equal(t, model.Gap{Time: 2, From: 8, To: 13}, *s.GapAbove)
}

func TestAdvanceKeepsGapsWithoutLivePrice(t *testing.T) {
	e := neutralEngine(t)
	prev := &model.Gap{Time: 1, From: 2, To: 3}
	s := e.Advance(breakoutSeries(), nil, model.IndicatorState{GapAbove: prev}, nil, time.Unix(week(40), 0))
	require.NotNil(t, s.GapAbove)
	assert.Equal(t, *prev, *s.GapAbove)
}
