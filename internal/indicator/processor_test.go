package indicator

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/docstore"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/store"
	"TrendSentinel/internal/trend"
)

var baseWeek = time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)

func week(i int) int64 { return baseWeek.AddDate(0, 0, 7*i).Unix() }

func weeklySeries() []model.Quote {
	var bars []model.Quote
	for i := 0; i < 35; i++ {
		bars = append(bars, model.Quote{Time: week(i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 500})
	}
	bars = append(bars, model.Quote{Time: week(35), Open: 100, High: 111, Low: 99.5, Close: 110, Volume: 900})
	for i := 36; i < 39; i++ {
		bars = append(bars, model.Quote{Time: week(i), Open: 110, High: 115, Low: 108, Close: 112, Volume: 700})
	}
	return append(bars, model.Quote{Time: week(39), Open: 95, High: 96, Low: 80, Close: 82, Volume: 1500})
}

func dailySeries() []model.Quote {
	var bars []model.Quote
	for i := 0; i < 10; i++ {
		t := baseWeek.AddDate(0, 0, 7*39+i).Unix()
		bars = append(bars, model.Quote{Time: t, Open: 82, High: 84, Low: 81, Close: 83, Volume: 100})
	}
	return bars
}

type fixture struct {
	repo    *store.Repository
	fetcher *collector.MockFetcher
	proc    *Processor
	now     time.Time
}

func newFixture(t *testing.T, instruments []model.Instrument) *fixture {
	t.Helper()
	repo := store.New(docstore.NewMemoryStore())
	require.NoError(t, repo.SaveInstruments(context.Background(), model.Equities, instruments))

	policy, err := trend.NewBreakout("neutral", trend.Params{
		MAPeriod:          30,
		BreakoutPeriod:    8,
		ResistanceDamping: 1,
		StopRatchet:       1,
		FridayStopRatchet: 1,
		LongLowerFloor:    0.85,
	})
	require.NoError(t, err)

	fetcher := &collector.MockFetcher{Weekly: weeklySeries(), Daily: dailySeries()}
	proc := NewProcessor(repo, fetcher, trend.NewEngine(policy), Config{}, zerolog.Nop(), nil)
	now := time.Unix(week(41), 0)
	proc.now = func() time.Time { return now }
	return &fixture{repo: repo, fetcher: fetcher, proc: proc, now: now}
}

func byISIN(instruments []model.Instrument) map[string]model.Instrument {
	out := make(map[string]model.Instrument, len(instruments))
	for _, ins := range instruments {
		out[ins.ISIN] = ins
	}
	return out
}

func TestSelect(t *testing.T) {
	instruments := []model.Instrument{
		{ID: "fresh", Live: &model.LiveQuote{Time: 10}, Indicator: &model.IndicatorState{Watermark: 50}},
		{ID: "stale", Live: &model.LiveQuote{Time: 100}, Indicator: &model.IndicatorState{Watermark: 50}},
		{ID: "older", Live: &model.LiveQuote{Time: 100}, Indicator: &model.IndicatorState{Watermark: 20}},
		{ID: "nolive", Indicator: &model.IndicatorState{Watermark: 30}},
		{ID: "noindicator", Live: &model.LiveQuote{Time: 100}},
		{ID: model.ExcludedID},
	}

	ids := func(list []model.Instrument) []string {
		var out []string
		for _, ins := range list {
			out = append(out, ins.ID)
		}
		return out
	}

	assert.Equal(t, []string{"noindicator", "older", "nolive", "stale"}, ids(Select(instruments, 0)))
	assert.Equal(t, []string{"noindicator", "older"}, ids(Select(instruments, 2)))
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Instrument{
		{ID: "a", ISIN: "A", Live: &model.LiveQuote{Time: week(40), Last: 83}, Indicator: &model.IndicatorState{}},
		{ID: "b", ISIN: "B", Live: &model.LiveQuote{Time: 10}, Indicator: &model.IndicatorState{Watermark: 50}},
		{ID: "c", ISIN: "C", Live: &model.LiveQuote{Time: 10}},
	})
	// the store fills a missing indicator on insert, so drop it again
	saved, err := f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	saved[2].Indicator = nil
	require.NoError(t, f.repo.Docs().Set(ctx, "instruments", string(model.Equities), map[string]any{"d": saved}))

	res, err := f.proc.Process(ctx, model.Equities, 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Selected: 2, Processed: 2}, res)

	after, err := f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	got := byISIN(after)

	a := got["A"].Indicator
	require.NotNil(t, a)
	assert.Equal(t, f.now.Unix(), a.Watermark)
	assert.False(t, a.Long)
	assert.Equal(t, week(39), a.FlipDate)
	assert.Len(t, a.MovingAverages, len(model.MovingAveragePeriods))

	assert.Equal(t, int64(50), got["B"].Indicator.Watermark)

	require.NotNil(t, got["C"].Indicator)
	assert.Equal(t, model.IndicatorState{}, *got["C"].Indicator)

	weekly, err := f.repo.Quotes(ctx, "A", model.Weekly)
	require.NoError(t, err)
	assert.Len(t, weekly, 40)
}

func TestProcessIsIncremental(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Instrument{
		{ID: "a", ISIN: "A", Live: &model.LiveQuote{Time: week(40)}, Indicator: &model.IndicatorState{}},
	})
	_, err := f.proc.Process(ctx, model.Equities, 0)
	require.NoError(t, err)
	first, err := f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)

	// the indicator is now fresh, so nothing is selected
	res, err := f.proc.Process(ctx, model.Equities, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Selected)

	second, err := f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProcessSettlesRevisedWeek(t *testing.T) {
	ctx := context.Background()
	final := weeklySeries()[:36]
	partial := append([]model.Quote(nil), final...)
	partial[35] = model.Quote{Time: week(35), Open: 100, High: 100.5, Low: 99.5, Close: 100}

	monday := time.Unix(week(35), 0).Add(18 * time.Hour)
	f := newFixture(t, []model.Instrument{
		{ID: "a", ISIN: "A", Live: &model.LiveQuote{Time: monday.Unix()}, Indicator: &model.IndicatorState{}},
	})
	f.fetcher.Weekly = partial
	f.proc.now = func() time.Time { return monday }
	_, err := f.proc.Process(ctx, model.Equities, 0)
	require.NoError(t, err)

	after, err := f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	require.False(t, after[0].Indicator.Long)

	friday := monday.AddDate(0, 0, 4)
	after[0].Live.Time = friday.Unix()
	require.NoError(t, f.repo.SaveInstruments(ctx, model.Equities, after))
	f.fetcher.Weekly = final
	f.proc.now = func() time.Time { return friday }
	res, err := f.proc.Process(ctx, model.Equities, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)

	after, err = f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	got := after[0].Indicator
	assert.Equal(t, friday.Unix(), got.Watermark)
	assert.True(t, got.Long, "the settled close of week 35 breaks out")
	assert.Equal(t, week(35), got.FlipDate)
}

func TestProcessSkipsFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Instrument{
		{ID: "a", ISIN: "A", Live: &model.LiveQuote{Time: 100}, Indicator: &model.IndicatorState{Watermark: 1}},
	})
	f.fetcher.Err = errors.New("provider down")

	res, err := f.proc.Process(ctx, model.Equities, 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Selected: 1, Failed: 1}, res)

	after, err := f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after[0].Indicator.Watermark)
}

func TestProcessStopsOnCancel(t *testing.T) {
	f := newFixture(t, []model.Instrument{
		{ID: "a", ISIN: "A", Live: &model.LiveQuote{Time: 100}, Indicator: &model.IndicatorState{Watermark: 1}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.proc.Process(ctx, model.Equities, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Processed)
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []model.Instrument{
		{ID: "a", ISIN: "A", Live: &model.LiveQuote{Time: 10}, Indicator: &model.IndicatorState{
			Watermark: 500, Long: true, Stop: 90, Checkpoint: &model.Checkpoint{Time: 400, Long: true, Stop: 85},
		}},
		{ID: "b", ISIN: "B", Live: &model.LiveQuote{Time: 10}, Indicator: &model.IndicatorState{Watermark: 700}},
	})
	require.NoError(t, f.proc.ResetAll(ctx, model.Equities))

	after, err := f.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	got := byISIN(after)
	assert.Zero(t, got["A"].Indicator.Watermark)
	assert.True(t, got["A"].Indicator.Long)
	assert.Equal(t, 90.0, got["A"].Indicator.Stop)
	assert.Nil(t, got["A"].Indicator.Checkpoint)
	assert.Zero(t, got["B"].Indicator.Watermark)

	assert.Len(t, Select(after, 0), 2)
}

func TestProcessorLogsPolicy(t *testing.T) {
	policy, err := trend.NewPreset(trend.PresetBreakout8)
	require.NoError(t, err)
	var buf bytes.Buffer
	proc := NewProcessor(store.New(docstore.NewMemoryStore()), &collector.MockFetcher{}, trend.NewEngine(policy), Config{}, zerolog.New(&buf), nil)

	_, err = proc.Process(context.Background(), model.Equities, 0)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"policy":"breakout-8"`)
}
