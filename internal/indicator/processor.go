// Package indicator refreshes price history and advances the trend state of
// stale instruments.
package indicator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/trend"
)

// DefaultBatchLimit caps the instruments processed per run.
const DefaultBatchLimit = 400

// Repository is the persistence the processor needs.
type Repository interface {
	Instruments(ctx context.Context, u model.Universe) ([]model.Instrument, error)
	SaveInstruments(ctx context.Context, u model.Universe, updated []model.Instrument) error
	MergeQuotes(ctx context.Context, ins model.Instrument, interval model.Interval, incoming []model.Quote) ([]model.Quote, error)
}

// Config tunes a run.
type Config struct {
	BatchLimit  int
	DailyYears  int
	WeeklyYears int
}

func (c Config) withDefaults() Config {
	if c.BatchLimit <= 0 {
		c.BatchLimit = DefaultBatchLimit
	}
	if c.DailyYears <= 0 {
		c.DailyYears = 2
	}
	if c.WeeklyYears <= 0 {
		c.WeeklyYears = 5
	}
	return c
}

// Result summarizes a run.
type Result struct {
	Selected  int
	Processed int
	Failed    int
}

// Processor runs the indicator job.
type Processor struct {
	repo    Repository
	fetcher collector.Fetcher
	engine  *trend.Engine
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewProcessor wires a processor. m may be nil.
func NewProcessor(repo Repository, fetcher collector.Fetcher, engine *trend.Engine, cfg Config, log zerolog.Logger, m *metrics.Recorder) *Processor {
	return &Processor{
		repo:    repo,
		fetcher: fetcher,
		engine:  engine,
		cfg:     cfg.withDefaults(),
		log:     log.With().Str("component", "indicator").Str("policy", engine.Policy().Name()).Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// Stale reports whether the indicator of ins lags its live snapshot.
func Stale(ins model.Instrument) bool {
	if ins.ID == model.ExcludedID {
		return false
	}
	return ins.Live == nil || ins.Indicator == nil || ins.Live.Time > ins.Indicator.Watermark
}

// Select returns the stale instruments, oldest indicator first, capped at limit.
func Select(instruments []model.Instrument, limit int) []model.Instrument {
	var out []model.Instrument
	for _, ins := range instruments {
		if Stale(ins) {
			out = append(out, ins)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return watermark(out[i]) < watermark(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func watermark(ins model.Instrument) int64 {
	if ins.Indicator == nil {
		return 0
	}
	return ins.Indicator.Watermark
}

// Process advances the indicators of up to limit stale instruments of u and
// saves them in one write. A non-positive limit uses the configured one.
func (p *Processor) Process(ctx context.Context, u model.Universe, limit int) (Result, error) {
	if limit <= 0 {
		limit = p.cfg.BatchLimit
	}
	log := p.log.With().Str("universe", string(u)).Logger()

	instruments, err := p.repo.Instruments(ctx, u)
	if err != nil {
		return Result{}, fmt.Errorf("load instruments: %w", err)
	}
	selected := Select(instruments, limit)
	res := Result{Selected: len(selected)}
	log.Info().Int("selected", len(selected)).Int("total", len(instruments)).Msg("indicator run")

	var updated []model.Instrument
	var runErr error
	for _, ins := range selected {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		next, err := p.processOne(ctx, u, ins)
		if err != nil {
			res.Failed++
			log.Warn().Err(err).Str("id", ins.ID).Str("isin", ins.ISIN).Msg("indicator skipped")
			continue
		}
		updated = append(updated, next)
		res.Processed++
	}

	if len(updated) > 0 {
		if err := p.repo.SaveInstruments(ctx, u, updated); err != nil {
			return res, fmt.Errorf("save instruments: %w", err)
		}
	}
	p.metrics.InstrumentsProcessed(string(u), res.Processed)
	log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Msg("indicator run done")
	return res, runErr
}

func (p *Processor) processOne(ctx context.Context, u model.Universe, ins model.Instrument) (model.Instrument, error) {
	if ins.ISIN == "" {
		return ins, fmt.Errorf("instrument %s: missing isin", ins.ID)
	}
	now := p.now()

	daily, err := p.history(ctx, u, ins, now.AddDate(-p.cfg.DailyYears, 0, 0), model.Daily)
	if err != nil {
		return ins, err
	}
	weekly, err := p.history(ctx, u, ins, now.AddDate(-p.cfg.WeeklyYears, 0, 0), model.Weekly)
	if err != nil {
		return ins, err
	}

	if ins.Indicator == nil {
		ins.Indicator = &model.IndicatorState{}
		return ins, nil
	}
	state := *ins.Indicator
	if len(weekly) > 0 && len(daily) > 0 {
		state = p.engine.Advance(weekly, daily, state, ins.Live, now)
	}
	state.Watermark = now.Unix()
	ins.Indicator = &state
	return ins, nil
}

func (p *Processor) history(ctx context.Context, u model.Universe, ins model.Instrument, from time.Time, interval model.Interval) ([]model.Quote, error) {
	fetched, err := p.fetcher.FetchHistory(ctx, ins, from, interval)
	if err != nil {
		p.metrics.FetchError(string(u), "history")
		return nil, fmt.Errorf("fetch %s history: %w", interval, err)
	}
	merged, err := p.repo.MergeQuotes(ctx, ins, interval, fetched)
	if err != nil {
		return nil, fmt.Errorf("merge %s history: %w", interval, err)
	}
	return merged, nil
}

// ResetAll zeroes every indicator watermark of u and drops the checkpoints so
// the next run replays the full history.
func (p *Processor) ResetAll(ctx context.Context, u model.Universe) error {
	instruments, err := p.repo.Instruments(ctx, u)
	if err != nil {
		return fmt.Errorf("load instruments: %w", err)
	}
	for i := range instruments {
		if instruments[i].Indicator == nil {
			instruments[i].Indicator = &model.IndicatorState{}
			continue
		}
		state := *instruments[i].Indicator
		state.Watermark = 0
		state.Checkpoint = nil
		instruments[i].Indicator = &state
	}
	if err := p.repo.SaveInstruments(ctx, u, instruments); err != nil {
		return fmt.Errorf("save instruments: %w", err)
	}
	p.log.Info().Str("universe", string(u)).Int("count", len(instruments)).Msg("indicator watermarks reset")
	return nil
}
