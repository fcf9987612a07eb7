// Package live refreshes the intraday quote snapshot of instruments.
package live

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
)

// Repository is the persistence the refresher needs.
type Repository interface {
	Instruments(ctx context.Context, u model.Universe) ([]model.Instrument, error)
	SaveInstruments(ctx context.Context, u model.Universe, updated []model.Instrument) error
}

// Config tunes the refresher.
type Config struct {
	Staleness   time.Duration
	BatchSize   int
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.Staleness <= 0 {
		c.Staleness = 120 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	return c
}

// Result summarizes a refresh.
type Result struct {
	Selected      int
	Batches       int
	FailedBatches int
	Updated       int
	Unknown       int
}

// Refresher fetches quotes for stale instruments through a bounded pool.
type Refresher struct {
	repo    Repository
	fetcher collector.Fetcher
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewRefresher wires a refresher. m may be nil.
func NewRefresher(repo Repository, fetcher collector.Fetcher, cfg Config, log zerolog.Logger, m *metrics.Recorder) *Refresher {
	return &Refresher{
		repo:    repo,
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		log:     log.With().Str("component", "live").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

func liveTime(ins model.Instrument) int64 {
	if ins.Live == nil {
		return 0
	}
	return ins.Live.Time
}

func stale(ins model.Instrument, now int64, staleness time.Duration) bool {
	return ins.Live == nil || now-ins.Live.Time > int64(staleness/time.Second)
}

// SelectStale returns listed instruments whose snapshot is missing or older
// than staleness, oldest first. Funds and the excluded id are skipped.
func SelectStale(instruments []model.Instrument, now time.Time, staleness time.Duration) []model.Instrument {
	return selectBy(instruments, now, staleness, func(ins model.Instrument) bool {
		return ins.Type != model.FundType && ins.ID != model.ExcludedID
	})
}

// SelectStaleFunds returns the stale investment funds, oldest first.
func SelectStaleFunds(instruments []model.Instrument, now time.Time, staleness time.Duration) []model.Instrument {
	return selectBy(instruments, now, staleness, func(ins model.Instrument) bool {
		return ins.Type == model.FundType
	})
}

func selectBy(instruments []model.Instrument, now time.Time, staleness time.Duration, keep func(model.Instrument) bool) []model.Instrument {
	ts := now.Unix()
	var out []model.Instrument
	for _, ins := range instruments {
		if keep(ins) && stale(ins, ts, staleness) {
			out = append(out, ins)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return liveTime(out[i]) < liveTime(out[j]) })
	return out
}

// Refresh updates the live snapshot of every stale listed instrument of u.
func (r *Refresher) Refresh(ctx context.Context, u model.Universe) (Result, error) {
	return r.run(ctx, u, SelectStale)
}

// RefreshFunds updates the stale investment funds of the equity universe.
func (r *Refresher) RefreshFunds(ctx context.Context) (Result, error) {
	return r.run(ctx, model.Equities, SelectStaleFunds)
}

func (r *Refresher) run(ctx context.Context, u model.Universe, pick func([]model.Instrument, time.Time, time.Duration) []model.Instrument) (Result, error) {
	log := r.log.With().Str("universe", string(u)).Logger()
	instruments, err := r.repo.Instruments(ctx, u)
	if err != nil {
		return Result{}, fmt.Errorf("load instruments: %w", err)
	}
	now := r.now()
	selected := pick(instruments, now, r.cfg.Staleness)
	res := Result{Selected: len(selected)}
	if len(selected) == 0 {
		log.Debug().Msg("no stale instruments")
		return res, nil
	}

	batches := Batches(selected, r.cfg.BatchSize)
	res.Batches = len(batches)
	results := r.fetchAll(ctx, batches)

	var updates []model.QuoteUpdate
	for i, br := range results {
		if br.err != nil {
			res.FailedBatches++
			r.metrics.FetchError(string(u), "quotes")
			log.Warn().Err(br.err).Int("batch", i).Int("size", len(batches[i])).Msg("quote batch failed")
			continue
		}
		updates = append(updates, br.updates...)
	}

	updated, unknown := Merge(instruments, updates, now)
	res.Updated = len(updated)
	res.Unknown = len(unknown)
	for _, id := range unknown {
		log.Warn().Str("id", id).Msg("quote for unknown instrument")
	}
	if len(updated) > 0 {
		if err := r.repo.SaveInstruments(ctx, u, updated); err != nil {
			return res, fmt.Errorf("save instruments: %w", err)
		}
	}
	r.metrics.QuotesRefreshed(string(u), res.Updated)
	log.Info().
		Int("selected", res.Selected).
		Int("updated", res.Updated).
		Int("failed_batches", res.FailedBatches).
		Msg("live refresh done")
	return res, ctx.Err()
}

// Batches partitions instruments into consecutive chunks of at most size.
func Batches(instruments []model.Instrument, size int) [][]model.Instrument {
	if size <= 0 {
		size = len(instruments)
	}
	var out [][]model.Instrument
	for start := 0; start < len(instruments); start += size {
		end := start + size
		if end > len(instruments) {
			end = len(instruments)
		}
		out = append(out, instruments[start:end])
	}
	return out
}

type batchResult struct {
	updates []model.QuoteUpdate
	err     error
}

type batchJob struct {
	index int
	batch []model.Instrument
}

// fetchAll runs the batches on a fixed number of workers. Results keep the
// batch order.
func (r *Refresher) fetchAll(ctx context.Context, batches [][]model.Instrument) []batchResult {
	results := make([]batchResult, len(batches))
	jobs := make(chan batchJob, len(batches))
	for i, b := range batches {
		jobs <- batchJob{index: i, batch: b}
	}
	close(jobs)

	workers := r.cfg.Concurrency
	if len(batches) < workers {
		workers = len(batches)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := ctx.Err(); err != nil {
					results[job.index] = batchResult{err: err}
					continue
				}
				updates, err := r.fetcher.FetchQuotes(ctx, job.batch)
				results[job.index] = batchResult{updates: updates, err: err}
			}
		}()
	}
	wg.Wait()
	return results
}

// Merge applies quote updates in place to the instruments they address and
// returns the changed instruments plus the ids that matched nothing. The
// previous close is kept when the provider omits it.
func Merge(instruments []model.Instrument, updates []model.QuoteUpdate, now time.Time) (updated []model.Instrument, unknown []string) {
	index := make(map[string]int, len(instruments))
	for i, ins := range instruments {
		index[ins.ID] = i
	}
	changed := make(map[int]bool)
	for _, u := range updates {
		i, ok := index[u.ID]
		if !ok {
			unknown = append(unknown, u.ID)
			continue
		}
		q := u.Quote
		ins := &instruments[i]
		if q.PreviousClose == 0 && ins.Live != nil && ins.Live.PreviousClose != 0 {
			q.PreviousClose = ins.Live.PreviousClose
		}
		q.Time = now.Unix()
		ins.Live = &q
		changed[i] = true
	}
	for i := range instruments {
		if changed[i] {
			updated = append(updated, instruments[i])
		}
	}
	return updated, unknown
}
