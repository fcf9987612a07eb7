// Package portfolio snapshots user portfolio values into a decimated history.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"TrendSentinel/internal/model"
)

// Repository is the persistence the roll-up needs.
type Repository interface {
	Instruments(ctx context.Context, u model.Universe) ([]model.Instrument, error)
	UserConfs(ctx context.Context, u model.Universe) ([]model.UserConf, error)
	SaveUserConf(ctx context.Context, u model.Universe, c model.UserConf) error
}

// Config sets history retention.
type Config struct {
	// Weekday kept for entries older than RecentDays, per universe.
	EquityWeekday time.Weekday
	CryptoWeekday time.Weekday
	RecentDays    int
	MaxDays       int
	Location      *time.Location
}

// DefaultConfig keeps a year of daily points, then Fridays (Sundays for
// crypto) up to five years.
func DefaultConfig() Config {
	return Config{
		EquityWeekday: time.Friday,
		CryptoWeekday: time.Sunday,
		RecentDays:    365,
		MaxDays:       1825,
		Location:      time.UTC,
	}
}

func (c Config) weekday(u model.Universe) time.Weekday {
	if u == model.Crypto {
		return c.CryptoWeekday
	}
	return c.EquityWeekday
}

// Result summarizes a run.
type Result struct {
	Users   int
	Updated int
	Failed  int
}

// RollUp appends a daily valuation point to every user portfolio.
type RollUp struct {
	repo Repository
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
}

// NewRollUp wires a roll-up.
func NewRollUp(repo Repository, cfg Config, log zerolog.Logger) *RollUp {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RecentDays <= 0 {
		cfg.RecentDays = 365
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 1825
	}
	return &RollUp{
		repo: repo,
		cfg:  cfg,
		log:  log.With().Str("component", "portfolio").Logger(),
		now:  time.Now,
	}
}

// RunAll snapshots every user conf of u. Per-user failures are logged and
// skipped.
func (r *RollUp) RunAll(ctx context.Context, u model.Universe) (Result, error) {
	log := r.log.With().Str("universe", string(u)).Logger()
	instruments, err := r.repo.Instruments(ctx, u)
	if err != nil {
		return Result{}, fmt.Errorf("load instruments: %w", err)
	}
	confs, err := r.repo.UserConfs(ctx, u)
	if err != nil {
		return Result{}, fmt.Errorf("load user confs: %w", err)
	}
	res := Result{Users: len(confs)}
	prices := Prices(instruments)
	now := r.now()
	for _, c := range confs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		next := Snapshot(c, prices, now, r.cfg.weekday(u), r.cfg)
		if err := r.repo.SaveUserConf(ctx, u, next); err != nil {
			res.Failed++
			log.Error().Err(err).Str("user", c.ID).Msg("save portfolio history")
			continue
		}
		res.Updated++
	}
	log.Info().Int("users", res.Users).Int("updated", res.Updated).Msg("portfolio history done")
	return res, nil
}

// Prices maps ISIN to live last price for instruments that have one.
func Prices(instruments []model.Instrument) map[string]float64 {
	out := make(map[string]float64, len(instruments))
	for _, ins := range instruments {
		if last := ins.LastPrice(); last != 0 {
			out[ins.ISIN] = last
		}
	}
	return out
}

// Invested values the positions that have a known price.
func Invested(positions []model.Position, prices map[string]float64) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		last, ok := prices[p.ISIN]
		if !ok {
			continue
		}
		total = total.Add(decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(last)))
	}
	return total
}

// Snapshot appends a point for now, prunes old points and patches unknown
// cash amounts. c is not modified.
func Snapshot(c model.UserConf, prices map[string]float64, now time.Time, weekday time.Weekday, cfg Config) model.UserConf {
	out := c
	out.History = make([]model.HistoryItem, 0, len(c.History)+1)
	out.History = append(out.History, c.History...)
	if c.Cash != nil {
		out.Cash = model.Float(*c.Cash)
	}

	var entryCash *float64
	if out.Cash != nil {
		entryCash = model.Float(*out.Cash)
	}
	out.History = append(out.History, model.HistoryItem{
		Cash:           entryCash,
		Pos:            Invested(c.Positions, prices).InexactFloat64(),
		InitialCapital: c.InitialCapital,
		Time:           now.Unix(),
	})
	out.History = Prune(out.History, now, weekday, cfg)

	for i := range out.History {
		if out.History[i].Cash != nil {
			continue
		}
		cash := 0.0
		if i > 0 && out.History[i-1].Cash != nil && *out.History[i-1].Cash != 0 {
			cash = *out.History[i-1].Cash
		}
		out.History[i].Cash = &cash
	}
	if out.Cash == nil && len(out.History) > 0 {
		out.Cash = model.Float(*out.History[len(out.History)-1].Cash)
	}
	return out
}

// Prune keeps entries younger than cfg.RecentDays, older ones only when they
// fall on weekday, and nothing older than cfg.MaxDays.
func Prune(history []model.HistoryItem, now time.Time, weekday time.Weekday, cfg Config) []model.HistoryItem {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	recent := now.AddDate(0, 0, -cfg.RecentDays)
	limit := now.AddDate(0, 0, -cfg.MaxDays)
	out := history[:0:0]
	for _, h := range history {
		at := time.Unix(h.Time, 0).In(loc)
		if (at.After(recent) || at.Weekday() == weekday) && at.After(limit) {
			out = append(out, h)
		}
	}
	return out
}

// Summary is the current valuation of a portfolio.
type Summary struct {
	Invested       float64
	Cash           float64
	Total          float64
	InitialCapital float64
	Performance    float64
}

// Details values c against the given prices.
func Details(c model.UserConf, prices map[string]float64) Summary {
	invested := Invested(c.Positions, prices)
	cash := decimal.Zero
	if c.Cash != nil {
		cash = decimal.NewFromFloat(*c.Cash)
	}
	total := invested.Add(cash)
	s := Summary{
		Invested:       invested.InexactFloat64(),
		Cash:           cash.InexactFloat64(),
		Total:          total.InexactFloat64(),
		InitialCapital: c.InitialCapital,
	}
	if c.InitialCapital != 0 {
		ic := decimal.NewFromFloat(c.InitialCapital)
		s.Performance = total.Sub(ic).Div(ic).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return s
}
