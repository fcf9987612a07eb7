package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TrendSentinel/internal/alert"
	"TrendSentinel/internal/cache"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/config"
	"TrendSentinel/internal/docstore"
	"TrendSentinel/internal/indicator"
	"TrendSentinel/internal/live"
	"TrendSentinel/internal/logger"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/portfolio"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/scheduler"
	"TrendSentinel/internal/screener"
	"TrendSentinel/internal/store"
	"TrendSentinel/internal/trend"
)

// app holds the wired components of one process.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	docs     docstore.Store
	repo     *store.Repository
	fetcher  collector.Fetcher
	cache    cache.Cache
	sink     notifier.Sink
	telegram *notifier.TelegramSink
	metrics  *metrics.Recorder
	recorder recorder.Recorder
	alerts   *alert.Engine
	screens  *screener.Registry
	sched    *scheduler.Scheduler
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty}),
		metrics: metrics.New(),
		screens: screener.NewRegistry(),
	}
	if err := a.init(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init() error {
	var err error
	if a.docs, err = openStore(a.cfg.Store); err != nil {
		return err
	}
	a.repo = store.New(a.docs)

	base, err := collector.New(collector.Config{
		Source:   a.cfg.QuoteSource.Source,
		BaseURL:  a.cfg.QuoteSource.BaseURL,
		APIToken: a.cfg.QuoteSource.APIToken,
		Timeout:  a.cfg.QuoteSource.Timeout,
	})
	if err != nil {
		return err
	}
	a.fetcher = base
	if a.cache, err = openCache(a.cfg.Cache); err != nil {
		return err
	}
	if a.cache != nil {
		a.fetcher = collector.NewCachedFetcher(base, a.cache, a.cfg.Cache.TTL, a.log)
	}
	a.log.Info().Str("source", a.fetcher.Name()).Str("cache", a.cfg.Cache.Driver).Msg("quote source ready")

	if err := a.openSink(); err != nil {
		return err
	}

	a.recorder = recorder.NewNoopRecorder()
	if a.cfg.Recorder.Path != "" {
		rec, err := recorder.NewSQLiteRecorder(a.cfg.Recorder.Path, a.log)
		if err != nil {
			a.log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.recorder = rec
		}
	}

	policy, err := channelPolicy(a.cfg.Indicator)
	if err != nil {
		return err
	}
	params := policy.Params()
	a.log.Info().
		Str("preset", policy.Name()).
		Int("ma_period", params.MAPeriod).
		Int("breakout_period", params.BreakoutPeriod).
		Float64("slope_bias", params.SlopeBias).
		Float64("resistance_damping", params.ResistanceDamping).
		Float64("stop_ratchet", params.StopRatchet).
		Float64("friday_stop_ratchet", params.FridayStopRatchet).
		Msg("channel policy ready")
	processor := indicator.NewProcessor(a.repo, a.fetcher, trend.NewEngine(policy), indicator.Config{
		BatchLimit:  a.cfg.Indicator.BatchLimit,
		DailyYears:  a.cfg.Indicator.DailyYears,
		WeeklyYears: a.cfg.Indicator.WeeklyYears,
	}, a.log, a.metrics)
	refresher := live.NewRefresher(a.repo, a.fetcher, live.Config{
		Staleness:   a.cfg.Live.Staleness,
		BatchSize:   a.cfg.Live.BatchSize,
		Concurrency: a.cfg.Live.Concurrency,
	}, a.log, a.metrics)
	a.alerts = alert.NewEngine(a.repo, a.sink, a.log, a.metrics)
	a.alerts.SetRecorder(a.recorder)

	pcfg, err := portfolioConfig(a.cfg.Portfolio)
	if err != nil {
		return err
	}
	rollUp := portfolio.NewRollUp(a.repo, pcfg, a.log)

	scfg, err := scheduleConfig(a.cfg.Schedule)
	if err != nil {
		return err
	}
	a.sched = scheduler.New(scheduler.Jobs{
		Live:      refresher,
		Indicator: processor,
		Alerts:    a.alerts,
		History:   rollUp,
		Status:    a.repo,
	}, scfg, a.recorder, a.metrics, a.log)
	return nil
}

func openStore(cfg config.Store) (docstore.Store, error) {
	if cfg.Driver == "memory" {
		return docstore.NewMemoryStore(), nil
	}
	s, err := docstore.NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	return s, nil
}

func openCache(cfg config.Cache) (cache.Cache, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "redis":
		c, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Addr),
			cache.WithRedisPassword(cfg.Password),
			cache.WithRedisDB(cfg.DB),
			cache.WithRedisPrefix(cfg.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(), nil
}

func (a *app) openSink() error {
	n := a.cfg.Notifier
	logSink := notifier.NewLogSink(a.log)
	switch n.Sink {
	case "telegram":
		var (
			tg  *notifier.TelegramSink
			err error
		)
		if n.TelegramEndpoint != "" {
			tg, err = notifier.NewTelegramSinkWithEndpoint(n.TelegramToken, n.TelegramEndpoint, n.Retries, n.RetryDelay)
		} else {
			tg, err = notifier.NewTelegramSink(n.TelegramToken, n.Retries, n.RetryDelay)
		}
		if err != nil {
			return err
		}
		a.telegram = tg
		a.sink = notifier.Multi{logSink, tg}
	case "webhook":
		a.sink = notifier.Multi{logSink, notifier.NewWebhookSink(n.WebhookURL, n.WebhookToken, n.Timeout)}
	default:
		a.sink = logSink
	}
	return nil
}

// channelPolicy builds the preset channel with the configured overrides.
func channelPolicy(cfg config.Indicator) (*trend.Breakout, error) {
	p, err := trend.Preset(cfg.Preset)
	if err != nil {
		return nil, err
	}
	o := cfg.Overrides
	if o.MAPeriod != nil {
		p.MAPeriod = *o.MAPeriod
	}
	if o.BreakoutPeriod != nil {
		p.BreakoutPeriod = *o.BreakoutPeriod
	}
	if o.SlopeBias != nil {
		p.SlopeBias = *o.SlopeBias
	}
	if o.ResistanceDamping != nil {
		p.ResistanceDamping = *o.ResistanceDamping
	}
	if o.StopRatchet != nil {
		p.StopRatchet = *o.StopRatchet
	}
	if o.FridayStopRatchet != nil {
		p.FridayStopRatchet = *o.FridayStopRatchet
	}
	if o.LongLowerFloor != nil {
		p.LongLowerFloor = *o.LongLowerFloor
	}
	return trend.NewBreakout(cfg.Preset, p)
}

func portfolioConfig(cfg config.Portfolio) (portfolio.Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return portfolio.Config{}, fmt.Errorf("portfolio timezone: %w", err)
	}
	return portfolio.Config{
		EquityWeekday: time.Weekday(cfg.EquityWeekday),
		CryptoWeekday: time.Weekday(cfg.CryptoWeekday),
		RecentDays:    cfg.RecentDays,
		MaxDays:       cfg.MaxDays,
		Location:      loc,
	}, nil
}

func scheduleConfig(cfg config.Schedule) (scheduler.Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("schedule timezone: %w", err)
	}
	clocks := make([]scheduler.Clock, 0, 6)
	for _, s := range []string{
		cfg.LiveStart, cfg.LiveEnd, cfg.IndicatorEnd, cfg.RemainingEnd,
		cfg.CryptoIndicatorStart, cfg.CryptoIndicatorEnd,
	} {
		c, err := scheduler.ParseClock(s)
		if err != nil {
			return scheduler.Config{}, err
		}
		clocks = append(clocks, c)
	}
	if clocks[0] >= clocks[1] || clocks[1] > clocks[2] || clocks[2] > clocks[3] {
		return scheduler.Config{}, errors.New("schedule windows must be ordered live < indicator < remaining")
	}
	return scheduler.Config{
		Location:       loc,
		EquitiesCron:   cfg.EquitiesCron,
		CryptoCron:     cfg.CryptoCron,
		EquitiesRollUp: cfg.EquitiesRollUp,
		CryptoRollUp:   cfg.CryptoRollUp,
		Windows: scheduler.Windows{
			Live:            scheduler.Window{Start: clocks[0], End: clocks[1]},
			Indicator:       scheduler.Window{Start: clocks[1], End: clocks[2]},
			Remaining:       scheduler.Window{Start: clocks[2], End: clocks[3]},
			CryptoIndicator: scheduler.Window{Start: clocks[4], End: clocks[5]},
		},
	}, nil
}

func (a *app) close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close recorder")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close cache")
		}
	}
	if a.docs != nil {
		if err := a.docs.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close document store")
		}
	}
}
