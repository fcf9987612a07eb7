// Package scheduler runs the universe jobs on cron ticks and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"TrendSentinel/internal/alert"
	"TrendSentinel/internal/indicator"
	"TrendSentinel/internal/live"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/portfolio"
	"TrendSentinel/internal/recorder"
)

// ErrUnknownJob is returned by RunJob for an unsupported job name.
var ErrUnknownJob = errors.New("unknown job")

// LiveJob refreshes live snapshots.
type LiveJob interface {
	Refresh(ctx context.Context, u model.Universe) (live.Result, error)
	RefreshFunds(ctx context.Context) (live.Result, error)
}

// IndicatorJob advances indicators.
type IndicatorJob interface {
	Process(ctx context.Context, u model.Universe, limit int) (indicator.Result, error)
	ResetAll(ctx context.Context, u model.Universe) error
}

// AlertJob registers and triggers alerts.
type AlertJob interface {
	Process(ctx context.Context, u model.Universe, status *model.Status) (alert.Result, error)
}

// HistoryJob rolls up portfolio histories.
type HistoryJob interface {
	RunAll(ctx context.Context, u model.Universe) (portfolio.Result, error)
}

// StatusStore persists the per-universe status record.
type StatusStore interface {
	Status(ctx context.Context, u model.Universe) (model.Status, error)
	SaveStatus(ctx context.Context, u model.Universe, s model.Status) error
}

// Config holds the cron specs, which include a seconds field, and the day
// windows, evaluated in Location.
type Config struct {
	Location       *time.Location
	EquitiesCron   string
	CryptoCron     string
	EquitiesRollUp string
	CryptoRollUp   string
	Windows        Windows
}

// DefaultConfig ticks equities every 12 minutes on weekdays and crypto
// every 20 minutes, with the nightly roll-ups.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Location:       loc,
		EquitiesCron:   "0 */12 9-23 * * 1-5",
		CryptoCron:     "0 */20 * * * *",
		EquitiesRollUp: "0 45 23 * * 1-5",
		CryptoRollUp:   "CRON_TZ=Europe/London 0 15 0 * * *",
		Windows:        DefaultWindows(),
	}
}

// Jobs groups the components a scheduler drives.
type Jobs struct {
	Live      LiveJob
	Indicator IndicatorJob
	Alerts    AlertJob
	History   HistoryJob
	Status    StatusStore
}

// Scheduler manages the cron entries and serializes the runs of a universe.
type Scheduler struct {
	cron     *cron.Cron
	jobs     Jobs
	cfg      Config
	recorder recorder.Recorder
	metrics  *metrics.Recorder
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[model.Universe]*sync.Mutex
}

// New creates a scheduler. rec and m may be nil.
func New(jobs Jobs, cfg Config, rec recorder.Recorder, m *metrics.Recorder, log zerolog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cron.PrintfLogger(&log)
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		jobs:     jobs,
		cfg:      cfg,
		recorder: rec,
		metrics:  m,
		log:      log,
		now:      time.Now,
		locks:    make(map[model.Universe]*sync.Mutex),
	}
}

// RegisterAll registers the orchestrator ticks and roll-ups of both universes.
func (s *Scheduler) RegisterAll(ctx context.Context) error {
	entries := []struct {
		spec string
		u    model.Universe
		job  string
	}{
		{s.cfg.EquitiesCron, model.Equities, JobTick},
		{s.cfg.CryptoCron, model.Crypto, JobTick},
		{s.cfg.EquitiesRollUp, model.Equities, JobHistory},
		{s.cfg.CryptoRollUp, model.Crypto, JobHistory},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		u, job := e.u, e.job
		if _, err := s.cron.AddFunc(e.spec, func() {
			if _, err := s.RunJob(ctx, job, u); err != nil {
				s.log.Error().Err(err).Str("universe", string(u)).Str("job", job).Msg("scheduled run failed")
			}
		}); err != nil {
			return fmt.Errorf("register %s %s: %w", u, job, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("entries", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) lock(u model.Universe) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[u]
	if !ok {
		l = &sync.Mutex{}
		s.locks[u] = l
	}
	return l
}
