// Package alert registers user price alerts and triggers them when the live
// session range crosses their value.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/recorder"
)

var (
	// ErrTerminal is returned when cancelling a triggered or cancelled alert.
	ErrTerminal = errors.New("alert is already triggered or cancelled")
	// ErrInvalidAlert rejects malformed alerts.
	ErrInvalidAlert = errors.New("invalid alert")
)

// Repository is the persistence the engine needs.
type Repository interface {
	Instruments(ctx context.Context, u model.Universe) ([]model.Instrument, error)
	Alert(ctx context.Context, u model.Universe, id string) (model.Alert, error)
	SaveAlert(ctx context.Context, u model.Universe, a model.Alert) error
	AlertsByStatus(ctx context.Context, u model.Universe, status model.AlertStatus) ([]model.Alert, error)
	MatchingAlerts(ctx context.Context, u model.Universe, isin string, high, low float64) ([]model.Alert, error)
	AlertBounds(ctx context.Context, u model.Universe, isin string) (model.AlertConf, bool, error)
	AlertConfs(ctx context.Context, u model.Universe) ([]model.AlertConf, error)
	SaveAlertConfs(ctx context.Context, u model.Universe, confs []model.AlertConf) error
	DeviceTokens(ctx context.Context, uid string) ([]string, error)
}

// Result summarizes a run.
type Result struct {
	Registered     int
	Triggered      int
	NotifyFailures int
	Confs          int
}

// Engine runs the registration and trigger passes.
type Engine struct {
	repo    Repository
	sink    notifier.Sink
	log     zerolog.Logger
	metrics *metrics.Recorder
	history recorder.Recorder
	now     func() time.Time
}

// NewEngine wires an engine. m may be nil.
func NewEngine(repo Repository, sink notifier.Sink, log zerolog.Logger, m *metrics.Recorder) *Engine {
	return &Engine{
		repo:    repo,
		sink:    sink,
		log:     log.With().Str("component", "alerts").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// SetRecorder makes the engine log every trigger to rec.
func (e *Engine) SetRecorder(rec recorder.Recorder) {
	e.history = rec
}

// Process registers new alerts of u, triggers the ones crossed by the live
// snapshot and saves the recomputed conf set. status, when not nil, has its
// triggered counter incremented; persisting it is the caller's job.
func (e *Engine) Process(ctx context.Context, u model.Universe, status *model.Status) (Result, error) {
	log := e.log.With().Str("universe", string(u)).Logger()
	var res Result

	instruments, err := e.repo.Instruments(ctx, u)
	if err != nil {
		return res, fmt.Errorf("load instruments: %w", err)
	}
	confs, err := e.repo.AlertConfs(ctx, u)
	if err != nil {
		return res, fmt.Errorf("load alert confs: %w", err)
	}
	created, err := e.repo.AlertsByStatus(ctx, u, model.AlertCreated)
	if err != nil {
		return res, fmt.Errorf("load new alerts: %w", err)
	}
	log.Info().Int("new", len(created)).Msg("alerts to register")

	confs, res.Registered = e.register(ctx, u, confs, created, log)
	e.metrics.AlertsRegistered(string(u), res.Registered)

	byISIN := make(map[string]model.Instrument, len(instruments))
	for _, ins := range instruments {
		byISIN[ins.ISIN] = ins
	}

	kept := make([]model.AlertConf, 0, len(confs))
	for _, conf := range confs {
		if err := ctx.Err(); err != nil {
			kept = append(kept, conf)
			continue
		}
		ins, ok := byISIN[conf.ISIN]
		if !ok || ins.Live == nil || !conf.Breached(ins.Live.High, ins.Live.Low) {
			kept = append(kept, conf)
			continue
		}

		triggered, failures := e.trigger(ctx, u, ins, log)
		res.Triggered += triggered
		res.NotifyFailures += failures
		if status != nil {
			status.AlertTriggered += triggered
		}

		next, empty, err := e.repo.AlertBounds(ctx, u, conf.ISIN)
		if err != nil {
			log.Error().Err(err).Str("isin", conf.ISIN).Msg("recompute alert bounds")
			kept = append(kept, conf)
			continue
		}
		if !empty {
			kept = append(kept, next)
		}
	}
	e.metrics.AlertsTriggered(string(u), res.Triggered)

	res.Confs = len(kept)
	if err := e.repo.SaveAlertConfs(ctx, u, kept); err != nil {
		return res, fmt.Errorf("save alert confs: %w", err)
	}
	log.Info().Int("triggered", res.Triggered).Int("confs", res.Confs).Msg("alert run done")
	return res, ctx.Err()
}

// register widens the confs with each created alert and marks it registered.
func (e *Engine) register(ctx context.Context, u model.Universe, confs []model.AlertConf, created []model.Alert, log zerolog.Logger) ([]model.AlertConf, int) {
	index := make(map[string]int, len(confs))
	for i, c := range confs {
		index[c.ISIN] = i
	}
	registered := 0
	for _, a := range created {
		i, ok := index[a.ISIN]
		if !ok {
			i = len(confs)
			index[a.ISIN] = i
			confs = append(confs, model.NewAlertConf(a.ISIN))
		}
		confs[i].Widen(a)

		a.Status = model.AlertRegistered
		if err := e.repo.SaveAlert(ctx, u, a); err != nil {
			log.Error().Err(err).Str("alert", a.ID).Msg("register alert")
			continue
		}
		registered++
	}
	return confs, registered
}

// trigger notifies and closes every registered alert of ins crossed by its
// session range.
func (e *Engine) trigger(ctx context.Context, u model.Universe, ins model.Instrument, log zerolog.Logger) (triggered, failures int) {
	alerts, err := e.repo.MatchingAlerts(ctx, u, ins.ISIN, ins.Live.High, ins.Live.Low)
	if err != nil {
		log.Error().Err(err).Str("isin", ins.ISIN).Msg("load matching alerts")
		return 0, 0
	}
	for _, a := range alerts {
		triggered++
		if err := e.notify(ctx, a, ins); err != nil {
			failures++
			e.metrics.NotificationError(e.sink.Name())
			log.Warn().Err(err).Str("alert", a.ID).Str("author", a.AuthorID).Msg("notification failed")
		}
		log.Info().Str("alert", a.ID).Str("author", a.AuthorID).Str("isin", a.ISIN).Float64("value", a.Value).Msg("alert triggered")

		a.Status = model.AlertTriggered
		a.TriggeredAt = e.now().Unix()
		if err := e.repo.SaveAlert(ctx, u, a); err != nil {
			log.Error().Err(err).Str("alert", a.ID).Msg("save triggered alert")
		}
		e.recordTrigger(ctx, u, a, ins, log)
	}
	return triggered, failures
}

func (e *Engine) recordTrigger(ctx context.Context, u model.Universe, a model.Alert, ins model.Instrument, log zerolog.Logger) {
	if e.history == nil {
		return
	}
	err := e.history.RecordTrigger(ctx, &recorder.TriggerEvent{
		Universe:  string(u),
		AlertID:   a.ID,
		ISIN:      a.ISIN,
		AuthorID:  a.AuthorID,
		Direction: a.Direction.String(),
		Value:     a.Value,
		High:      ins.Live.High,
		Low:       ins.Live.Low,
		At:        time.Unix(a.TriggeredAt, 0),
	})
	if err != nil {
		log.Warn().Err(err).Str("alert", a.ID).Msg("record trigger")
	}
}

func (e *Engine) notify(ctx context.Context, a model.Alert, ins model.Instrument) error {
	tokens, err := e.repo.DeviceTokens(ctx, a.AuthorID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	return e.sink.SendToDevices(ctx, tokens, notifier.AlertMessage(a, ins))
}

// CreateAlert stores a new alert in the created state. The next run
// registers it.
func (e *Engine) CreateAlert(ctx context.Context, u model.Universe, a model.Alert) (model.Alert, error) {
	if a.ISIN == "" || a.AuthorID == "" || a.Value <= 0 || (a.Direction != model.Up && a.Direction != model.Down) {
		return a, ErrInvalidAlert
	}
	if a.Kind == "" {
		a.Kind = model.KindAlert
	}
	a.ID = uuid.NewString()
	a.Status = model.AlertCreated
	a.CreatedAt = e.now().Unix()
	a.TriggeredAt = 0
	if err := e.repo.SaveAlert(ctx, u, a); err != nil {
		return a, err
	}
	return a, nil
}

// CancelAlert moves a pending alert to cancelled and tightens the conf of
// its instrument when it was registered.
func (e *Engine) CancelAlert(ctx context.Context, u model.Universe, id string) error {
	a, err := e.repo.Alert(ctx, u, id)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return ErrTerminal
	}
	wasRegistered := a.Status == model.AlertRegistered
	a.Status = model.AlertCancelled
	if err := e.repo.SaveAlert(ctx, u, a); err != nil {
		return err
	}
	if !wasRegistered {
		return nil
	}
	return e.refreshConf(ctx, u, a.ISIN)
}

func (e *Engine) refreshConf(ctx context.Context, u model.Universe, isin string) error {
	confs, err := e.repo.AlertConfs(ctx, u)
	if err != nil {
		return err
	}
	next, empty, err := e.repo.AlertBounds(ctx, u, isin)
	if err != nil {
		return err
	}
	out := make([]model.AlertConf, 0, len(confs))
	for _, c := range confs {
		if c.ISIN != isin {
			out = append(out, c)
		}
	}
	if !empty {
		out = append(out, next)
	}
	return e.repo.SaveAlertConfs(ctx, u, out)
}

// RebuildConfs recomputes the whole conf set of u from its registered alerts.
func (e *Engine) RebuildConfs(ctx context.Context, u model.Universe) ([]model.AlertConf, error) {
	alerts, err := e.repo.AlertsByStatus(ctx, u, model.AlertRegistered)
	if err != nil {
		return nil, err
	}
	confs := BuildConfs(alerts)
	if err := e.repo.SaveAlertConfs(ctx, u, confs); err != nil {
		return nil, err
	}
	return confs, nil
}

// BuildConfs folds alerts into one conf per instrument, in first-seen order.
func BuildConfs(alerts []model.Alert) []model.AlertConf {
	var confs []model.AlertConf
	index := make(map[string]int)
	for _, a := range alerts {
		i, ok := index[a.ISIN]
		if !ok {
			i = len(confs)
			index[a.ISIN] = i
			confs = append(confs, model.NewAlertConf(a.ISIN))
		}
		confs[i].Widen(a)
	}
	return confs
}
