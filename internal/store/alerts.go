package store

import (
	"context"
	"fmt"

	"TrendSentinel/internal/docstore"
	"TrendSentinel/internal/model"
)

// Alert returns one alert by id.
func (r *Repository) Alert(ctx context.Context, u model.Universe, id string) (model.Alert, error) {
	var a model.Alert
	if err := r.docs.Get(ctx, alertCollection(u), id, &a); err != nil {
		return a, fmt.Errorf("load alert %s: %w", id, err)
	}
	return a, nil
}

// SaveAlert writes one alert.
func (r *Repository) SaveAlert(ctx context.Context, u model.Universe, a model.Alert) error {
	if err := r.docs.Set(ctx, alertCollection(u), a.ID, a); err != nil {
		return fmt.Errorf("save alert %s: %w", a.ID, err)
	}
	return nil
}

func (r *Repository) queryAlerts(ctx context.Context, u model.Universe, q docstore.Query) ([]model.Alert, error) {
	docs, err := r.docs.Query(ctx, alertCollection(u), q)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return docstore.DecodeAll[model.Alert](docs)
}

// AlertsByStatus returns every alert of u in status.
func (r *Repository) AlertsByStatus(ctx context.Context, u model.Universe, status model.AlertStatus) ([]model.Alert, error) {
	return r.queryAlerts(ctx, u, docstore.Query{
		Where: []docstore.Filter{docstore.Where("status", docstore.Eq, int(status))},
	})
}

func registered(isin string, dir model.Direction) []docstore.Filter {
	return []docstore.Filter{
		docstore.Where("isin", docstore.Eq, isin),
		docstore.Where("status", docstore.Eq, int(model.AlertRegistered)),
		docstore.Where("direction", docstore.Eq, int(dir)),
	}
}

// MatchingAlerts returns the registered alerts of isin crossed by the
// session range: UP alerts at or below high, DOWN alerts at or above low.
func (r *Repository) MatchingAlerts(ctx context.Context, u model.Universe, isin string, high, low float64) ([]model.Alert, error) {
	up, err := r.queryAlerts(ctx, u, docstore.Query{
		Where: append(registered(isin, model.Up), docstore.Where("value", docstore.Lte, high)),
	})
	if err != nil {
		return nil, err
	}
	down, err := r.queryAlerts(ctx, u, docstore.Query{
		Where: append(registered(isin, model.Down), docstore.Where("value", docstore.Gte, low)),
	})
	if err != nil {
		return nil, err
	}
	return append(up, down...), nil
}

// AlertBounds recomputes the conf of isin from its registered alerts.
// empty is true when none remain.
func (r *Repository) AlertBounds(ctx context.Context, u model.Universe, isin string) (conf model.AlertConf, empty bool, err error) {
	conf = model.NewAlertConf(isin)

	up, err := r.queryAlerts(ctx, u, docstore.Query{Where: registered(isin, model.Up), OrderBy: "value", Limit: 1})
	if err != nil {
		return conf, false, err
	}
	down, err := r.queryAlerts(ctx, u, docstore.Query{Where: registered(isin, model.Down), OrderBy: "value", Desc: true, Limit: 1})
	if err != nil {
		return conf, false, err
	}
	if len(up) > 0 {
		conf.Up = up[0].Value
	}
	if len(down) > 0 {
		conf.Down = down[0].Value
	}
	return conf, len(up) == 0 && len(down) == 0, nil
}

// AlertConfs returns the conf set of u.
func (r *Repository) AlertConfs(ctx context.Context, u model.Universe) ([]model.AlertConf, error) {
	var doc listDoc[model.AlertConf]
	if err := r.getList(ctx, colAlertConfs, string(u), &doc); err != nil {
		return nil, err
	}
	return doc.D, nil
}

// SaveAlertConfs replaces the conf set of u in one write.
func (r *Repository) SaveAlertConfs(ctx context.Context, u model.Universe, confs []model.AlertConf) error {
	if confs == nil {
		confs = []model.AlertConf{}
	}
	if err := r.docs.Set(ctx, colAlertConfs, string(u), listDoc[model.AlertConf]{D: confs}); err != nil {
		return fmt.Errorf("save alert confs %s: %w", u, err)
	}
	return nil
}
