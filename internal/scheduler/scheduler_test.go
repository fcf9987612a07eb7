package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/alert"
	"TrendSentinel/internal/docstore"
	"TrendSentinel/internal/indicator"
	"TrendSentinel/internal/live"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/portfolio"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/store"
)

type callLog struct {
	calls []string
}

func (c *callLog) add(s string) { c.calls = append(c.calls, s) }

type fakeLive struct {
	log *callLog
	err error
}

func (f *fakeLive) Refresh(_ context.Context, u model.Universe) (live.Result, error) {
	f.log.add("live:" + string(u))
	return live.Result{Selected: 3, Updated: 2, FailedBatches: 1}, f.err
}

func (f *fakeLive) RefreshFunds(context.Context) (live.Result, error) {
	f.log.add("funds")
	return live.Result{Selected: 1, Updated: 1}, nil
}

type fakeIndicator struct{ log *callLog }

func (f *fakeIndicator) Process(_ context.Context, u model.Universe, _ int) (indicator.Result, error) {
	f.log.add("indicator:" + string(u))
	return indicator.Result{Selected: 5, Processed: 5}, nil
}

func (f *fakeIndicator) ResetAll(_ context.Context, u model.Universe) error {
	f.log.add("reset:" + string(u))
	return nil
}

type fakeAlerts struct{ log *callLog }

func (f *fakeAlerts) Process(_ context.Context, u model.Universe, status *model.Status) (alert.Result, error) {
	f.log.add("alerts:" + string(u))
	status.AlertTriggered += 2
	return alert.Result{Triggered: 2}, nil
}

type fakeHistory struct{ log *callLog }

func (f *fakeHistory) RunAll(_ context.Context, u model.Universe) (portfolio.Result, error) {
	f.log.add("history:" + string(u))
	return portfolio.Result{Users: 4, Updated: 4}, nil
}

type fixture struct {
	sched *Scheduler
	repo  *store.Repository
	calls *callLog
	live  *fakeLive
	rec   *recorder.SQLiteRecorder
}

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	calls := &callLog{}
	repo := store.New(docstore.NewMemoryStore())
	rec, err := recorder.NewSQLiteRecorder(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	lj := &fakeLive{log: calls}
	cfg := DefaultConfig()
	cfg.Location = paris(t)
	s := New(Jobs{
		Live:      lj,
		Indicator: &fakeIndicator{log: calls},
		Alerts:    &fakeAlerts{log: calls},
		History:   &fakeHistory{log: calls},
		Status:    repo,
	}, cfg, rec, nil, zerolog.Nop())
	s.now = func() time.Time { return now }
	return &fixture{sched: s, repo: repo, calls: calls, live: lj, rec: rec}
}

func TestPlanFor(t *testing.T) {
	loc := paris(t)
	w := DefaultWindows()
	at := func(h, m int) time.Time { return time.Date(2024, 3, 4, h, m, 0, 0, loc) }

	tests := []struct {
		name   string
		u      model.Universe
		t      time.Time
		status string
		want   Plan
	}{
		{"morning live", model.Equities, at(9, 0), "", Plan{model.ActionLive, []string{JobLive, JobAlerts}}},
		{"live window end excluded", model.Equities, at(18, 20), "", Plan{model.ActionIndicator, []string{JobIndicator}}},
		{"evening indicator", model.Equities, at(22, 59), "", Plan{model.ActionIndicator, []string{JobIndicator}}},
		{"remaining funds", model.Equities, at(23, 12), "", Plan{model.ActionRemaining, []string{JobFunds}}},
		{"late idle", model.Equities, at(23, 48), "", Plan{Action: model.ActionIdle}},
		{"force reset while idle", model.Equities, at(23, 48), model.ActionForceReset, Plan{model.ActionIndicator, []string{JobReset, JobIndicator}}},
		{"force reset during live", model.Equities, at(10, 0), model.ActionForceReset, Plan{model.ActionLive, []string{JobReset, JobIndicator, JobLive, JobAlerts}}},
		{"crypto daytime", model.Crypto, at(14, 0), "", Plan{model.ActionLive, []string{JobLive, JobAlerts}}},
		{"crypto night indicator", model.Crypto, at(0, 20), "", Plan{model.ActionIndicator, []string{JobLive, JobAlerts, JobIndicator}}},
		{"crypto maintenance", model.Crypto, at(0, 20), model.ActionMaintenance, Plan{Action: model.ActionMaintenance}},
		{"crypto force reset", model.Crypto, at(1, 0), model.ActionForceReset, Plan{model.ActionIndicator, []string{JobReset, JobIndicator, JobLive, JobAlerts}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanFor(tt.u, tt.t, tt.status, w)
			assert.Equal(t, tt.want.Action, got.Action)
			assert.Equal(t, len(tt.want.Jobs), len(got.Jobs))
			if len(tt.want.Jobs) > 0 {
				assert.Equal(t, tt.want.Jobs, got.Jobs)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("18:20")
	require.NoError(t, err)
	assert.Equal(t, Clock(18*60+20), c)
	assert.Equal(t, "18:20", c.String())

	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("noon")
	assert.Error(t, err)
}

func TestTickDuringLiveWindow(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, paris(t))
	f := newFixture(t, now)
	ctx := context.Background()

	run, err := f.sched.RunJob(ctx, JobTick, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, []string{"live:current", "alerts:current"}, f.calls.calls)
	assert.Equal(t, model.ActionLive, run.Action)
	assert.Equal(t, 3, run.Selected)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 2, run.Triggered)

	status, err := f.repo.Status(ctx, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, model.ActionLive, status.Action)
	assert.Equal(t, 2, status.AlertTriggered)

	runs, err := f.rec.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, JobTick, runs[0].Job)
	assert.Equal(t, model.ActionLive, runs[0].Action)
}

func TestTickForceReset(t *testing.T) {
	now := time.Date(2024, 3, 4, 20, 0, 0, 0, paris(t))
	f := newFixture(t, now)
	ctx := context.Background()
	require.NoError(t, f.repo.SaveStatus(ctx, model.Equities, model.Status{Action: model.ActionForceReset}))

	_, err := f.sched.RunJob(ctx, JobTick, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, []string{"reset:current", "indicator:current"}, f.calls.calls)

	status, err := f.repo.Status(ctx, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, model.ActionIndicator, status.Action)
}

func TestTickIdleAndMaintenanceDoNothing(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, time.Date(2024, 3, 4, 23, 50, 0, 0, paris(t)))
	_, err := f.sched.RunJob(ctx, JobTick, model.Equities)
	require.NoError(t, err)
	assert.Empty(t, f.calls.calls)

	f = newFixture(t, time.Date(2024, 3, 4, 12, 0, 0, 0, paris(t)))
	require.NoError(t, f.repo.SaveStatus(ctx, model.Crypto, model.Status{Action: model.ActionMaintenance}))
	run, err := f.sched.RunJob(ctx, JobTick, model.Crypto)
	require.NoError(t, err)
	assert.Equal(t, model.ActionMaintenance, run.Action)
	assert.Empty(t, f.calls.calls)

	runs, err := f.rec.RecentRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunJobErrors(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 4, 10, 0, 0, 0, paris(t)))
	ctx := context.Background()

	_, err := f.sched.RunJob(ctx, "compact", model.Equities)
	assert.ErrorIs(t, err, ErrUnknownJob)

	_, err = f.sched.RunJob(ctx, JobFunds, model.Crypto)
	assert.Error(t, err)

	boom := errors.New("provider down")
	f.live.err = boom
	run, err := f.sched.RunJob(ctx, JobLive, model.Equities)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, run.Error, "provider down")

	runs, err := f.rec.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Contains(t, runs[0].Error, "provider down")
}

func TestSingleJobs(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 4, 10, 0, 0, 0, paris(t)))
	ctx := context.Background()

	run, err := f.sched.RunJob(ctx, JobHistory, model.Crypto)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Processed)

	_, err = f.sched.RunJob(ctx, JobFunds, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, []string{"history:crypto", "funds"}, f.calls.calls)
}

func TestRegisterAll(t *testing.T) {
	f := newFixture(t, time.Now())
	require.NoError(t, f.sched.RegisterAll(context.Background()))
	assert.Len(t, f.sched.cron.Entries(), 4)

	bad := newFixture(t, time.Now())
	bad.sched.cfg.EquitiesCron = "every now and then"
	assert.Error(t, bad.sched.RegisterAll(context.Background()))
}
