package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/config"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.QuoteSource.Source = "mock"
	cfg.Store.Driver = "memory"
	cfg.Recorder.Path = ":memory:"
	cfg.Logging.Level = "error"
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestChannelPolicyOverrides(t *testing.T) {
	ma, bias := 40, 0.5
	p, err := channelPolicy(config.Indicator{
		Preset:    "breakout-8",
		Overrides: config.ChannelOverrides{MAPeriod: &ma, SlopeBias: &bias},
	})
	require.NoError(t, err)
	assert.Equal(t, 40, p.Params().MAPeriod)
	assert.Equal(t, 8, p.Params().BreakoutPeriod)
	assert.Equal(t, 0.5, p.Params().SlopeBias)
	assert.Equal(t, 0.997, p.Params().ResistanceDamping)

	ma12 := 12
	_, err = channelPolicy(config.Indicator{
		Preset:    "breakout-10",
		Overrides: config.ChannelOverrides{MAPeriod: &ma12},
	})
	assert.NoError(t, err)

	breakout := 20
	_, err = channelPolicy(config.Indicator{
		Preset:    "breakout-10",
		Overrides: config.ChannelOverrides{MAPeriod: &ma12, BreakoutPeriod: &breakout},
	})
	assert.Error(t, err)
}

func TestScheduleConfig(t *testing.T) {
	cfg := testConfig(t).Schedule
	sc, err := scheduleConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, scheduler.DefaultWindows(), sc.Windows)
	assert.Equal(t, "Europe/Paris", sc.Location.String())

	cfg.LiveEnd = "23:10"
	_, err = scheduleConfig(cfg)
	assert.Error(t, err)

	cfg = testConfig(t).Schedule
	cfg.LiveStart = "9h"
	_, err = scheduleConfig(cfg)
	assert.Error(t, err)
}

func TestAppRunsJobs(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.repo.SaveInstruments(ctx, model.Equities, []model.Instrument{
		{ID: "FR0000120271", ISIN: "FR0000120271", Symbol: "TTE", Name: "TotalEnergies"},
		{ID: "FR0000131104", ISIN: "FR0000131104", Symbol: "BNP", Name: "BNP Paribas"},
	}))

	run, err := a.sched.RunJob(ctx, scheduler.JobLive, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Processed)

	run, err = a.sched.RunJob(ctx, scheduler.JobIndicator, model.Equities)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Processed)

	instruments, err := a.repo.Instruments(ctx, model.Equities)
	require.NoError(t, err)
	for _, ins := range instruments {
		require.NotNil(t, ins.Indicator, ins.ID)
		assert.NotZero(t, ins.Indicator.Watermark, ins.ID)
		require.NotNil(t, ins.Live, ins.ID)
		assert.Equal(t, 100.0, ins.Live.Last)
	}

	runs, err := a.recorder.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestBotCommands(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.recorder.RecordRun(ctx, &recorder.RunRecord{
		Universe: "crypto", Job: "tick", Action: "live", StartedAt: time.Now(),
	}))

	assert.Equal(t, "pong", a.botCommands(ctx, "ping", ""))
	assert.Contains(t, a.botCommands(ctx, "help", ""), "/screen")

	status := a.botCommands(ctx, "status", "")
	assert.Contains(t, status, "current:")
	assert.Contains(t, status, "crypto:")
	assert.Contains(t, status, "tick")

	assert.Contains(t, a.botCommands(ctx, "screen", ""), "usage")
	assert.Equal(t, "no match", a.botCommands(ctx, "screen", "speed"))
	assert.Contains(t, a.botCommands(ctx, "screen", "nope"), "unknown screener")
}

func TestRootCommandRunsJob(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUOTE_SOURCE", "mock")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "runs.db"))
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", filepath.Join(dir, "none.yaml"), "history", "crypto"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "history")
	assert.Contains(t, out.String(), "crypto")

	root = newRootCmd()
	root.SetArgs([]string{"--config", filepath.Join(dir, "none.yaml"), "live", "forex"})
	assert.Error(t, root.Execute())
}

func TestParseDirection(t *testing.T) {
	d, err := parseDirection("UP")
	require.NoError(t, err)
	assert.Equal(t, model.Up, d)
	_, err = parseDirection("sideways")
	assert.Error(t, err)
}
