package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/docstore"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/screener"
	"TrendSentinel/internal/store"
)

type fakeRunner struct {
	jobs []string
	err  error
}

func (f *fakeRunner) RunJob(_ context.Context, job string, u model.Universe) (*recorder.RunRecord, error) {
	f.jobs = append(f.jobs, job+":"+string(u))
	return &recorder.RunRecord{Universe: string(u), Job: job, Processed: 7}, f.err
}

func newTestServer(t *testing.T, token string) (*Server, *fakeRunner, *store.Repository) {
	t.Helper()
	repo := store.New(docstore.NewMemoryStore())
	runs, err := recorder.NewSQLiteRecorder(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	runner := &fakeRunner{}
	m := metrics.New()
	m.QuotesRefreshed("current", 3)
	s := New(Config{
		Token:   token,
		Log:     zerolog.Nop(),
		Jobs:    runner,
		Runs:    runs,
		Repo:    repo,
		Screens: screener.NewRegistry(),
		Metrics: m,
	})
	return s, runner, repo
}

func do(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trendsentinel_quotes_refreshed_total")
}

func TestRunJob(t *testing.T) {
	s, runner, _ := newTestServer(t, "secret")

	rec := do(t, s, http.MethodPost, "/jobs/live/crypto", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/jobs/live/crypto", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var run recorder.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "crypto", run.Universe)
	assert.Equal(t, 7, run.Processed)

	rec = do(t, s, http.MethodPost, "/jobs/live/equities", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"live:crypto", "live:current"}, runner.jobs)

	rec = do(t, s, http.MethodPost, "/jobs/compact/crypto", "secret")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/jobs/live/forex", "secret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runner.err = errors.New("quote source down")
	rec = do(t, s, http.MethodPost, "/jobs/indicator/crypto", "secret")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "quote source down")
}

func TestStatusAndRuns(t *testing.T) {
	s, _, repo := newTestServer(t, "")
	ctx := context.Background()
	require.NoError(t, repo.SaveStatus(ctx, model.Crypto, model.Status{Action: model.ActionLive, AlertTriggered: 4}))
	require.NoError(t, s.cfg.Runs.RecordRun(ctx, &recorder.RunRecord{
		Universe: "crypto", Job: "tick", StartedAt: time.Unix(1700000000, 0),
	}))

	rec := do(t, s, http.MethodGet, "/api/status/crypto", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status model.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.ActionLive, status.Action)
	assert.Equal(t, 4, status.AlertTriggered)

	rec = do(t, s, http.MethodGet, "/api/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []recorder.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "tick", runs[0].Job)

	rec = do(t, s, http.MethodGet, "/api/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScreens(t *testing.T) {
	s, _, repo := newTestServer(t, "")
	ctx := context.Background()
	require.NoError(t, repo.SaveInstruments(ctx, model.Equities, []model.Instrument{
		{
			ID: "FR0000131104", ISIN: "FR0000131104", Symbol: "BNP", Name: "BNP Paribas",
			Live:      &model.LiveQuote{Last: 60, PreviousClose: 58, Volume: 400000},
			Indicator: &model.IndicatorState{AvgVolume: 100000, FlipPrice: 50, FlipDate: 1690000000, Breakout: 65},
		},
		{ID: "FR0000120073", ISIN: "FR0000120073", Symbol: "AI", Name: "Air Liquide"},
	}))

	rec := do(t, s, http.MethodGet, "/api/screens", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"action"`))

	rec = do(t, s, http.MethodGet, "/api/screens/action/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []screener.Augmented
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "BNP", out[0].Instrument.Symbol)

	rec = do(t, s, http.MethodGet, "/api/screens/nope/current", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
