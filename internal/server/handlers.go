package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/scheduler"
	"TrendSentinel/internal/screener"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.now().Sub(s.started).Round(time.Second).String(),
	})
}

func (s *Server) universe(w http.ResponseWriter, r *http.Request) (model.Universe, bool) {
	u, err := model.ParseUniverse(chi.URLParam(r, "universe"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return u, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := s.universe(w, r)
	if !ok {
		return
	}
	if s.cfg.Repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no repository")
		return
	}
	status, err := s.cfg.Repo.Status(r.Context(), u)
	if err != nil {
		s.log.Error().Err(err).Msg("load status")
		s.writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs := []recorder.RunRecord{}
	if s.cfg.Runs != nil {
		got, err := s.cfg.Runs.RecentRuns(r.Context(), limit)
		if err != nil {
			s.log.Error().Err(err).Msg("load runs")
			s.writeError(w, http.StatusInternalServerError, "failed to load runs")
			return
		}
		if got != nil {
			runs = got
		}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleScreens(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	if s.cfg.Screens != nil {
		names = s.cfg.Screens.Names()
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	u, ok := s.universe(w, r)
	if !ok {
		return
	}
	if s.cfg.Screens == nil || s.cfg.Repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "screens are not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	instruments, err := s.cfg.Repo.Instruments(r.Context(), u)
	if err != nil {
		s.log.Error().Err(err).Msg("load instruments")
		s.writeError(w, http.StatusInternalServerError, "failed to load instruments")
		return
	}
	out, err := s.cfg.Screens.Screen(chi.URLParam(r, "name"), instruments, s.now(), limit)
	if errors.Is(err, screener.ErrUnknownScreener) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	u, ok := s.universe(w, r)
	if !ok {
		return
	}
	job := chi.URLParam(r, "job")
	if !scheduler.ValidJob(job) {
		s.writeError(w, http.StatusNotFound, "unknown job "+strconv.Quote(job))
		return
	}
	if s.cfg.Jobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "jobs are not configured")
		return
	}

	run, err := s.cfg.Jobs.RunJob(r.Context(), job, u)
	if err != nil {
		s.log.Warn().Err(err).Str("job", job).Str("universe", string(u)).Msg("manual job failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "run": run})
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
