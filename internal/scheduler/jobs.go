package scheduler

import (
	"context"
	"errors"
	"fmt"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
)

// RunJob runs one job of u, or a full orchestrator tick for JobTick, then
// persists the status record and logs the run. Runs of a universe never
// overlap.
func (s *Scheduler) RunJob(ctx context.Context, job string, u model.Universe) (*recorder.RunRecord, error) {
	if !ValidJob(job) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	l := s.lock(u)
	l.Lock()
	defer l.Unlock()

	log := s.log.With().Str("universe", string(u)).Str("job", job).Logger()
	start := s.now()
	run := &recorder.RunRecord{Universe: string(u), Job: job, StartedAt: start}

	status, err := s.jobs.Status.Status(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}

	jobs := []string{job}
	if job == JobTick {
		plan := PlanFor(u, start.In(s.cfg.Location), status.Action, s.cfg.Windows)
		run.Action = plan.Action
		if len(plan.Jobs) == 0 {
			log.Debug().Str("action", plan.Action).Msg("nothing to run")
			return run, nil
		}
		jobs = plan.Jobs
		status.Action = plan.Action
	}

	var runErr error
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			runErr = errors.Join(runErr, err)
			break
		}
		if err := s.exec(ctx, j, u, &status, run); err != nil {
			log.Error().Err(err).Str("step", j).Msg("job step failed")
			runErr = errors.Join(runErr, fmt.Errorf("%s: %w", j, err))
		}
	}

	run.Duration = s.now().Sub(start)
	if runErr != nil {
		run.Error = runErr.Error()
	}
	s.metrics.JobDuration(job, string(u), run.Duration.Seconds())

	if err := s.jobs.Status.SaveStatus(ctx, u, status); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := s.recorder.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("record run")
	}
	log.Info().
		Str("action", run.Action).
		Int("selected", run.Selected).
		Int("processed", run.Processed).
		Int("failed", run.Failed).
		Int("triggered", run.Triggered).
		Dur("duration", run.Duration).
		Msg("run done")
	return run, runErr
}

func (s *Scheduler) exec(ctx context.Context, job string, u model.Universe, status *model.Status, run *recorder.RunRecord) error {
	switch job {
	case JobLive:
		if s.jobs.Live == nil {
			return errNotConfigured(job)
		}
		res, err := s.jobs.Live.Refresh(ctx, u)
		run.Selected += res.Selected
		run.Processed += res.Updated
		run.Failed += res.FailedBatches
		return err
	case JobFunds:
		if s.jobs.Live == nil {
			return errNotConfigured(job)
		}
		if u != model.Equities {
			return fmt.Errorf("funds are only listed in %s", model.Equities)
		}
		res, err := s.jobs.Live.RefreshFunds(ctx)
		run.Selected += res.Selected
		run.Processed += res.Updated
		run.Failed += res.FailedBatches
		return err
	case JobIndicator:
		if s.jobs.Indicator == nil {
			return errNotConfigured(job)
		}
		res, err := s.jobs.Indicator.Process(ctx, u, 0)
		run.Selected += res.Selected
		run.Processed += res.Processed
		run.Failed += res.Failed
		return err
	case JobReset:
		if s.jobs.Indicator == nil {
			return errNotConfigured(job)
		}
		return s.jobs.Indicator.ResetAll(ctx, u)
	case JobAlerts:
		if s.jobs.Alerts == nil {
			return errNotConfigured(job)
		}
		res, err := s.jobs.Alerts.Process(ctx, u, status)
		run.Triggered += res.Triggered
		run.Failed += res.NotifyFailures
		return err
	case JobHistory:
		if s.jobs.History == nil {
			return errNotConfigured(job)
		}
		res, err := s.jobs.History.RunAll(ctx, u)
		run.Selected += res.Users
		run.Processed += res.Updated
		run.Failed += res.Failed
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownJob, job)
}

func errNotConfigured(job string) error {
	return fmt.Errorf("%s job is not configured", job)
}

// ValidJob reports whether RunJob accepts job.
func ValidJob(job string) bool {
	switch job {
	case JobLive, JobFunds, JobIndicator, JobReset, JobAlerts, JobHistory, JobTick:
		return true
	}
	return false
}
