package scheduler

import (
	"fmt"
	"time"

	"TrendSentinel/internal/model"
)

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock reads an "HH:MM" time of day.
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Window is a half-open [Start, End) range of the day.
type Window struct {
	Start Clock
	End   Clock
}

// Contains reports whether c falls in the window.
func (w Window) Contains(c Clock) bool {
	return c >= w.Start && c < w.End
}

// Windows splits the day into job slots.
type Windows struct {
	Live            Window
	Indicator       Window
	Remaining       Window
	CryptoIndicator Window
}

// DefaultWindows is the equities trading day followed by the evening
// indicator slot, and the crypto indicator slot after midnight.
func DefaultWindows() Windows {
	return Windows{
		Live:            Window{Start: 9 * 60, End: 18*60 + 20},
		Indicator:       Window{Start: 18*60 + 20, End: 23 * 60},
		Remaining:       Window{Start: 23 * 60, End: 23*60 + 30},
		CryptoIndicator: Window{Start: 10, End: 2 * 60},
	}
}

// Plan lists the jobs of one orchestrator tick.
type Plan struct {
	Action string
	Jobs   []string
}

// Job names accepted by RunJob.
const (
	JobLive      = "live"
	JobIndicator = "indicator"
	JobAlerts    = "alerts"
	JobFunds     = "funds"
	JobHistory   = "history"
	JobReset     = "reset"
	JobTick      = "tick"
)

// PlanFor decides what a tick of u does at t given the stored status action.
// t must already be in the orchestrator location.
func PlanFor(u model.Universe, t time.Time, status string, w Windows) Plan {
	if status == model.ActionMaintenance {
		return Plan{Action: model.ActionMaintenance}
	}
	var p Plan
	if status == model.ActionForceReset {
		p.Jobs = append(p.Jobs, JobReset, JobIndicator)
	}
	c := ClockOf(t)

	if u == model.Crypto {
		p.Action = model.ActionLive
		p.Jobs = append(p.Jobs, JobLive, JobAlerts)
		if w.CryptoIndicator.Contains(c) {
			p.Action = model.ActionIndicator
			p.Jobs = append(p.Jobs, JobIndicator)
		}
		return p.dedupe()
	}

	switch {
	case w.Live.Contains(c):
		p.Action = model.ActionLive
		p.Jobs = append(p.Jobs, JobLive, JobAlerts)
	case w.Indicator.Contains(c):
		p.Action = model.ActionIndicator
		p.Jobs = append(p.Jobs, JobIndicator)
	case w.Remaining.Contains(c):
		p.Action = model.ActionRemaining
		p.Jobs = append(p.Jobs, JobFunds)
	default:
		if len(p.Jobs) > 0 {
			p.Action = model.ActionIndicator
		}
	}
	return p.dedupe()
}

func (p Plan) dedupe() Plan {
	seen := make(map[string]bool, len(p.Jobs))
	jobs := p.Jobs[:0]
	for _, j := range p.Jobs {
		if seen[j] {
			continue
		}
		seen[j] = true
		jobs = append(jobs, j)
	}
	p.Jobs = jobs
	return p
}
