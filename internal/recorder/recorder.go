// Package recorder keeps a history of job runs and triggered alerts for
// later analysis.
package recorder

import (
	"context"
	"time"
)

// RunRecord describes one job execution.
type RunRecord struct {
	Universe  string        `json:"universe"`
	Job       string        `json:"job"`
	Action    string        `json:"action,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	Selected  int           `json:"selected"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Triggered int           `json:"triggered"`
	Error     string        `json:"error,omitempty"`
}

// TriggerEvent describes one triggered alert.
type TriggerEvent struct {
	Universe  string
	AlertID   string
	ISIN      string
	AuthorID  string
	Direction string
	Value     float64
	High      float64
	Low       float64
	At        time.Time
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordRun(ctx context.Context, run *RunRecord) error
	RecordTrigger(ctx context.Context, evt *TriggerEvent) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
