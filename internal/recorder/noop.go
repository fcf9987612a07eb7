package recorder

import "context"

// NoopRecorder is used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(context.Context, *RunRecord) error          { return nil }
func (n *NoopRecorder) RecordTrigger(context.Context, *TriggerEvent) error   { return nil }
func (n *NoopRecorder) RecentRuns(context.Context, int) ([]RunRecord, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                         { return nil }
