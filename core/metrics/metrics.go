package metrics

import "time"

// RunResult is the terminal observation for one pipeline run.
type RunResult struct {
	RunID      string
	Mission    string
	Status     string
	FailedStep string
	Matched    int
	Unmatched  int
	Duration   time.Duration
}

// StepLatency is a per-step timing observation.
type StepLatency struct {
	RunID   string
	Mission string
	Step    string
	Skipped bool
	Failed  bool
	Latency time.Duration
}

// MatchObservation records one scored (task, resource) pair.
type MatchObservation struct {
	RunID      string
	TaskID     string
	ResourceID string
	Composite  float64
	Assigned   bool
	Time       time.Time
}

// Sink records pipeline observations for observability purposes.
type Sink interface {
	RecordRunResult(res RunResult) error
	RecordStepLatency(recs []StepLatency) error
	RecordMatches(obs []MatchObservation) error
}

// NopSink discards all observations.
type NopSink struct{}

func (NopSink) RecordRunResult(RunResult) error        { return nil }
func (NopSink) RecordStepLatency([]StepLatency) error  { return nil }
func (NopSink) RecordMatches([]MatchObservation) error { return nil }
