package events

import "time"

// RunStartedEvent is published when a pipeline run begins or resumes.
type RunStartedEvent struct {
	RunID   string
	Mission string
	Resumed bool
}

// StepEvent is published after each step of a run.
type StepEvent struct {
	RunID   string
	Step    string
	Skipped bool
	Failed  bool
	Latency time.Duration
}

// RunFinishedEvent is published when a run reaches a terminal state.
type RunFinishedEvent struct {
	RunID      string
	Mission    string
	Status     string
	FailedStep string
	Duration   time.Duration
}
