package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lcabon/resq/core/model"
)

// Status is the terminal state of a pipeline run.
type Status string

const (
	// StatusOK marks a run that reached its terminal step.
	StatusOK Status = "ok"
	// StatusError marks a failed run; downstream steps no-op once set.
	StatusError Status = "error"
)

// MissionKind identifies which pipeline produced a record.
type MissionKind string

const (
	MissionRescue MissionKind = "rescue"
	MissionScout  MissionKind = "scout"
	MissionSitrep MissionKind = "situation_report"
)

// Record is the execution record threaded through one pipeline run. Each
// output field is written by exactly one step; a populated field is that
// step's idempotency marker, so replaying from a checkpoint never repeats a
// completed external call.
type Record struct {
	RunID   string      `json:"run_id"`
	UserID  string      `json:"user_id,omitempty"`
	Mission MissionKind `json:"mission"`

	// Seed inputs, set at run start and never touched by steps.
	HazardType string          `json:"hazard_type,omitempty"`
	Severity   int             `json:"severity,omitempty"`
	Target     *model.Location `json:"target,omitempty"`
	Request    string          `json:"request,omitempty"`

	Status Status `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	// FailedStep names the step that set the error status.
	FailedStep string `json:"failed_step,omitempty"`

	// Step outputs. One owner each.
	Plan      *model.HazardPlan `json:"plan,omitempty"`
	Matches   *DispatchOutcome  `json:"matches,omitempty"`
	Routes    *RouteOutcome     `json:"routes,omitempty"`
	Evidence  *EvidenceOutcome  `json:"evidence,omitempty"`
	Persisted *PersistOutcome   `json:"persisted,omitempty"`
	Commands  *CommandOutcome   `json:"commands,omitempty"`
	Summary   string            `json:"summary,omitempty"`

	// StepSeq is the sequence number of the last executed step, used as the
	// checkpoint key.
	StepSeq   int       `json:"step_seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DispatchOutcome is the matcher step's output: the scored assignment of
// resources to plan tasks.
type DispatchOutcome struct {
	Assignments []model.Assignment    `json:"assignments"`
	Unmatched   []model.UnmatchedTask `json:"unmatched,omitempty"`
}

// RouteOutcome is the route refiner's output. Assignments are re-sorted by
// travel estimate; pairs the router could not serve are degraded to
// unmatched.
type RouteOutcome struct {
	Assignments []model.Assignment    `json:"assignments"`
	Degraded    []model.UnmatchedTask `json:"degraded,omitempty"`
}

// EvidenceOutcome is the evidence fusion step's output.
type EvidenceOutcome struct {
	Recommendations []model.EvidenceRecommendation `json:"recommendations"`
}

// PersistOutcome records the ids written by the persistence collaborator.
type PersistOutcome struct {
	TaskIDs  []string `json:"task_ids,omitempty"`
	RouteIDs []string `json:"route_ids,omitempty"`
}

// CommandOutcome records device commands pushed to resources and whether
// they were acknowledged.
type CommandOutcome struct {
	CommandIDs []string `json:"command_ids"`
	Acked      bool     `json:"acked"`
}

// NewRecord seeds a record for a fresh run.
func NewRecord(runID, userID string, mission MissionKind) *Record {
	return &Record{
		RunID:     runID,
		UserID:    userID,
		Mission:   mission,
		CreatedAt: time.Now().UTC(),
	}
}

// Failed reports whether the run has entered the error state.
func (r *Record) Failed() bool { return r.Status == StatusError }

// Clone returns a deep copy of the record. Records are JSON-serializable by
// construction, which keeps the copy honest about what a checkpoint would
// round-trip.
func (r *Record) Clone() (*Record, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("clone record: %w", err)
	}
	var out Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone record: %w", err)
	}
	return &out, nil
}

// Patch is the partial update returned by a step. Nil fields are untouched;
// a non-nil field overwrites the record field of the same name. Steps build
// patches instead of mutating the record so the executor stays the single
// writer.
type Patch struct {
	Status     *Status
	Error      *string
	FailedStep *string

	Plan      *model.HazardPlan
	Matches   *DispatchOutcome
	Routes    *RouteOutcome
	Evidence  *EvidenceOutcome
	Persisted *PersistOutcome
	Commands  *CommandOutcome
	Summary   *string
}

// Empty reports whether the patch touches nothing.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Error == nil && p.FailedStep == nil &&
		p.Plan == nil && p.Matches == nil && p.Routes == nil &&
		p.Evidence == nil && p.Persisted == nil && p.Commands == nil &&
		p.Summary == nil
}

// Apply merges the patch into the record, field-by-field overwrite.
func (p Patch) Apply(r *Record) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Error != nil {
		r.Error = *p.Error
	}
	if p.FailedStep != nil {
		r.FailedStep = *p.FailedStep
	}
	if p.Plan != nil {
		r.Plan = p.Plan
	}
	if p.Matches != nil {
		r.Matches = p.Matches
	}
	if p.Routes != nil {
		r.Routes = p.Routes
	}
	if p.Evidence != nil {
		r.Evidence = p.Evidence
	}
	if p.Persisted != nil {
		r.Persisted = p.Persisted
	}
	if p.Commands != nil {
		r.Commands = p.Commands
	}
	if p.Summary != nil {
		r.Summary = *p.Summary
	}
}

// ErrorPatch builds the patch a step returns to fail the run.
func ErrorPatch(step, msg string) Patch {
	st := StatusError
	return Patch{Status: &st, Error: &msg, FailedStep: &step}
}

// FinalAssignments returns the refined assignments when routing ran,
// otherwise the raw match output.
func (r *Record) FinalAssignments() []model.Assignment {
	if r.Routes != nil {
		return r.Routes.Assignments
	}
	if r.Matches != nil {
		return r.Matches.Assignments
	}
	return nil
}

// AllUnmatched merges matcher gaps with routing degradations.
func (r *Record) AllUnmatched() []model.UnmatchedTask {
	var out []model.UnmatchedTask
	if r.Matches != nil {
		out = append(out, r.Matches.Unmatched...)
	}
	if r.Routes != nil {
		out = append(out, r.Routes.Degraded...)
	}
	return out
}
