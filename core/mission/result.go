package mission

import (
	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/workflow"
)

// Result is the contract surface exposed to callers. A status of
// "error" is terminal for the run.
type Result struct {
	RunID              string                         `json:"run_id"`
	Status             workflow.Status                `json:"status"`
	ResponseSummary    string                         `json:"response_summary,omitempty"`
	MatchedResources   []model.Assignment             `json:"matched_resources,omitempty"`
	UnmatchedResources []model.UnmatchedTask          `json:"unmatched_resources,omitempty"`
	Plan               *model.HazardPlan              `json:"plan,omitempty"`
	Recommendations    []model.EvidenceRecommendation `json:"recommendations,omitempty"`
	Error              string                         `json:"error,omitempty"`
	FailedStep         string                         `json:"failed_step,omitempty"`
}

// ResultFrom projects the caller-facing result out of a finished record.
func ResultFrom(rec *workflow.Record) Result {
	res := Result{
		RunID:              rec.RunID,
		Status:             rec.Status,
		ResponseSummary:    rec.Summary,
		MatchedResources:   rec.FinalAssignments(),
		UnmatchedResources: rec.AllUnmatched(),
		Plan:               rec.Plan,
		Error:              rec.Error,
		FailedStep:         rec.FailedStep,
	}
	if rec.Evidence != nil {
		res.Recommendations = rec.Evidence.Recommendations
	}
	return res
}
